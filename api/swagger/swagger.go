package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TourOps API",
        "description": "Back-office API for tour operator rosters and tourist self-service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Tourist accounts and staff sessions"},
        {"name": "Users", "description": "Staff account administration"},
        {"name": "Tourists", "description": "Tourist roster and guide assignment"},
        {"name": "Guides", "description": "Guide roster management"},
        {"name": "Assignments", "description": "Tourist-guide assignment records"},
        {"name": "Guide Requests", "description": "Tourist guide requests and staff triage"},
        {"name": "Drivers", "description": "Driver roster management"},
        {"name": "Overview", "description": "Back-office landing summary"},
        {"name": "Exports", "description": "Roster file exports"},
        {"name": "Realtime", "description": "Collection change feed"}
    ],
    "paths": {
        "/auth/signup": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register tourist account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SignupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email or phone already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login with email or phone",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Change password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Wrong old password"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current account",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List staff accounts",
                "parameters": [
                    {"name": "role", "in": "query", "type": "string", "enum": ["ADMIN", "OPERATOR", "TOURIST"]},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create staff account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already exists"}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get staff account",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update staff account",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateUserRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate staff account",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/tourists": {
            "get": {
                "tags": ["Tourists"],
                "summary": "List tourists",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["active", "unassigned", "inactive"]},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tourists/me": {
            "get": {
                "tags": ["Tourists"],
                "summary": "Own tourist profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No profile for account"}
                }
            }
        },
        "/tourists/{id}": {
            "get": {
                "tags": ["Tourists"],
                "summary": "Get tourist",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/tourists/{id}/guide": {
            "put": {
                "tags": ["Tourists"],
                "summary": "Assign or reassign guide",
                "description": "Reconciles the tourist's current assignment: reuses it when the guide matches, otherwise completes it and creates a new one.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignGuidePayload"}}
                ],
                "responses": {
                    "200": {"description": "Existing assignment kept", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "New assignment created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Tourist or guide not found"}
                }
            }
        },
        "/guides": {
            "get": {
                "tags": ["Guides"],
                "summary": "List guides",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["available", "assigned", "inactive"]},
                    {"name": "specialization", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Guides"],
                "summary": "Create guide",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGuideRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already in use"}
                }
            }
        },
        "/guides/{id}": {
            "get": {
                "tags": ["Guides"],
                "summary": "Get guide",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "put": {
                "tags": ["Guides"],
                "summary": "Update guide",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateGuideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already in use"}
                }
            }
        },
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignments",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "active", "completed", "cancelled"]},
                    {"name": "touristId", "in": "query", "type": "string"},
                    {"name": "guideId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Assignments"],
                "summary": "Create assignment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAssignmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Tourist already has a current assignment"}
                }
            }
        },
        "/assignments/{id}/status": {
            "patch": {
                "tags": ["Assignments"],
                "summary": "Update assignment status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAssignmentStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/assignments/{id}": {
            "delete": {
                "tags": ["Assignments"],
                "summary": "Delete assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/guide-requests": {
            "get": {
                "tags": ["Guide Requests"],
                "summary": "List guide requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "approved", "rejected"]},
                    {"name": "touristId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Guide Requests"],
                "summary": "Submit guide request",
                "description": "Tourist self-service. The request starts pending and never assigns a guide by itself.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGuideRequestPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/guide-requests/mine": {
            "get": {
                "tags": ["Guide Requests"],
                "summary": "Own guide requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/guide-requests/{id}": {
            "get": {
                "tags": ["Guide Requests"],
                "summary": "Get guide request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/guide-requests/{id}/respond": {
            "post": {
                "tags": ["Guide Requests"],
                "summary": "Approve or reject request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RespondGuideRequestPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already responded"}
                }
            }
        },
        "/drivers": {
            "get": {
                "tags": ["Drivers"],
                "summary": "List drivers",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["available", "on_trip", "inactive"]},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Drivers"],
                "summary": "Create driver",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDriverRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/drivers/{id}": {
            "get": {
                "tags": ["Drivers"],
                "summary": "Get driver",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "put": {
                "tags": ["Drivers"],
                "summary": "Update driver",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateDriverRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/overview": {
            "get": {
                "tags": ["Overview"],
                "summary": "Back-office overview",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Generate export file",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download export file",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "produces": ["text/csv", "application/pdf"],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"},
                    "404": {"description": "File removed"}
                }
            }
        },
        "/ws/changes": {
            "get": {
                "tags": ["Realtime"],
                "summary": "Collection change feed",
                "description": "Websocket upgrade. Sends a full version snapshot on connect, then debounced batches of collection updates. Requires an admin or operator access token in the token query parameter.",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Missing or invalid token"},
                    "403": {"description": "Tourist tokens not allowed"}
                }
            }
        }
    },
    "definitions": {
        "Tourist": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "user_type": {"type": "string"},
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "nationality": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "unassigned", "inactive"]},
                "assigned_guide": {"type": "string"},
                "assignment_id": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "Guide": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "rating": {"type": "number"},
                "specializations": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string", "enum": ["available", "assigned", "inactive"]},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "Driver": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "full_name": {"type": "string"},
                "phone": {"type": "string"},
                "license_no": {"type": "string"},
                "vehicle": {"type": "string"},
                "status": {"type": "string", "enum": ["available", "on_trip", "inactive"]},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "Assignment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "tourist_id": {"type": "string"},
                "guide_id": {"type": "string"},
                "tour_name": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "active", "completed", "cancelled"]},
                "tourist_name": {"type": "string"},
                "guide_name": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "GuideRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "tourist_id": {"type": "string"},
                "adults": {"type": "integer"},
                "children": {"type": "integer"},
                "note": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "approved", "rejected"]},
                "assigned_guide_id": {"type": "string"},
                "admin_response": {"type": "string"},
                "responded_by": {"type": "string"},
                "responded_at": {"type": "string"},
                "tourist_name": {"type": "string"},
                "tourist_email": {"type": "string"},
                "guide_name": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "OPERATOR", "TOURIST"]},
                "active": {"type": "boolean"},
                "last_login": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "CreateUserRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "OPERATOR"]},
                "active": {"type": "boolean"},
                "password": {"type": "string"}
            },
            "required": ["email", "full_name", "role", "password"]
        },
        "UpdateUserRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "OPERATOR"]},
                "active": {"type": "boolean"}
            },
            "required": ["full_name", "role"]
        },
        "SignupRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "password": {"type": "string"},
                "nationality": {"type": "string"}
            },
            "required": ["full_name", "password"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "identifier": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["identifier", "password"]
        },
        "RefreshRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string"}
            },
            "required": ["old_password", "new_password"]
        },
        "AssignGuidePayload": {
            "type": "object",
            "properties": {
                "guide_id": {"type": "string"}
            },
            "required": ["guide_id"]
        },
        "CreateGuideRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "specializations": {"type": "string", "description": "Comma separated list"},
                "status": {"type": "string"}
            },
            "required": ["full_name", "email", "phone", "specializations", "status"]
        },
        "UpdateGuideRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "specializations": {"type": "string", "description": "Comma separated list"},
                "status": {"type": "string"}
            },
            "required": ["full_name", "email", "phone", "specializations", "status"]
        },
        "CreateAssignmentRequest": {
            "type": "object",
            "properties": {
                "tourist_id": {"type": "string"},
                "guide_id": {"type": "string"},
                "tour_name": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            },
            "required": ["tourist_id", "guide_id", "tour_name", "start_date", "end_date"]
        },
        "UpdateAssignmentStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["pending", "active", "completed", "cancelled"]}
            },
            "required": ["status"]
        },
        "CreateGuideRequestPayload": {
            "type": "object",
            "properties": {
                "adults": {"type": "integer", "minimum": 1},
                "children": {"type": "integer", "minimum": 0},
                "note": {"type": "string"}
            },
            "required": ["adults"]
        },
        "RespondGuideRequestPayload": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["approved", "rejected"]},
                "guide_id": {"type": "string"},
                "response": {"type": "string"}
            },
            "required": ["status"]
        },
        "CreateDriverRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "phone": {"type": "string"},
                "license_no": {"type": "string"},
                "vehicle": {"type": "string"},
                "status": {"type": "string"}
            },
            "required": ["full_name", "phone", "status"]
        },
        "UpdateDriverRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "phone": {"type": "string"},
                "license_no": {"type": "string"},
                "vehicle": {"type": "string"},
                "status": {"type": "string"}
            },
            "required": ["full_name", "phone", "status"]
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "dataset": {"type": "string", "enum": ["guides", "drivers", "assignments"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["dataset", "format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "NOT_FOUND"},
                "message": {"type": "string", "example": "guide not found"},
                "status": {"type": "integer", "example": 404}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
