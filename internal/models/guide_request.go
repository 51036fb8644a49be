package models

import "time"

// RequestStatus tracks triage of a guide request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Valid returns true when the status is a supported value.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	default:
		return false
	}
}

// Reviewed reports whether triage already happened.
func (s RequestStatus) Reviewed() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// GuideRequest represents a tourist-initiated ask for a guide.
type GuideRequest struct {
	ID              string        `db:"id" json:"id"`
	TouristID       string        `db:"tourist_id" json:"tourist_id"`
	Adults          int           `db:"adults" json:"adults"`
	Children        int           `db:"children" json:"children"`
	Note            *string       `db:"note" json:"note,omitempty"`
	Status          RequestStatus `db:"status" json:"status"`
	AssignedGuideID *string       `db:"assigned_guide_id" json:"assigned_guide_id,omitempty"`
	AdminResponse   *string       `db:"admin_response" json:"admin_response,omitempty"`
	RespondedBy     *string       `db:"responded_by" json:"responded_by,omitempty"`
	RespondedAt     *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// GuideRequestDetail joins tourist and guide display fields for triage lists.
type GuideRequestDetail struct {
	GuideRequest
	TouristName  string  `db:"tourist_name" json:"tourist_name"`
	TouristEmail *string `db:"tourist_email" json:"tourist_email,omitempty"`
	GuideName    *string `db:"guide_name" json:"guide_name,omitempty"`
}

// GuideRequestFilter captures filtering options for listing guide requests.
type GuideRequestFilter struct {
	Status    RequestStatus
	TouristID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
