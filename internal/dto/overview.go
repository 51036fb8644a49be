package dto

import "time"

// OverviewResponse captures the aggregated back-office landing payload.
type OverviewResponse struct {
	GeneratedAt time.Time               `json:"generatedAt"`
	Tourists    StatusBreakdown         `json:"tourists"`
	Guides      StatusBreakdown         `json:"guides"`
	Assignments StatusBreakdown         `json:"assignments"`
	Requests    StatusBreakdown         `json:"requests"`
	Drivers     StatusBreakdown         `json:"drivers"`
	Pending     []PendingRequestSummary `json:"pendingRequests"`
}

// StatusBreakdown counts records per status for one collection.
type StatusBreakdown struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// PendingRequestSummary is a condensed pending guide request for the
// overview screen.
type PendingRequestSummary struct {
	ID          string    `json:"id"`
	TouristID   string    `json:"touristId"`
	TouristName string    `json:"touristName"`
	Adults      int       `json:"adults"`
	Children    int       `json:"children"`
	Note        *string   `json:"note,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
