package models

import "time"

// AssignmentStatus tracks the lifecycle of a tour assignment.
type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusActive    AssignmentStatus = "active"
	AssignmentStatusCompleted AssignmentStatus = "completed"
)

// Valid returns true when the status is a supported value.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusPending, AssignmentStatusActive, AssignmentStatusCompleted:
		return true
	default:
		return false
	}
}

// Terminal reports whether the assignment no longer occupies the tourist.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentStatusCompleted
}

// CanTransition reports whether a status change is allowed.
func (s AssignmentStatus) CanTransition(next AssignmentStatus) bool {
	switch s {
	case AssignmentStatusPending:
		return next == AssignmentStatusActive || next == AssignmentStatusCompleted
	case AssignmentStatusActive:
		return next == AssignmentStatusCompleted
	default:
		return false
	}
}

// TourAssignment links a tourist with a guide for a named tour over a date
// range. At most one non-terminal assignment exists per tourist, enforced by
// a partial unique index.
type TourAssignment struct {
	ID        string           `db:"id" json:"id"`
	TouristID string           `db:"tourist_id" json:"tourist_id"`
	GuideID   string           `db:"guide_id" json:"guide_id"`
	TourName  string           `db:"tour_name" json:"tour_name"`
	StartDate time.Time        `db:"start_date" json:"start_date"`
	EndDate   time.Time        `db:"end_date" json:"end_date"`
	Status    AssignmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail includes display names for the admin list.
type AssignmentDetail struct {
	TourAssignment
	TouristName string `db:"tourist_name" json:"tourist_name"`
	GuideName   string `db:"guide_name" json:"guide_name"`
}

// AssignmentUpsert reports the outcome of the reconciler's atomic
// find-or-create.
type AssignmentUpsert struct {
	Assignment      TourAssignment
	Created         bool
	PreviousGuideID string
}

// AssignmentFilter captures filtering options for listing assignments.
type AssignmentFilter struct {
	Status    AssignmentStatus
	TouristID string
	GuideID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
