package models

import "time"

// UserTypeTourist marks profile rows that belong to tourists.
const UserTypeTourist = "tourist"

// TouristStatus is the roster status derived from the tourist's current
// assignment. It is never stored.
type TouristStatus string

const (
	TouristStatusActive   TouristStatus = "active"
	TouristStatusPending  TouristStatus = "pending"
	TouristStatusAssigned TouristStatus = "assigned"
)

// Profile represents a person record stored in the profiles table.
type Profile struct {
	ID          string    `db:"id" json:"id"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	UserType    string    `db:"user_type" json:"user_type"`
	FullName    string    `db:"full_name" json:"full_name"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Nationality *string   `db:"nationality" json:"nationality,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentGlance carries the columns of a tourist's current non-terminal
// assignment needed to derive the roster status.
type AssignmentGlance struct {
	ID        string
	GuideID   string
	GuideName string
	Status    AssignmentStatus
}

// TouristDetail is the roster view of a tourist: the profile plus the status
// derived from the current assignment.
type TouristDetail struct {
	Profile
	Status        TouristStatus `json:"status"`
	AssignedGuide *string       `json:"assigned_guide,omitempty"`
	AssignmentID  *string       `json:"assignment_id,omitempty"`
}

// TouristRow is the raw join row scanned when listing tourists. The current_*
// columns come from a LEFT JOIN against the non-terminal assignment, so they
// are null for unassigned tourists.
type TouristRow struct {
	Profile
	CurrentAssignmentID *string           `db:"current_assignment_id"`
	CurrentGuideID      *string           `db:"current_guide_id"`
	CurrentGuideName    *string           `db:"current_guide_name"`
	CurrentStatus       *AssignmentStatus `db:"current_status"`
}

// Glance resolves the joined assignment columns, returning nil when the
// tourist has no current assignment.
func (r TouristRow) Glance() *AssignmentGlance {
	if r.CurrentAssignmentID == nil || r.CurrentStatus == nil {
		return nil
	}
	g := &AssignmentGlance{ID: *r.CurrentAssignmentID, Status: *r.CurrentStatus}
	if r.CurrentGuideID != nil {
		g.GuideID = *r.CurrentGuideID
	}
	if r.CurrentGuideName != nil {
		g.GuideName = *r.CurrentGuideName
	}
	return g
}

// Detail converts the raw row into the roster view.
func (r TouristRow) Detail() TouristDetail {
	glance := r.Glance()
	detail := TouristDetail{Profile: r.Profile, Status: DeriveTouristStatus(glance)}
	if glance != nil {
		id := glance.ID
		name := glance.GuideName
		detail.AssignmentID = &id
		if name != "" {
			detail.AssignedGuide = &name
		}
	}
	return detail
}

// DeriveTouristStatus computes the roster status from the current
// non-terminal assignment. No assignment leaves the tourist free for
// assignment, which the roster shows as "active".
func DeriveTouristStatus(current *AssignmentGlance) TouristStatus {
	if current == nil {
		return TouristStatusActive
	}
	switch current.Status {
	case AssignmentStatusPending:
		return TouristStatusPending
	case AssignmentStatusActive:
		return TouristStatusAssigned
	default:
		return TouristStatusActive
	}
}

// TouristFilter captures filtering options for the tourist roster.
type TouristFilter struct {
	Status    TouristStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
