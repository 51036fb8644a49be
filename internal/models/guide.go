package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// GuideStatus represents a guide's availability on the roster.
type GuideStatus string

const (
	GuideStatusAvailable GuideStatus = "available"
	GuideStatusBusy      GuideStatus = "busy"
	GuideStatusOffline   GuideStatus = "offline"
)

// Valid returns true when the status is a supported value.
func (s GuideStatus) Valid() bool {
	switch s {
	case GuideStatusAvailable, GuideStatusBusy, GuideStatusOffline:
		return true
	default:
		return false
	}
}

// Guide represents a tour guide on the roster.
type Guide struct {
	ID              string         `db:"id" json:"id"`
	FullName        string         `db:"full_name" json:"full_name"`
	Email           string         `db:"email" json:"email"`
	Phone           string         `db:"phone" json:"phone"`
	Rating          float64        `db:"rating" json:"rating"`
	Specializations pq.StringArray `db:"specializations" json:"specializations"`
	Status          GuideStatus    `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// GuideFilter captures filtering options for listing guides.
type GuideFilter struct {
	Status         GuideStatus
	Specialization string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// ParseSpecializations splits a comma-delimited tag list, trimming whitespace
// and dropping empty entries.
func ParseSpecializations(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
