package models

import "time"

// DriverStatusAvailable is the only driver status with scheduling meaning;
// any other value simply displays on the roster.
const DriverStatusAvailable = "available"

// Driver represents a driver on the roster.
type Driver struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     string    `db:"phone" json:"phone"`
	LicenseNo *string   `db:"license_no" json:"license_no,omitempty"`
	Vehicle   *string   `db:"vehicle" json:"vehicle,omitempty"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Available reports whether the driver can be scheduled.
func (d Driver) Available() bool {
	return d.Status == DriverStatusAvailable
}

// DriverFilter captures filtering options for the driver roster.
type DriverFilter struct {
	Status    string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
