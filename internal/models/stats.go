package models

// StatusCount aggregates row counts per status value.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}
