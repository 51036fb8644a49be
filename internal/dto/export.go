package dto

import "time"

// ExportRequest captures POST /exports payload.
type ExportRequest struct {
	Dataset string `json:"dataset"`
	Format  string `json:"format"`
}

// ExportResponse returns the signed download location for a rendered file.
type ExportResponse struct {
	Dataset   string    `json:"dataset"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
