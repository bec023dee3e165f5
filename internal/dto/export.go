package dto

import "time"

// SwapExportRequest is the body of POST /admin/swaps/export.
type SwapExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf CSV PDF"`
	Status string `json:"status"`
}

// ExportResult points at a generated file behind a signed link.
type ExportResult struct {
	ID          string    `json:"id"`
	Format      string    `json:"format"`
	RowCount    int       `json:"rowCount"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
