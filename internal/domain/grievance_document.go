package domain

import "time"

// GrievanceDocument is metadata for a file attached to a grievance.
type GrievanceDocument struct {
	ID          string
	GrievanceID string
	UploadedBy  string
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	UploadedAt  time.Time
}
