package dto

import (
	"time"

	"github.com/egov/grievance-service/internal/domain"
)

// CreateGrievanceRequest payload. Sent as the JSON body or as the "request" part of a
// multipart form.
type CreateGrievanceRequest struct {
	DepartmentID string `json:"department_id"`
	CategoryID   string `json:"category_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
}

// AssignRequest payload.
type AssignRequest struct {
	OfficerID string `json:"officer_id"`
}

// GrievanceResponse represents a grievance.
type GrievanceResponse struct {
	ID                string                 `json:"id"`
	CitizenID         string                 `json:"citizen_id"`
	DepartmentID      string                 `json:"department_id"`
	CategoryID        string                 `json:"category_id"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Status            domain.GrievanceStatus `json:"status"`
	IsEscalated       bool                   `json:"is_escalated"`
	AssignedOfficerID *string                `json:"assigned_officer_id"`
	Version           int64                  `json:"version"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	ResolvedAt        *time.Time             `json:"resolved_at"`
	Documents         []DocumentResponse     `json:"documents,omitempty"`
}

// HistoryEntryResponse is one status ledger row.
type HistoryEntryResponse struct {
	ID          string                  `json:"id"`
	GrievanceID string                  `json:"grievance_id"`
	OldStatus   *domain.GrievanceStatus `json:"old_status"`
	NewStatus   domain.GrievanceStatus  `json:"new_status"`
	ChangedBy   string                  `json:"changed_by"`
	ChangedAt   time.Time               `json:"changed_at"`
}

// DocumentResponse is attachment metadata.
type DocumentResponse struct {
	ID          string    `json:"id"`
	GrievanceID string    `json:"grievance_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
