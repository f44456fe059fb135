package domain

import "time"

// StatusHistoryEntry is an immutable audit trail entry for one status transition.
// OldStatus is nil for the entry written when the grievance is created.
type StatusHistoryEntry struct {
	ID          string
	GrievanceID string
	OldStatus   *GrievanceStatus
	NewStatus   GrievanceStatus
	ChangedBy   string
	ChangedAt   time.Time
}
