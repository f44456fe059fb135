package events

import (
	"time"

	"github.com/egov/grievance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventGrievanceStatusChanged is emitted once per committed status transition, creation included.
	EventGrievanceStatusChanged EventType = "grievance-status-changed"

	// TopicGrievanceStatusChanged is the default broker topic.
	TopicGrievanceStatusChanged = string(EventGrievanceStatusChanged)
)

// GrievanceStatusChangedEvent is the wire contract consumed by the notification service.
// OldStatus is omitted for the creation event. AssignedOfficerID is null while
// nobody is assigned.
type GrievanceStatusChangedEvent struct {
	GrievanceID       string    `json:"grievanceId"`
	CitizenID         string    `json:"citizenId"`
	DepartmentID      string    `json:"departmentId"`
	AssignedOfficerID *string   `json:"assignedOfficerId"`
	OldStatus         string    `json:"oldStatus,omitempty"`
	NewStatus         string    `json:"newStatus"`
	ChangedBy         string    `json:"changedBy"`
	ChangedAt         time.Time `json:"changedAt"`
}

// NewStatusChangedEvent builds the event for a committed grievance and its history entry.
func NewStatusChangedEvent(grievance *domain.Grievance, entry *domain.StatusHistoryEntry) GrievanceStatusChangedEvent {
	event := GrievanceStatusChangedEvent{
		GrievanceID:  grievance.ID,
		CitizenID:    grievance.CitizenID,
		DepartmentID: grievance.DepartmentID,
		NewStatus:    string(entry.NewStatus),
		ChangedBy:    entry.ChangedBy,
		ChangedAt:    entry.ChangedAt,
	}
	if grievance.AssignedOfficerID != "" {
		officer := grievance.AssignedOfficerID
		event.AssignedOfficerID = &officer
	}
	if entry.OldStatus != nil {
		event.OldStatus = string(*entry.OldStatus)
	}
	return event
}
