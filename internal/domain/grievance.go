package domain

import (
	"fmt"
	"strings"
	"time"
)

// GrievanceStatus enumerates lifecycle states for grievances.
type GrievanceStatus string

const (
	StatusSubmitted GrievanceStatus = "SUBMITTED"
	StatusAssigned  GrievanceStatus = "ASSIGNED"
	StatusInReview  GrievanceStatus = "IN_REVIEW"
	StatusResolved  GrievanceStatus = "RESOLVED"
	StatusClosed    GrievanceStatus = "CLOSED"
	StatusReopened  GrievanceStatus = "REOPENED"
	StatusEscalated GrievanceStatus = "ESCALATED"
)

// AllStatuses lists every lifecycle state.
var AllStatuses = []GrievanceStatus{
	StatusSubmitted,
	StatusAssigned,
	StatusInReview,
	StatusResolved,
	StatusClosed,
	StatusReopened,
	StatusEscalated,
}

// ParseStatus accepts a status name in any case.
func ParseStatus(raw string) (GrievanceStatus, error) {
	candidate := GrievanceStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range AllStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown grievance status %q", raw)
}

// IsTerminal reports whether the grievance is out of the SLA clock.
// CLOSED can still be reopened; terminal only means no SLA or escalation applies.
func (s GrievanceStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Grievance is the aggregate for citizen complaints.
//
// AssignedOfficerID holds the officer working the grievance in ASSIGNED, IN_REVIEW,
// RESOLVED and CLOSED. While ESCALATED it holds the department supervisor id instead.
// It is empty in SUBMITTED and REOPENED.
type Grievance struct {
	ID                string
	CitizenID         string
	DepartmentID      string
	CategoryID        string
	Title             string
	Description       string
	Status            GrievanceStatus
	IsEscalated       bool
	AssignedOfficerID string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}

// Clone returns a deep copy safe to mutate.
func (g *Grievance) Clone() *Grievance {
	if g == nil {
		return nil
	}
	clone := *g
	if g.ResolvedAt != nil {
		resolvedAt := *g.ResolvedAt
		clone.ResolvedAt = &resolvedAt
	}
	return &clone
}
