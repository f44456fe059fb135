package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/egov/grievance-service/internal/domain"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

// ReopenWindow is how long after resolution a citizen may reopen a closed grievance.
// The boundary is inclusive.
const ReopenWindow = 7 * 24 * time.Hour

type action string

const (
	actionCreate   action = "create"
	actionAssign   action = "assign"
	actionInReview action = "in_review"
	actionResolve  action = "resolve"
	actionClose    action = "close"
	actionReopen   action = "reopen"
	actionEscalate action = "escalate"
)

// transitionRule is one row of the lifecycle table: which states an action may start
// from, where it leads and which roles may perform it.
type transitionRule struct {
	from  []domain.GrievanceStatus
	to    domain.GrievanceStatus
	roles []domain.Role
}

var transitionTable = map[action]transitionRule{
	actionCreate: {
		to:    domain.StatusSubmitted,
		roles: []domain.Role{domain.RoleCitizen},
	},
	actionAssign: {
		from:  []domain.GrievanceStatus{domain.StatusSubmitted, domain.StatusReopened, domain.StatusEscalated},
		to:    domain.StatusAssigned,
		roles: []domain.Role{domain.RoleAdmin, domain.RoleSupervisor},
	},
	actionInReview: {
		from:  []domain.GrievanceStatus{domain.StatusAssigned},
		to:    domain.StatusInReview,
		roles: []domain.Role{domain.RoleOfficer},
	},
	actionResolve: {
		from:  []domain.GrievanceStatus{domain.StatusInReview},
		to:    domain.StatusResolved,
		roles: []domain.Role{domain.RoleOfficer},
	},
	actionClose: {
		from:  []domain.GrievanceStatus{domain.StatusResolved},
		to:    domain.StatusClosed,
		roles: []domain.Role{domain.RoleAdmin, domain.RoleSupervisor, domain.RoleOfficer},
	},
	actionReopen: {
		from:  []domain.GrievanceStatus{domain.StatusClosed},
		to:    domain.StatusReopened,
		roles: []domain.Role{domain.RoleCitizen},
	},
	actionEscalate: {
		from: []domain.GrievanceStatus{
			domain.StatusSubmitted,
			domain.StatusAssigned,
			domain.StatusInReview,
			domain.StatusReopened,
			domain.StatusEscalated,
		},
		to:    domain.StatusEscalated,
		roles: []domain.Role{domain.RoleCitizen},
	},
}

func (r transitionRule) permits(role domain.Role) bool {
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

func (r transitionRule) validFrom(status domain.GrievanceStatus) bool {
	for _, s := range r.from {
		if s == status {
			return true
		}
	}
	return false
}

func (r transitionRule) roleNames() string {
	names := make([]string, len(r.roles))
	for i, role := range r.roles {
		names[i] = string(role)
	}
	return strings.Join(names, " or ")
}

// guardFunc checks action-specific preconditions on the loaded grievance.
// It must not modify g.
type guardFunc func(ctx context.Context, g *domain.Grievance, now time.Time) error

// mutateFunc applies the action to a private copy.
type mutateFunc func(g *domain.Grievance, now time.Time)

// transition runs one action: role, load, source state, guard, mutate copy,
// compare-and-swap write, then the history and event side effects.
func (s *GrievanceService) transition(ctx context.Context, act action, actor domain.Actor, id string, guard guardFunc, mutate mutateFunc) (_ *domain.Grievance, err error) {
	defer func() { s.recordOutcome(act, err) }()

	rule := transitionTable[act]
	if !rule.permits(actor.Role) {
		return nil, apperrors.NewForbidden(fmt.Sprintf("only %s can %s grievances", rule.roleNames(), verb(act)))
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !rule.validFrom(current.Status) {
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("cannot %s a grievance in status %s", verb(act), current.Status),
			map[string]any{"grievance_id": id, "status": string(current.Status)},
		)
	}

	now := s.now()
	if guard != nil {
		if err := guard(ctx, current, now); err != nil {
			return nil, err
		}
	}

	next := current.Clone()
	if mutate != nil {
		mutate(next, now)
	}
	next.Status = rule.to
	next.UpdatedAt = now

	if err := s.save(ctx, next); err != nil {
		return nil, err
	}

	previous := current.Status
	s.afterCommit(ctx, next, &previous, actor.ID, now)
	return next.Clone(), nil
}

func verb(act action) string {
	if act == actionInReview {
		return "review"
	}
	return string(act)
}

// Assign hands a grievance to an officer of its department.
func (s *GrievanceService) Assign(ctx context.Context, actor domain.Actor, id, officerID string) (*domain.Grievance, error) {
	officerID = strings.TrimSpace(officerID)
	guard := func(ctx context.Context, g *domain.Grievance, _ time.Time) error {
		if officerID == "" {
			return apperrors.NewValidationError("officer id is required", nil)
		}
		if actor.Role == domain.RoleSupervisor {
			dept, err := s.callerDepartment(ctx, actor)
			if err != nil {
				return err
			}
			if dept != g.DepartmentID {
				return apperrors.NewForbidden("supervisors can only assign grievances of their own department")
			}
		}

		officer, err := s.identity.GetUser(ctx, officerID)
		if err != nil {
			return directoryError(err, "officer", map[string]any{"officer_id": officerID})
		}
		if !strings.EqualFold(officer.Role, string(domain.RoleOfficer)) {
			return apperrors.NewValidationError("assignee must have role OFFICER", map[string]any{"officer_id": officerID})
		}
		if officer.DepartmentID != g.DepartmentID {
			return apperrors.NewValidationError("officer does not belong to the grievance department", map[string]any{
				"officer_id":    officerID,
				"department_id": g.DepartmentID,
			})
		}
		return nil
	}
	return s.transition(ctx, actionAssign, actor, id, guard, func(g *domain.Grievance, _ time.Time) {
		g.AssignedOfficerID = officerID
	})
}

// MarkInReview moves an assigned grievance into review by its officer.
func (s *GrievanceService) MarkInReview(ctx context.Context, actor domain.Actor, id string) (*domain.Grievance, error) {
	return s.transition(ctx, actionInReview, actor, id, requireAssignedOfficer(actor), nil)
}

// Resolve marks a grievance resolved by its officer and stamps ResolvedAt.
func (s *GrievanceService) Resolve(ctx context.Context, actor domain.Actor, id string) (*domain.Grievance, error) {
	return s.transition(ctx, actionResolve, actor, id, requireAssignedOfficer(actor), func(g *domain.Grievance, now time.Time) {
		resolvedAt := now
		g.ResolvedAt = &resolvedAt
	})
}

// Close closes a resolved grievance. Officers may only close their own.
func (s *GrievanceService) Close(ctx context.Context, actor domain.Actor, id string) (*domain.Grievance, error) {
	guard := func(ctx context.Context, g *domain.Grievance, now time.Time) error {
		if actor.Role != domain.RoleOfficer {
			return nil
		}
		return requireAssignedOfficer(actor)(ctx, g, now)
	}
	return s.transition(ctx, actionClose, actor, id, guard, nil)
}

// Reopen lets the filing citizen reopen a closed grievance within ReopenWindow of resolution.
func (s *GrievanceService) Reopen(ctx context.Context, actor domain.Actor, id string) (*domain.Grievance, error) {
	guard := func(_ context.Context, g *domain.Grievance, now time.Time) error {
		if g.CitizenID != actor.ID {
			return apperrors.NewForbidden("cannot reopen someone else's grievance")
		}
		if g.ResolvedAt == nil {
			return apperrors.NewValidationError("resolved timestamp missing", map[string]any{"grievance_id": g.ID})
		}
		if now.Sub(*g.ResolvedAt) > ReopenWindow {
			return apperrors.NewValidationError("reopen window expired (7 days)", map[string]any{
				"grievance_id": g.ID,
				"resolved_at":  g.ResolvedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil
	}
	return s.transition(ctx, actionReopen, actor, id, guard, func(g *domain.Grievance, _ time.Time) {
		g.AssignedOfficerID = ""
		g.IsEscalated = false
	})
}

// Escalate hands an overdue grievance to the department supervisor. The supervisor id
// is stored in AssignedOfficerID.
func (s *GrievanceService) Escalate(ctx context.Context, actor domain.Actor, id string) (*domain.Grievance, error) {
	var supervisorID string
	guard := func(ctx context.Context, g *domain.Grievance, now time.Time) error {
		if g.CitizenID != actor.ID {
			return apperrors.NewForbidden("cannot escalate someone else's grievance")
		}
		if g.IsEscalated {
			return apperrors.NewInvalidTransition("grievance already escalated", map[string]any{"grievance_id": g.ID})
		}

		breached, err := s.isBreached(ctx, g, now)
		if err != nil {
			return referenceError(err, g)
		}
		if !breached {
			return apperrors.NewValidationError("SLA not breached", map[string]any{"grievance_id": g.ID})
		}

		supervisorID, err = s.identity.SupervisorForDepartment(ctx, g.DepartmentID)
		if err != nil {
			return directoryError(err, "supervisor", map[string]any{"department_id": g.DepartmentID})
		}
		return nil
	}
	return s.transition(ctx, actionEscalate, actor, id, guard, func(g *domain.Grievance, _ time.Time) {
		g.AssignedOfficerID = supervisorID
		g.IsEscalated = true
	})
}

func requireAssignedOfficer(actor domain.Actor) guardFunc {
	return func(_ context.Context, g *domain.Grievance, _ time.Time) error {
		if g.AssignedOfficerID != actor.ID {
			return apperrors.NewForbidden("grievance is not assigned to you")
		}
		return nil
	}
}
