package service

import (
	"context"
	"errors"

	"github.com/egov/grievance-service/internal/directory"
	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/reference"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

// AuthorizeRead is the single read-access rule for a grievance and every sub-resource
// (history, documents). ADMIN reads everything, CITIZEN their own filings, OFFICER what
// is assigned to them and SUPERVISOR their department.
func (s *GrievanceService) AuthorizeRead(ctx context.Context, actor domain.Actor, g *domain.Grievance) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleCitizen:
		if g.CitizenID == actor.ID {
			return nil
		}
	case domain.RoleOfficer:
		if g.AssignedOfficerID != "" && g.AssignedOfficerID == actor.ID {
			return nil
		}
	case domain.RoleSupervisor:
		dept, err := s.callerDepartment(ctx, actor)
		if err != nil {
			return err
		}
		if dept == g.DepartmentID {
			return nil
		}
	}
	return apperrors.NewForbidden("access denied")
}

// callerDepartment resolves the caller's department through the identity directory.
func (s *GrievanceService) callerDepartment(ctx context.Context, actor domain.Actor) (string, error) {
	user, err := s.identity.GetUser(ctx, actor.ID)
	if err != nil {
		return "", directoryError(err, "user", map[string]any{"user_id": actor.ID})
	}
	return user.DepartmentID, nil
}

func directoryError(err error, resource string, details map[string]any) error {
	if errors.Is(err, directory.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.NewDirectoryUnavailable("identity", err)
}

func referenceError(err error, g *domain.Grievance) error {
	if errors.Is(err, reference.ErrUnknownDepartment) || errors.Is(err, reference.ErrUnknownCategory) {
		return apperrors.NewValidationError("invalid department or category", map[string]any{
			"department_id": g.DepartmentID,
			"category_id":   g.CategoryID,
		})
	}
	return apperrors.NewInternalError(err)
}
