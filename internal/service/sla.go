package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/repository"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

// isBreached reports whether an open grievance has been open longer than its SLA,
// counting whole elapsed hours.
func (s *GrievanceService) isBreached(ctx context.Context, g *domain.Grievance, now time.Time) (bool, error) {
	if g.Status.IsTerminal() {
		return false, nil
	}
	slaHours, err := s.reference.SLAHours(ctx, g.DepartmentID, g.CategoryID)
	if err != nil {
		return false, err
	}
	elapsedHours := int64(now.Sub(g.CreatedAt) / time.Hour)
	return elapsedHours > int64(slaHours), nil
}

// Sweep returns every open grievance that is breaching SLA plus every grievance
// already escalated. Order is not significant.
func (s *GrievanceService) Sweep(ctx context.Context) ([]domain.Grievance, error) {
	open, err := s.grievances.List(ctx, repository.GrievanceFilter{
		ExcludeStatuses: []domain.GrievanceStatus{domain.StatusResolved, domain.StatusClosed},
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now()
	var (
		mu        sync.Mutex
		breaching []domain.Grievance
		escalated []domain.Grievance
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.sweepConcurrency)

	for i := range open {
		g := open[i]
		if g.IsEscalated {
			escalated = append(escalated, g)
			continue
		}
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			breached, err := s.isBreached(gctx, &g, now)
			if err != nil {
				s.logger.Warn("sla sweep skipped grievance",
					zap.String("grievance_id", g.ID),
					zap.String("department_id", g.DepartmentID),
					zap.String("category_id", g.CategoryID),
					zap.Error(err),
				)
				return nil
			}
			if breached {
				mu.Lock()
				breaching = append(breaching, g)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	atRisk := append(escalated, breaching...)
	sort.Slice(atRisk, func(i, j int) bool { return atRisk[i].CreatedAt.Before(atRisk[j].CreatedAt) })
	if atRisk == nil {
		atRisk = []domain.Grievance{}
	}
	return atRisk, nil
}

// SLABreaches is the reporting view of Sweep. ADMIN sees all departments and
// SUPERVISOR only their own.
func (s *GrievanceService) SLABreaches(ctx context.Context, actor domain.Actor) ([]domain.Grievance, error) {
	var department string
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleSupervisor:
		dept, err := s.callerDepartment(ctx, actor)
		if err != nil {
			return nil, err
		}
		department = dept
	default:
		return nil, apperrors.NewForbidden("only ADMIN or SUPERVISOR can view SLA breaches")
	}

	breaches, err := s.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	if department == "" {
		return breaches, nil
	}
	scoped := make([]domain.Grievance, 0, len(breaches))
	for _, g := range breaches {
		if g.DepartmentID == department {
			scoped = append(scoped, g)
		}
	}
	return scoped, nil
}
