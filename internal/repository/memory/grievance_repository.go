// Package memory provides in-process repositories used when no database is configured
// and in tests. They honor the same contracts as the PostgreSQL implementations,
// including the version compare-and-swap on update.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/repository"
)

// GrievanceRepository is an in-memory implementation of repository.GrievanceRepository.
type GrievanceRepository struct {
	mu         sync.RWMutex
	grievances map[string]*domain.Grievance
}

// NewGrievanceRepository creates an empty repository.
func NewGrievanceRepository() *GrievanceRepository {
	return &GrievanceRepository{grievances: make(map[string]*domain.Grievance)}
}

// Create stores a copy of grievance.
func (r *GrievanceRepository) Create(_ context.Context, grievance *domain.Grievance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.grievances[grievance.ID] = grievance.Clone()
	return nil
}

// Update replaces the stored grievance when the versions match.
func (r *GrievanceRepository) Update(ctx context.Context, grievance *domain.Grievance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.grievances[grievance.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if existing.Version != grievance.Version {
		return repository.ErrVersionConflict
	}

	stored := grievance.Clone()
	stored.Version++
	r.grievances[grievance.ID] = stored
	grievance.Version = stored.Version
	return nil
}

// GetByID returns a copy of the stored grievance.
func (r *GrievanceRepository) GetByID(_ context.Context, id string) (*domain.Grievance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grievance, ok := r.grievances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return grievance.Clone(), nil
}

// List returns copies matching filter, newest first.
func (r *GrievanceRepository) List(_ context.Context, filter repository.GrievanceFilter) ([]domain.Grievance, error) {
	r.mu.RLock()
	matched := make([]domain.Grievance, 0, len(r.grievances))
	for _, grievance := range r.grievances {
		if matches(grievance, filter) {
			matched = append(matched, *grievance.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Limit <= 0 {
		return matched, nil
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Grievance{}, nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matches(g *domain.Grievance, filter repository.GrievanceFilter) bool {
	if filter.CitizenID != nil && g.CitizenID != *filter.CitizenID {
		return false
	}
	if filter.DepartmentID != nil && g.DepartmentID != *filter.DepartmentID {
		return false
	}
	if filter.AssignedOfficerID != nil && g.AssignedOfficerID != *filter.AssignedOfficerID {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, g.Status) {
		return false
	}
	if containsStatus(filter.ExcludeStatuses, g.Status) {
		return false
	}
	return true
}

func containsStatus(statuses []domain.GrievanceStatus, status domain.GrievanceStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
