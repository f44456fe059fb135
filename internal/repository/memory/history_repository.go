package memory

import (
	"context"
	"sync"

	"github.com/egov/grievance-service/internal/domain"
)

// HistoryRepository is an append-only in-memory ledger.
type HistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.StatusHistoryEntry
}

// NewHistoryRepository creates an empty ledger.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{entries: make(map[string][]domain.StatusHistoryEntry)}
}

// Append records entry after the existing entries of its grievance.
func (r *HistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entry
	if entry.OldStatus != nil {
		old := *entry.OldStatus
		stored.OldStatus = &old
	}
	r.entries[entry.GrievanceID] = append(r.entries[entry.GrievanceID], stored)
	return nil
}

// ListByGrievance returns entries in append order.
func (r *HistoryRepository) ListByGrievance(_ context.Context, grievanceID string) ([]domain.StatusHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[grievanceID]
	out := make([]domain.StatusHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}
