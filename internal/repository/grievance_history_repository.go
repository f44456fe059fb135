package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/egov/grievance-service/internal/domain"
)

// HistoryRepository stores the append-only status ledger. There is no update or delete.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	ListByGrievance(ctx context.Context, grievanceID string) ([]domain.StatusHistoryEntry, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	const query = `
        INSERT INTO grievance_status_history (id, grievance_id, old_status, new_status, changed_by, changed_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	var oldStatus *string
	if entry.OldStatus != nil {
		s := string(*entry.OldStatus)
		oldStatus = &s
	}
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.GrievanceID,
		oldStatus,
		string(entry.NewStatus),
		entry.ChangedBy,
		entry.ChangedAt,
	)
	return err
}

func (r *historyRepository) ListByGrievance(ctx context.Context, grievanceID string) ([]domain.StatusHistoryEntry, error) {
	const query = `
        SELECT id, grievance_id, old_status, new_status, changed_by, changed_at
        FROM grievance_status_history WHERE grievance_id=$1 ORDER BY changed_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, grievanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusHistoryEntry
	for rows.Next() {
		var (
			entry     domain.StatusHistoryEntry
			oldStatus *string
			newStatus string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.GrievanceID,
			&oldStatus,
			&newStatus,
			&entry.ChangedBy,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		if oldStatus != nil {
			status := domain.GrievanceStatus(*oldStatus)
			entry.OldStatus = &status
		}
		entry.NewStatus = domain.GrievanceStatus(newStatus)
		result = append(result, entry)
	}
	return result, rows.Err()
}
