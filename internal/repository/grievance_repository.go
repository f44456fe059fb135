package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/egov/grievance-service/internal/domain"
)

// GrievanceFilter captures list parameters. A zero Limit returns every match.
type GrievanceFilter struct {
	CitizenID         *string
	DepartmentID      *string
	AssignedOfficerID *string
	Statuses          []domain.GrievanceStatus
	ExcludeStatuses   []domain.GrievanceStatus
	Limit             int
	Offset            int
}

// GrievanceRepository encapsulates grievance persistence.
//
// Update is a compare-and-swap on Version: it succeeds only when the stored version
// equals grievance.Version, and on success increments grievance.Version.
type GrievanceRepository interface {
	Create(ctx context.Context, grievance *domain.Grievance) error
	Update(ctx context.Context, grievance *domain.Grievance) error
	GetByID(ctx context.Context, id string) (*domain.Grievance, error)
	List(ctx context.Context, filter GrievanceFilter) ([]domain.Grievance, error)
}

type grievanceRepository struct {
	pool *pgxpool.Pool
}

// NewGrievanceRepository instantiates the PostgreSQL repository.
func NewGrievanceRepository(pool *pgxpool.Pool) GrievanceRepository {
	return &grievanceRepository{pool: pool}
}

const grievanceColumns = `id, citizen_id, department_id, category_id, title, description, status,
               is_escalated, assigned_officer_id, version, created_at, updated_at, resolved_at`

func (r *grievanceRepository) Create(ctx context.Context, grievance *domain.Grievance) error {
	const query = `
        INSERT INTO grievances (id, citizen_id, department_id, category_id, title, description, status,
            is_escalated, assigned_officer_id, version, created_at, updated_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.pool.Exec(ctx, query,
		grievance.ID,
		grievance.CitizenID,
		grievance.DepartmentID,
		grievance.CategoryID,
		grievance.Title,
		grievance.Description,
		string(grievance.Status),
		grievance.IsEscalated,
		nullable(grievance.AssignedOfficerID),
		grievance.Version,
		grievance.CreatedAt,
		grievance.UpdatedAt,
		grievance.ResolvedAt,
	)
	return err
}

func (r *grievanceRepository) Update(ctx context.Context, grievance *domain.Grievance) error {
	const query = `
        UPDATE grievances SET status=$1, is_escalated=$2, assigned_officer_id=$3, resolved_at=$4,
            updated_at=$5, version=version+1
        WHERE id=$6 AND version=$7`
	cmd, err := r.pool.Exec(ctx, query,
		string(grievance.Status),
		grievance.IsEscalated,
		nullable(grievance.AssignedOfficerID),
		grievance.ResolvedAt,
		grievance.UpdatedAt,
		grievance.ID,
		grievance.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM grievances WHERE id=$1)`, grievance.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	grievance.Version++
	return nil
}

func (r *grievanceRepository) GetByID(ctx context.Context, id string) (*domain.Grievance, error) {
	query := `SELECT ` + grievanceColumns + ` FROM grievances WHERE id=$1`
	grievance, err := scanGrievance(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return grievance, nil
}

func (r *grievanceRepository) List(ctx context.Context, filter GrievanceFilter) ([]domain.Grievance, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CitizenID != nil {
		args = append(args, *filter.CitizenID)
		clauses = append(clauses, fmt.Sprintf("citizen_id=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.AssignedOfficerID != nil {
		args = append(args, *filter.AssignedOfficerID)
		clauses = append(clauses, fmt.Sprintf("assigned_officer_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", statusPlaceholders(&args, filter.Statuses)))
	}
	if len(filter.ExcludeStatuses) > 0 {
		clauses = append(clauses, fmt.Sprintf("status NOT IN (%s)", statusPlaceholders(&args, filter.ExcludeStatuses)))
	}

	query := fmt.Sprintf(`SELECT %s FROM grievances WHERE %s ORDER BY created_at DESC, id`,
		grievanceColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Grievance
	for rows.Next() {
		grievance, err := scanGrievance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *grievance)
	}
	return result, rows.Err()
}

func statusPlaceholders(args *[]any, statuses []domain.GrievanceStatus) string {
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		*args = append(*args, string(status))
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return strings.Join(placeholders, ",")
}

func scanGrievance(row pgx.Row) (*domain.Grievance, error) {
	var (
		grievance domain.Grievance
		status    string
		officerID *string
	)
	if err := row.Scan(
		&grievance.ID,
		&grievance.CitizenID,
		&grievance.DepartmentID,
		&grievance.CategoryID,
		&grievance.Title,
		&grievance.Description,
		&status,
		&grievance.IsEscalated,
		&officerID,
		&grievance.Version,
		&grievance.CreatedAt,
		&grievance.UpdatedAt,
		&grievance.ResolvedAt,
	); err != nil {
		return nil, err
	}
	grievance.Status = domain.GrievanceStatus(status)
	if officerID != nil {
		grievance.AssignedOfficerID = *officerID
	}
	return &grievance, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
