package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/egov/grievance-service/internal/domain"
)

// DocumentRepository persists document metadata. File bytes live in blob storage.
type DocumentRepository interface {
	Create(ctx context.Context, document *domain.GrievanceDocument) error
	GetByID(ctx context.Context, id string) (*domain.GrievanceDocument, error)
	ListByGrievance(ctx context.Context, grievanceID string) ([]domain.GrievanceDocument, error)
}

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs repository.
func NewDocumentRepository(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepository{pool: pool}
}

func (r *documentRepository) Create(ctx context.Context, document *domain.GrievanceDocument) error {
	const query = `
        INSERT INTO grievance_documents (id, grievance_id, uploaded_by, file_name, content_type, size_bytes, storage_key, uploaded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		document.ID,
		document.GrievanceID,
		document.UploadedBy,
		document.FileName,
		document.ContentType,
		document.SizeBytes,
		document.StorageKey,
		document.UploadedAt,
	)
	return err
}

const documentColumns = `id, grievance_id, uploaded_by, file_name, content_type, size_bytes, storage_key, uploaded_at`

func (r *documentRepository) GetByID(ctx context.Context, id string) (*domain.GrievanceDocument, error) {
	var document domain.GrievanceDocument
	err := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM grievance_documents WHERE id=$1`, id).Scan(
		&document.ID,
		&document.GrievanceID,
		&document.UploadedBy,
		&document.FileName,
		&document.ContentType,
		&document.SizeBytes,
		&document.StorageKey,
		&document.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &document, nil
}

func (r *documentRepository) ListByGrievance(ctx context.Context, grievanceID string) ([]domain.GrievanceDocument, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM grievance_documents WHERE grievance_id=$1 ORDER BY uploaded_at ASC`, grievanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GrievanceDocument
	for rows.Next() {
		var document domain.GrievanceDocument
		if err := rows.Scan(
			&document.ID,
			&document.GrievanceID,
			&document.UploadedBy,
			&document.FileName,
			&document.ContentType,
			&document.SizeBytes,
			&document.StorageKey,
			&document.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, document)
	}
	return result, rows.Err()
}
