package memory

import (
	"context"
	"sync"

	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/repository"
)

// DocumentRepository keeps document metadata in memory.
type DocumentRepository struct {
	mu          sync.RWMutex
	documents   map[string]domain.GrievanceDocument
	byGrievance map[string][]string
}

// NewDocumentRepository creates an empty repository.
func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		documents:   make(map[string]domain.GrievanceDocument),
		byGrievance: make(map[string][]string),
	}
}

// Create stores document metadata.
func (r *DocumentRepository) Create(_ context.Context, document *domain.GrievanceDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents[document.ID] = *document
	r.byGrievance[document.GrievanceID] = append(r.byGrievance[document.GrievanceID], document.ID)
	return nil
}

// GetByID returns one document.
func (r *DocumentRepository) GetByID(_ context.Context, id string) (*domain.GrievanceDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	document, ok := r.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &document, nil
}

// ListByGrievance returns a grievance's documents in upload order.
func (r *DocumentRepository) ListByGrievance(_ context.Context, grievanceID string) ([]domain.GrievanceDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byGrievance[grievanceID]
	out := make([]domain.GrievanceDocument, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.documents[id])
	}
	return out, nil
}
