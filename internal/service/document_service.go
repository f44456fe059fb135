package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/repository"
	"github.com/egov/grievance-service/internal/storage"
	"github.com/egov/grievance-service/internal/worker"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

// BlobExecutor runs blob I/O off the request goroutine.
type BlobExecutor interface {
	Submit(ctx context.Context, task worker.Task) error
}

// DocumentService manages files attached to grievances.
type DocumentService struct {
	grievances *GrievanceService
	documents  repository.DocumentRepository
	blobs      storage.BlobStore
	executor   BlobExecutor
	maxBytes   int64
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// DocumentDependencies bundles collaborators for the document service.
type DocumentDependencies struct {
	Grievances   *GrievanceService
	DocumentRepo repository.DocumentRepository
	Blobs        storage.BlobStore
	Executor     BlobExecutor
	MaxBytes     int64
	Logger       *zap.Logger
	Clock        func() time.Time
	IDGenerator  func() string
}

// Upload is one file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// NewDocumentService constructs the service.
func NewDocumentService(deps DocumentDependencies) *DocumentService {
	s := &DocumentService{
		grievances: deps.Grievances,
		documents:  deps.DocumentRepo,
		blobs:      deps.Blobs,
		executor:   deps.Executor,
		maxBytes:   deps.MaxBytes,
		logger:     deps.Logger,
		now:        deps.Clock,
		newID:      deps.IDGenerator,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Attach stores files for a grievance. Only the citizen who filed it may attach.
func (s *DocumentService) Attach(ctx context.Context, actor domain.Actor, grievanceID string, files []Upload) ([]domain.GrievanceDocument, error) {
	grievance, err := s.grievances.Get(ctx, actor, grievanceID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleCitizen || grievance.CitizenID != actor.ID {
		return nil, apperrors.NewForbidden("only the citizen who filed the grievance can attach documents")
	}
	if len(files) == 0 {
		return nil, apperrors.NewValidationError("at least one file is required", nil)
	}
	if err := s.ValidateUploads(files); err != nil {
		return nil, err
	}

	stored := make([]domain.GrievanceDocument, 0, len(files))
	for _, f := range files {
		doc, err := s.store(ctx, actor, grievance.ID, f)
		if err != nil {
			return stored, err
		}
		stored = append(stored, *doc)
	}
	return stored, nil
}

// ValidateUploads rejects files whose declared size exceeds the limit. Streams with an
// unknown size are still bounded while they are written.
func (s *DocumentService) ValidateUploads(files []Upload) error {
	for _, f := range files {
		if s.maxBytes > 0 && f.Size > s.maxBytes {
			return s.tooLarge(f.FileName)
		}
	}
	return nil
}

func (s *DocumentService) store(ctx context.Context, actor domain.Actor, grievanceID string, f Upload) (*domain.GrievanceDocument, error) {
	if f.Content == nil {
		return nil, apperrors.NewValidationError("file content missing", map[string]any{"file_name": f.FileName})
	}

	id := s.newID()
	doc := &domain.GrievanceDocument{
		ID:          id,
		GrievanceID: grievanceID,
		UploadedBy:  actor.ID,
		FileName:    storage.SanitizeFileName(f.FileName),
		ContentType: contentTypeOrDefault(f.ContentType),
		StorageKey:  storage.DocumentKey(grievanceID, id, f.FileName),
	}

	content := f.Content
	if s.maxBytes > 0 {
		content = &maxBytesReader{r: f.Content, remaining: s.maxBytes}
	}

	var written int64
	write := func(taskCtx context.Context) error {
		n, err := s.blobs.Put(taskCtx, doc.StorageKey, content)
		written = n
		return err
	}
	var err error
	if s.executor != nil {
		err = s.executor.Submit(ctx, write)
	} else {
		err = write(ctx)
	}
	if errors.Is(err, errTooLarge) {
		return nil, s.tooLarge(f.FileName)
	}
	if err != nil {
		return nil, s.blobError(err, doc)
	}

	doc.SizeBytes = written
	doc.UploadedAt = s.now()
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return doc, nil
}

func (s *DocumentService) blobError(err error, doc *domain.GrievanceDocument) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewInternalError(fmt.Errorf("upload of %s interrupted: %w", doc.StorageKey, err))
	}
	s.logger.Error("document upload failed", zap.String("storage_key", doc.StorageKey), zap.Error(err))
	return apperrors.NewInternalError(err)
}

func (s *DocumentService) tooLarge(name string) error {
	return apperrors.NewValidationError(fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes), map[string]any{
		"file_name": name,
	})
}

// List returns the documents of a grievance the caller may read.
func (s *DocumentService) List(ctx context.Context, actor domain.Actor, grievanceID string) ([]domain.GrievanceDocument, error) {
	if _, err := s.grievances.Get(ctx, actor, grievanceID); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByGrievance(ctx, grievanceID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if docs == nil {
		docs = []domain.GrievanceDocument{}
	}
	return docs, nil
}

// Download opens a document's content. The caller must close the reader.
func (s *DocumentService) Download(ctx context.Context, actor domain.Actor, grievanceID, documentID string) (*domain.GrievanceDocument, io.ReadCloser, error) {
	if _, err := s.grievances.Get(ctx, actor, grievanceID); err != nil {
		return nil, nil, err
	}

	doc, err := s.documents.GetByID(ctx, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.NewNotFound("document", map[string]any{"document_id": documentID})
	}
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	if doc.GrievanceID != grievanceID {
		return nil, nil, apperrors.NewValidationError("document does not belong to grievance", map[string]any{
			"document_id":  documentID,
			"grievance_id": grievanceID,
		})
	}

	rc, err := s.blobs.Open(ctx, doc.StorageKey)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, nil, apperrors.NewNotFound("document file", map[string]any{"document_id": documentID})
	}
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return doc, rc, nil
}

func contentTypeOrDefault(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return "application/octet-stream"
	}
	return contentType
}

var errTooLarge = errors.New("file too large")

// maxBytesReader fails once more than remaining bytes are read, so an oversized
// upload aborts the blob write instead of leaving a partial file.
type maxBytesReader struct {
	r         io.Reader
	remaining int64
}

func (m *maxBytesReader) Read(p []byte) (int, error) {
	if m.remaining <= 0 {
		var probe [1]byte
		n, err := m.r.Read(probe[:])
		if n > 0 {
			return 0, errTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > m.remaining {
		p = p[:m.remaining]
	}
	n, err := m.r.Read(p)
	m.remaining -= int64(n)
	return n, err
}
