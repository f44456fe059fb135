package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/directory"
	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/events"
	"github.com/egov/grievance-service/internal/observability"
	"github.com/egov/grievance-service/internal/reference"
	"github.com/egov/grievance-service/internal/repository"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

const (
	titleMinLen       = 3
	titleMaxLen       = 50
	descriptionMinLen = 3
	descriptionMaxLen = 500

	defaultPageSize = 20
	maxPageSize     = 100
)

// GrievanceService owns the grievance aggregate and its lifecycle.
type GrievanceService struct {
	grievances repository.GrievanceRepository
	history    repository.HistoryRepository
	reference  reference.Directory
	identity   directory.IdentityDirectory
	publisher  events.Publisher
	logger     *zap.Logger
	metrics    *observability.Metrics

	now   func() time.Time
	newID func() string

	writeTimeout      time.Duration
	sideEffectTimeout time.Duration
	sweepConcurrency  int

	sideEffects sync.WaitGroup
	tailsMu     sync.Mutex
	tails       map[string]chan struct{}
}

// GrievanceDependencies bundles collaborators for the grievance service.
type GrievanceDependencies struct {
	GrievanceRepo     repository.GrievanceRepository
	HistoryRepo       repository.HistoryRepository
	Reference         reference.Directory
	Identity          directory.IdentityDirectory
	Publisher         events.Publisher
	Logger            *zap.Logger
	Metrics           *observability.Metrics
	Clock             func() time.Time
	IDGenerator       func() string
	WriteTimeout      time.Duration
	SideEffectTimeout time.Duration
	SweepConcurrency  int
}

// CreateGrievanceInput describes a new complaint.
type CreateGrievanceInput struct {
	DepartmentID string
	CategoryID   string
	Title        string
	Description  string
}

// ListFilter narrows role-scoped listings.
type ListFilter struct {
	Status       *domain.GrievanceStatus
	DepartmentID *string
	Pagination
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize applies defaults and bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

func (p Pagination) limitOffset() (int, int) {
	p = p.Normalize()
	return p.PageSize, (p.Page - 1) * p.PageSize
}

// NewGrievanceService constructs the service.
func NewGrievanceService(deps GrievanceDependencies) *GrievanceService {
	s := &GrievanceService{
		grievances:        deps.GrievanceRepo,
		history:           deps.HistoryRepo,
		reference:         deps.Reference,
		identity:          deps.Identity,
		publisher:         deps.Publisher,
		logger:            deps.Logger,
		metrics:           deps.Metrics,
		now:               deps.Clock,
		newID:             deps.IDGenerator,
		writeTimeout:      deps.WriteTimeout,
		sideEffectTimeout: deps.SideEffectTimeout,
		sweepConcurrency:  deps.SweepConcurrency,
		tails:             make(map[string]chan struct{}),
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
	if s.sweepConcurrency <= 0 {
		s.sweepConcurrency = 8
	}
	return s
}

// Create files a new grievance in SUBMITTED on behalf of a citizen.
func (s *GrievanceService) Create(ctx context.Context, actor domain.Actor, input CreateGrievanceInput) (_ *domain.Grievance, err error) {
	defer func() { s.recordOutcome(actionCreate, err) }()

	if !transitionTable[actionCreate].permits(actor.Role) {
		return nil, apperrors.NewForbidden("only CITIZEN can create grievances")
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.DepartmentID = strings.TrimSpace(input.DepartmentID)
	input.CategoryID = strings.TrimSpace(input.CategoryID)
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	valid, err := s.reference.IsValid(ctx, input.DepartmentID, input.CategoryID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !valid {
		return nil, apperrors.NewValidationError("invalid department or category", map[string]any{
			"department_id": input.DepartmentID,
			"category_id":   input.CategoryID,
		})
	}

	now := s.now()
	grievance := &domain.Grievance{
		ID:           s.newID(),
		CitizenID:    actor.ID,
		DepartmentID: input.DepartmentID,
		CategoryID:   input.CategoryID,
		Title:        input.Title,
		Description:  input.Description,
		Status:       domain.StatusSubmitted,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	writeCtx, cancel := s.writeContext(ctx)
	defer cancel()
	if err := s.grievances.Create(writeCtx, grievance); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.afterCommit(ctx, grievance, nil, actor.ID, now)
	return grievance.Clone(), nil
}

func validateCreateInput(input CreateGrievanceInput) error {
	details := map[string]any{}
	if n := utf8.RuneCountInString(input.Title); n < titleMinLen || n > titleMaxLen {
		details["title"] = "must be between 3 and 50 characters"
	}
	if n := utf8.RuneCountInString(input.Description); n < descriptionMinLen || n > descriptionMaxLen {
		details["description"] = "must be between 3 and 500 characters"
	}
	if input.DepartmentID == "" {
		details["department_id"] = "is required"
	}
	if input.CategoryID == "" {
		details["category_id"] = "is required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid grievance", details)
	}
	return nil
}

// Get returns one grievance if the caller may read it.
func (s *GrievanceService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Grievance, error) {
	grievance, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.AuthorizeRead(ctx, actor, grievance); err != nil {
		return nil, err
	}
	return grievance, nil
}

// History returns the status ledger of a grievance ordered by change time.
func (s *GrievanceService) History(ctx context.Context, actor domain.Actor, id string) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByGrievance(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ChangedAt.Before(entries[j].ChangedAt)
	})
	return entries, nil
}

// List returns grievances visible to the caller's role, filtered and paginated.
func (s *GrievanceService) List(ctx context.Context, actor domain.Actor, filter ListFilter) ([]domain.Grievance, error) {
	repoFilter := repository.GrievanceFilter{DepartmentID: filter.DepartmentID}
	if filter.Status != nil {
		repoFilter.Statuses = []domain.GrievanceStatus{*filter.Status}
	}
	repoFilter.Limit, repoFilter.Offset = filter.Pagination.limitOffset()

	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleSupervisor:
		dept, err := s.callerDepartment(ctx, actor)
		if err != nil {
			return nil, err
		}
		repoFilter.DepartmentID = &dept
	case domain.RoleOfficer:
		officerID := actor.ID
		repoFilter.AssignedOfficerID = &officerID
	case domain.RoleCitizen:
		citizenID := actor.ID
		repoFilter.CitizenID = &citizenID
	default:
		return nil, apperrors.NewForbidden("access denied")
	}
	return s.list(ctx, repoFilter)
}

// ListByCitizen lists a citizen's grievances. Citizens may only list their own.
func (s *GrievanceService) ListByCitizen(ctx context.Context, actor domain.Actor, citizenID string, page Pagination) ([]domain.Grievance, error) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleCitizen:
		if actor.ID != citizenID {
			return nil, apperrors.NewForbidden("citizens can only list their own grievances")
		}
	default:
		return nil, apperrors.NewForbidden("only ADMIN or the citizen can list a citizen's grievances")
	}
	limit, offset := page.limitOffset()
	return s.list(ctx, repository.GrievanceFilter{CitizenID: &citizenID, Limit: limit, Offset: offset})
}

// ListByDepartment lists a department's grievances. Supervisors may only list their own department.
func (s *GrievanceService) ListByDepartment(ctx context.Context, actor domain.Actor, departmentID string, page Pagination) ([]domain.Grievance, error) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleSupervisor:
		dept, err := s.callerDepartment(ctx, actor)
		if err != nil {
			return nil, err
		}
		if dept != departmentID {
			return nil, apperrors.NewForbidden("supervisors can only list their own department")
		}
	default:
		return nil, apperrors.NewForbidden("only ADMIN or SUPERVISOR can list department grievances")
	}
	limit, offset := page.limitOffset()
	return s.list(ctx, repository.GrievanceFilter{DepartmentID: &departmentID, Limit: limit, Offset: offset})
}

func (s *GrievanceService) list(ctx context.Context, filter repository.GrievanceFilter) ([]domain.Grievance, error) {
	grievances, err := s.grievances.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if grievances == nil {
		grievances = []domain.Grievance{}
	}
	return grievances, nil
}

func (s *GrievanceService) load(ctx context.Context, id string) (*domain.Grievance, error) {
	grievance, err := s.grievances.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("grievance", map[string]any{"grievance_id": id})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return grievance, nil
}

// save writes with a context detached from the caller, so an issued write either
// commits or fails on its own deadline rather than on client disconnect.
func (s *GrievanceService) save(ctx context.Context, grievance *domain.Grievance) error {
	writeCtx, cancel := s.writeContext(ctx)
	defer cancel()

	err := s.grievances.Update(writeCtx, grievance)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("grievance was modified concurrently; reload and retry", map[string]any{
			"grievance_id": grievance.ID,
		})
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("grievance", map[string]any{"grievance_id": grievance.ID})
	default:
		return apperrors.NewInternalError(err)
	}
}

func (s *GrievanceService) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.writeTimeout > 0 {
		return context.WithTimeout(detached, s.writeTimeout)
	}
	return detached, func() {}
}

func (s *GrievanceService) recordOutcome(act action, err error) {
	if err == nil {
		s.metrics.RecordTransition(string(act), "ok")
		return
	}
	s.metrics.RecordTransition(string(act), apperrors.ToDomainError(err).Code)
}
