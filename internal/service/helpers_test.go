package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/egov/grievance-service/internal/directory"
	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/events"
	"github.com/egov/grievance-service/internal/observability"
	"github.com/egov/grievance-service/internal/reference"
	"github.com/egov/grievance-service/internal/repository"
	"github.com/egov/grievance-service/internal/repository/memory"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

var (
	admin        = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	citizen      = domain.Actor{ID: "citizen-1", Role: domain.RoleCitizen}
	otherCitizen = domain.Actor{ID: "citizen-2", Role: domain.RoleCitizen}
	officer      = domain.Actor{ID: "officer-1", Role: domain.RoleOfficer}
	otherOfficer = domain.Actor{ID: "officer-2", Role: domain.RoleOfficer}
	supervisor   = domain.Actor{ID: "supervisor-1", Role: domain.RoleSupervisor}
	foreignSup   = domain.Actor{ID: "supervisor-2", Role: domain.RoleSupervisor}
)

// fakeDirectory is an in-memory identity directory.
type fakeDirectory struct {
	mu          sync.Mutex
	users       map[string]*directory.User
	supervisors map[string]string
	err         error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[string]*directory.User{
			"admin-1":      {ID: "admin-1", Role: "ADMIN"},
			"citizen-1":    {ID: "citizen-1", Role: "CITIZEN"},
			"citizen-2":    {ID: "citizen-2", Role: "CITIZEN"},
			"officer-1":    {ID: "officer-1", Role: "OFFICER", DepartmentID: "D001"},
			"officer-2":    {ID: "officer-2", Role: "OFFICER", DepartmentID: "D001"},
			"officer-9":    {ID: "officer-9", Role: "OFFICER", DepartmentID: "D002"},
			"supervisor-1": {ID: "supervisor-1", Role: "SUPERVISOR", DepartmentID: "D001"},
			"supervisor-2": {ID: "supervisor-2", Role: "SUPERVISOR", DepartmentID: "D002"},
		},
		supervisors: map[string]string{"D001": "supervisor-1", "D002": "supervisor-2"},
	}
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (*directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeDirectory) SupervisorForDepartment(_ context.Context, dept string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	id, ok := f.supervisors[dept]
	if !ok {
		return "", directory.ErrNotFound
	}
	return id, nil
}

func (f *fakeDirectory) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.GrievanceStatusChangedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.GrievanceStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.GrievanceStatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.GrievanceStatusChangedEvent(nil), p.events...)
}

// failingHistory rejects every append.
type failingHistory struct {
	*memory.HistoryRepository
}

func (failingHistory) Append(context.Context, *domain.StatusHistoryEntry) error {
	return errors.New("ledger unavailable")
}

// testingT is the subset of testing.TB shared with GinkgoT.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}

type harness struct {
	svc        *GrievanceService
	grievances *memory.GrievanceRepository
	history    *memory.HistoryRepository
	directory  *fakeDirectory
	publisher  *recordingPublisher
	metrics    *observability.Metrics
	catalog    *reference.Catalog

	mu  sync.Mutex
	now time.Time
	seq int
}

type harnessOption func(*GrievanceDependencies)

func newHarness(t testingT, opts ...harnessOption) *harness {
	t.Helper()
	catalog, err := reference.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	h := &harness{
		grievances: memory.NewGrievanceRepository(),
		history:    memory.NewHistoryRepository(),
		directory:  newFakeDirectory(),
		publisher:  &recordingPublisher{},
		metrics:    observability.NewMetrics(prometheus.NewRegistry()),
		catalog:    catalog,
		now:        time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	deps := GrievanceDependencies{
		GrievanceRepo:     h.grievances,
		HistoryRepo:       h.history,
		Reference:         catalog,
		Identity:          h.directory,
		Publisher:         h.publisher,
		Metrics:           h.metrics,
		Clock:             h.clock,
		IDGenerator:       h.nextID,
		WriteTimeout:      time.Second,
		SideEffectTimeout: time.Second,
		SweepConcurrency:  4,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.svc = NewGrievanceService(deps)
	t.Cleanup(h.svc.Wait)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) nextID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	return fmt.Sprintf("id-%03d", h.seq)
}

// seed stores a grievance directly, bypassing the lifecycle. Zero fields get defaults
// for a D001/C101 (48h SLA) complaint by citizen-1 created an hour ago.
func (h *harness) seed(t testingT, g domain.Grievance) *domain.Grievance {
	t.Helper()
	now := h.clock()
	if g.ID == "" {
		g.ID = h.nextID()
	}
	if g.CitizenID == "" {
		g.CitizenID = citizen.ID
	}
	if g.DepartmentID == "" {
		g.DepartmentID = "D001"
	}
	if g.CategoryID == "" {
		g.CategoryID = "C101"
	}
	if g.Status == "" {
		g.Status = domain.StatusSubmitted
	}
	if g.Title == "" {
		g.Title = "No water since Monday"
	}
	if g.Description == "" {
		g.Description = "The tap has been dry for three days."
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now.Add(-time.Hour)
	}
	if g.Version == 0 {
		g.Version = 1
	}
	g.UpdatedAt = g.CreatedAt
	if err := h.grievances.Create(context.Background(), &g); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return &g
}

func (h *harness) stored(t testingT, id string) *domain.Grievance {
	t.Helper()
	g, err := h.grievances.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return g
}

func (h *harness) ledger(t testingT, id string) []domain.StatusHistoryEntry {
	t.Helper()
	h.svc.Wait()
	entries, err := h.history.ListByGrievance(context.Background(), id)
	if err != nil {
		t.Fatalf("history %s: %v", id, err)
	}
	return entries
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return apperrors.ToDomainError(err).Code
}

func ptr[T any](v T) *T {
	return &v
}

// conflictingRepo simulates a concurrent writer committing between load and save.
type conflictingRepo struct {
	repository.GrievanceRepository
	once sync.Once
}

func (r *conflictingRepo) Update(ctx context.Context, g *domain.Grievance) error {
	r.once.Do(func() {
		rival, err := r.GrievanceRepository.GetByID(ctx, g.ID)
		if err == nil {
			_ = r.GrievanceRepository.Update(ctx, rival)
		}
	})
	return r.GrievanceRepository.Update(ctx, g)
}
