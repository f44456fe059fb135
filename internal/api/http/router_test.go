package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/api/http/handlers"
	"github.com/egov/grievance-service/internal/auth"
	"github.com/egov/grievance-service/internal/config"
	"github.com/egov/grievance-service/internal/directory"
	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/observability"
	"github.com/egov/grievance-service/internal/reference"
	"github.com/egov/grievance-service/internal/repository/memory"
	"github.com/egov/grievance-service/internal/service"
	"github.com/egov/grievance-service/internal/storage"
)

type staticDirectory map[string]*directory.User

func (d staticDirectory) GetUser(_ context.Context, id string) (*directory.User, error) {
	if u, ok := d[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, directory.ErrNotFound
}

func (d staticDirectory) SupervisorForDepartment(_ context.Context, dept string) (string, error) {
	for _, u := range d {
		if u.Role == "SUPERVISOR" && u.DepartmentID == dept {
			return u.ID, nil
		}
	}
	return "", directory.ErrNotFound
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testServer struct {
	app      *fiber.App
	svc      *service.GrievanceService
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, deps map[string]handlers.Pinger) *testServer {
	t.Helper()
	catalog, err := reference.LoadCatalog("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	blobs, err := storage.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("blobs: %v", err)
	}
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	identity := staticDirectory{
		"citizen-1":    {ID: "citizen-1", Role: "CITIZEN"},
		"officer-1":    {ID: "officer-1", Role: "OFFICER", DepartmentID: "D001"},
		"supervisor-1": {ID: "supervisor-1", Role: "SUPERVISOR", DepartmentID: "D001"},
	}

	svc := service.NewGrievanceService(service.GrievanceDependencies{
		GrievanceRepo: memory.NewGrievanceRepository(),
		HistoryRepo:   memory.NewHistoryRepository(),
		Reference:     catalog,
		Identity:      identity,
		Metrics:       metrics,
		WriteTimeout:  time.Second,
	})
	t.Cleanup(svc.Wait)
	docs := service.NewDocumentService(service.DocumentDependencies{
		Grievances:   svc,
		DocumentRepo: memory.NewDocumentRepository(),
		Blobs:        blobs,
		MaxBytes:     64,
	})

	app := fiber.New(fiber.Config{Immutable: true})
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("grievance-service", "test", deps),
		Grievances:     handlers.NewGrievancesHandler(svc, docs),
		Documents:      handlers.NewDocumentsHandler(docs),
		Reference:      handlers.NewReferenceHandler(catalog),
		AuthMiddleware: auth.NewMiddleware(config.AuthModeHeader, nil),
		Gatherer:       registry,
	})
	return &testServer{app: app, svc: svc, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path string, actor *domain.Actor, body io.Reader, contentType string) (int, envelope, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	if actor != nil {
		req.Header.Set(auth.HeaderUserID, actor.ID)
		req.Header.Set(auth.HeaderUserRole, string(actor.Role))
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelope
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, env, raw
}

func (s *testServer) json(t *testing.T, method, path string, actor *domain.Actor, payload any) (int, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	status, env, _ := s.do(t, method, path, actor, body, fiber.MIMEApplicationJSON)
	return status, env
}

var (
	citizen    = &domain.Actor{ID: "citizen-1", Role: domain.RoleCitizen}
	officer    = &domain.Actor{ID: "officer-1", Role: domain.RoleOfficer}
	supervisor = &domain.Actor{ID: "supervisor-1", Role: domain.RoleSupervisor}
)

func createGrievance(t *testing.T, s *testServer) map[string]any {
	t.Helper()
	status, env := s.json(t, http.MethodPost, "/grievances", citizen, map[string]string{
		"department_id": "D001",
		"category_id":   "C101",
		"title":         "Broken water main",
		"description":   "Water is gushing onto the road.",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %+v", status, env.Error)
	}
	var g map[string]any
	if err := json.Unmarshal(env.Data, &g); err != nil {
		t.Fatalf("decode grievance: %v", err)
	}
	return g
}

func TestGrievanceLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	g := createGrievance(t, s)
	id := g["id"].(string)
	if g["status"] != "SUBMITTED" || g["assigned_officer_id"] != nil {
		t.Fatalf("unexpected grievance %v", g)
	}

	status, env := s.json(t, http.MethodPut, "/grievances/"+id+"/assign", supervisor, map[string]string{"officer_id": "officer-1"})
	if status != http.StatusOK {
		t.Fatalf("assign: %d %+v", status, env.Error)
	}
	for _, step := range []string{"in-review", "resolve"} {
		if status, env := s.json(t, http.MethodPut, "/grievances/"+id+"/"+step, officer, nil); status != http.StatusOK {
			t.Fatalf("%s: %d %+v", step, status, env.Error)
		}
	}

	s.svc.Wait()
	status, env = s.json(t, http.MethodGet, "/grievances/"+id+"/history", citizen, nil)
	var entries []map[string]any
	if err := json.Unmarshal(env.Data, &entries); status != http.StatusOK || err != nil || len(entries) != 4 {
		t.Fatalf("history: expected 4 entries, got %s (%v)", env.Data, err)
	}
	if entries[0]["old_status"] != nil || entries[3]["new_status"] != "RESOLVED" {
		t.Fatalf("unexpected history %v", entries)
	}

	status, env = s.json(t, http.MethodGet, "/grievances?status=resolved", officer, nil)
	var listed []map[string]any
	if err := json.Unmarshal(env.Data, &listed); status != http.StatusOK || err != nil || len(listed) != 1 {
		t.Fatalf("list: %d %s", status, env.Data)
	}
}

func TestCallerHeadersDoNotLeakIntoStoredGrievance(t *testing.T) {
	s := newTestServer(t, nil)
	g := createGrievance(t, s)
	id := g["id"].(string)
	reader := &domain.Actor{ID: "ADMIN-ZZZZZZZZZZ", Role: domain.RoleAdmin}

	for i := 0; i < 50; i++ {
		status, env := s.json(t, http.MethodGet, "/grievances/"+id, reader, nil)
		if status != http.StatusOK {
			t.Fatalf("read %d: %d %+v", i, status, env.Error)
		}
		var got map[string]any
		if err := json.Unmarshal(env.Data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["citizen_id"] != citizen.ID {
			t.Fatalf("read %d: citizen_id = %v, want %s", i, got["citizen_id"], citizen.ID)
		}
	}

	s.svc.Wait()
	status, env := s.json(t, http.MethodGet, "/grievances/"+id+"/history", citizen, nil)
	var entries []map[string]any
	if err := json.Unmarshal(env.Data, &entries); status != http.StatusOK || err != nil || len(entries) != 1 {
		t.Fatalf("history: %d %s (%v)", status, env.Data, err)
	}
	if entries[0]["changed_by"] != citizen.ID {
		t.Fatalf("history author = %v, want %s", entries[0]["changed_by"], citizen.ID)
	}
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t, nil)
	g := createGrievance(t, s)
	id := g["id"].(string)

	cases := []struct {
		name    string
		method  string
		path    string
		actor   *domain.Actor
		payload any
		status  int
		code    string
	}{
		{"missing identity", http.MethodGet, "/grievances/" + id, nil, nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"role not permitted", http.MethodPut, "/grievances/" + id + "/assign", citizen, map[string]string{"officer_id": "officer-1"}, http.StatusForbidden, "FORBIDDEN"},
		{"invalid transition", http.MethodPut, "/grievances/" + id + "/resolve", officer, nil, http.StatusBadRequest, "INVALID_TRANSITION"},
		{"sla not breached", http.MethodPut, "/grievances/" + id + "/escalate", citizen, nil, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown grievance", http.MethodGet, "/grievances/nope", citizen, nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad status filter", http.MethodGet, "/grievances?status=LOST", citizen, nil, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown route", http.MethodGet, "/nowhere", nil, nil, http.StatusNotFound, "NOT_FOUND"},
		{"invalid payload", http.MethodPost, "/grievances", citizen, map[string]any{"title": "x"}, http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := s.json(t, tc.method, tc.path, tc.actor, tc.payload)
			if status != tc.status || env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected %d %s, got %d %+v", tc.status, tc.code, status, env.Error)
			}
			if env.Error.Message == "" {
				t.Fatalf("error message missing")
			}
		})
	}
}

func TestMultipartCreateAndDownload(t *testing.T) {
	s := newTestServer(t, nil)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("request", `{"department_id":"D002","category_id":"C201","title":"Power outage","description":"No power on Elm street."}`)
	part, err := w.CreateFormFile("files", "outage.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("transformer sparks"))
	_ = w.Close()

	status, env, _ := s.do(t, http.MethodPost, "/grievances", citizen, &body, w.FormDataContentType())
	if status != http.StatusCreated {
		t.Fatalf("create: %d %+v", status, env.Error)
	}
	var created struct {
		ID        string `json:"id"`
		Documents []struct {
			ID        string `json:"id"`
			SizeBytes int64  `json:"size_bytes"`
		} `json:"documents"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil || len(created.Documents) != 1 {
		t.Fatalf("unexpected create response %s", env.Data)
	}

	path := "/grievances/" + created.ID + "/documents/" + created.Documents[0].ID
	status, _, raw := s.do(t, http.MethodGet, path, citizen, nil, "")
	if status != http.StatusOK || string(raw) != "transformer sparks" {
		t.Fatalf("download: %d %q", status, raw)
	}

	var oversized bytes.Buffer
	w = multipart.NewWriter(&oversized)
	_ = w.WriteField("request", `{"department_id":"D002","category_id":"C201","title":"Power outage","description":"No power on Elm street."}`)
	part, _ = w.CreateFormFile("files", "big.bin")
	_, _ = part.Write(bytes.Repeat([]byte("x"), 65))
	_ = w.Close()
	status, env, _ = s.do(t, http.MethodPost, "/grievances", citizen, &oversized, w.FormDataContentType())
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("oversized: %d %+v", status, env.Error)
	}
	list, err := s.svc.List(context.Background(), *citizen, service.ListFilter{})
	if err != nil || len(list) != 1 {
		t.Fatalf("oversized upload should not create a grievance, have %d", len(list))
	}
}

func TestReferenceEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.json(t, http.MethodGet, "/reference/departments", nil, nil)
	var departments []map[string]any
	if err := json.Unmarshal(env.Data, &departments); status != http.StatusOK || err != nil || len(departments) != 4 {
		t.Fatalf("departments: %d %s", status, env.Data)
	}

	status, env = s.json(t, http.MethodGet, "/reference/departments/D001/categories", nil, nil)
	var categories []map[string]any
	if err := json.Unmarshal(env.Data, &categories); status != http.StatusOK || err != nil || len(categories) != 3 {
		t.Fatalf("categories: %d %s", status, env.Data)
	}

	if status, env = s.json(t, http.MethodGet, "/reference/departments/D404/categories", nil, nil); status != http.StatusNotFound {
		t.Fatalf("unknown department: %d %+v", status, env.Error)
	}
	if status, _ = s.json(t, http.MethodGet, "/reference/departments/D404/validate", nil, nil); status != http.StatusNotFound {
		t.Fatalf("validate unknown: %d", status)
	}

	status, env = s.json(t, http.MethodGet, "/reference/departments/D001/validate?category_id=C201", nil, nil)
	var validation map[string]any
	if err := json.Unmarshal(env.Data, &validation); status != http.StatusOK || err != nil || validation["valid"] != false {
		t.Fatalf("validate mismatch: %d %s", status, env.Data)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, map[string]handlers.Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
		"redis":    pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	if status, _ := s.json(t, http.MethodGet, "/health/live", nil, nil); status != http.StatusOK {
		t.Fatalf("live: %d", status)
	}
	status, env := s.json(t, http.MethodGet, "/health/ready", nil, nil)
	if status != http.StatusServiceUnavailable || env.Error == nil || env.Error.Details["redis"] != "connection refused" {
		t.Fatalf("ready: %d %+v", status, env.Error)
	}

	createGrievance(t, s)
	status, _, raw := s.do(t, http.MethodGet, "/metrics", nil, nil, "")
	if status != http.StatusOK || !strings.Contains(string(raw), "grievance_transitions_total") {
		t.Fatalf("metrics: %d", status)
	}
}
