package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/egov/grievance-service/internal/api/dto"
	"github.com/egov/grievance-service/internal/auth"
	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/service"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

// GrievancesHandler exposes the grievance lifecycle.
type GrievancesHandler struct {
	grievances *service.GrievanceService
	documents  *service.DocumentService
}

// NewGrievancesHandler constructs handler.
func NewGrievancesHandler(grievances *service.GrievanceService, documents *service.DocumentService) *GrievancesHandler {
	return &GrievancesHandler{grievances: grievances, documents: documents}
}

// Create POST /grievances. Accepts a JSON body, or a multipart form with a "request"
// JSON part and optional "files".
func (h *GrievancesHandler) Create(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}

	var (
		req     dto.CreateGrievanceRequest
		uploads []service.Upload
	)
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart form", nil)
		}
		if err := decodeRequestPart(form, &req); err != nil {
			return err
		}
		var closeAll func()
		uploads, closeAll, err = openUploads(form.File["files"])
		if err != nil {
			return err
		}
		defer closeAll()
		if err := h.documents.ValidateUploads(uploads); err != nil {
			return err
		}
	} else if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ctx := c.UserContext()
	grievance, err := h.grievances.Create(ctx, actor, service.CreateGrievanceInput{
		DepartmentID: req.DepartmentID,
		CategoryID:   req.CategoryID,
		Title:        req.Title,
		Description:  req.Description,
	})
	if err != nil {
		return err
	}

	resp := grievanceResponse(grievance)
	if len(uploads) > 0 {
		docs, err := h.documents.Attach(ctx, actor, grievance.ID, uploads)
		if err != nil {
			return err
		}
		resp.Documents = documentResponses(docs)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// Assign PUT /grievances/:id/assign.
func (h *GrievancesHandler) Assign(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	grievance, err := h.grievances.Assign(c.UserContext(), actor, c.Params("id"), req.OfficerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grievanceResponse(grievance)})
}

// MarkInReview PUT /grievances/:id/in-review.
func (h *GrievancesHandler) MarkInReview(c *fiber.Ctx) error {
	return h.transition(c, h.grievances.MarkInReview)
}

// Resolve PUT /grievances/:id/resolve.
func (h *GrievancesHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.grievances.Resolve)
}

// Close PUT /grievances/:id/close.
func (h *GrievancesHandler) Close(c *fiber.Ctx) error {
	return h.transition(c, h.grievances.Close)
}

// Reopen PUT /grievances/:id/reopen.
func (h *GrievancesHandler) Reopen(c *fiber.Ctx) error {
	return h.transition(c, h.grievances.Reopen)
}

// Escalate PUT /grievances/:id/escalate.
func (h *GrievancesHandler) Escalate(c *fiber.Ctx) error {
	return h.transition(c, h.grievances.Escalate)
}

type transitionFunc func(ctx context.Context, actor domain.Actor, id string) (*domain.Grievance, error)

func (h *GrievancesHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	grievance, err := fn(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grievanceResponse(grievance)})
}

// Get GET /grievances/:id.
func (h *GrievancesHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	grievance, err := h.grievances.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grievanceResponse(grievance)})
}

// History GET /grievances/:id/history.
func (h *GrievancesHandler) History(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	entries, err := h.grievances.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.HistoryEntryResponse{
			ID:          entry.ID,
			GrievanceID: entry.GrievanceID,
			OldStatus:   entry.OldStatus,
			NewStatus:   entry.NewStatus,
			ChangedBy:   entry.ChangedBy,
			ChangedAt:   entry.ChangedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// List GET /grievances?status=&department_id=&page=&page_size=.
func (h *GrievancesHandler) List(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	filter := service.ListFilter{Pagination: parsePagination(c)}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return apperrors.NewValidationError("invalid status", map[string]any{"status": raw})
		}
		filter.Status = &status
	}
	if dept := strings.TrimSpace(c.Query("department_id")); dept != "" {
		filter.DepartmentID = &dept
	}

	grievances, err := h.grievances.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grievanceResponses(grievances)})
}

// SLABreaches GET /grievances/sla-breaches.
func (h *GrievancesHandler) SLABreaches(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	grievances, err := h.grievances.SLABreaches(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grievanceResponses(grievances)})
}

// ListByCitizen GET /grievances/citizen/:citizenId.
func (h *GrievancesHandler) ListByCitizen(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	grievances, err := h.grievances.ListByCitizen(c.UserContext(), actor, c.Params("citizenId"), parsePagination(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grievanceResponses(grievances)})
}

// ListByDepartment GET /grievances/department/:departmentId.
func (h *GrievancesHandler) ListByDepartment(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	grievances, err := h.grievances.ListByDepartment(c.UserContext(), actor, c.Params("departmentId"), parsePagination(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grievanceResponses(grievances)})
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// decodeRequestPart reads the "request" part, sent either as a form field or as a
// file part with a JSON content type.
func decodeRequestPart(form *multipart.Form, req *dto.CreateGrievanceRequest) error {
	var raw []byte
	if values := form.Value["request"]; len(values) > 0 {
		raw = []byte(values[0])
	} else if files := form.File["request"]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return apperrors.NewValidationError("unreadable request part", nil)
		}
		defer f.Close()
		raw, err = io.ReadAll(f)
		if err != nil {
			return apperrors.NewValidationError("unreadable request part", nil)
		}
	} else {
		return apperrors.NewValidationError("request part is required", nil)
	}
	if err := json.Unmarshal(raw, req); err != nil {
		return apperrors.NewValidationError("invalid request part", nil)
	}
	return nil
}

func openUploads(headers []*multipart.FileHeader) ([]service.Upload, func(), error) {
	uploads := make([]service.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, apperrors.NewValidationError("unreadable file", map[string]any{"file_name": header.Filename})
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{
			FileName:    header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Size:        header.Size,
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}

func parsePagination(c *fiber.Ctx) service.Pagination {
	return service.Pagination{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 0),
	}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func grievanceResponse(g *domain.Grievance) dto.GrievanceResponse {
	resp := dto.GrievanceResponse{
		ID:           g.ID,
		CitizenID:    g.CitizenID,
		DepartmentID: g.DepartmentID,
		CategoryID:   g.CategoryID,
		Title:        g.Title,
		Description:  g.Description,
		Status:       g.Status,
		IsEscalated:  g.IsEscalated,
		Version:      g.Version,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
		ResolvedAt:   g.ResolvedAt,
	}
	if g.AssignedOfficerID != "" {
		officer := g.AssignedOfficerID
		resp.AssignedOfficerID = &officer
	}
	return resp
}

func grievanceResponses(grievances []domain.Grievance) []dto.GrievanceResponse {
	items := make([]dto.GrievanceResponse, 0, len(grievances))
	for i := range grievances {
		items = append(items, grievanceResponse(&grievances[i]))
	}
	return items
}

func documentResponses(docs []domain.GrievanceDocument) []dto.DocumentResponse {
	items := make([]dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, dto.DocumentResponse{
			ID:          doc.ID,
			GrievanceID: doc.GrievanceID,
			FileName:    doc.FileName,
			ContentType: doc.ContentType,
			SizeBytes:   doc.SizeBytes,
			UploadedBy:  doc.UploadedBy,
			UploadedAt:  doc.UploadedAt,
		})
	}
	return items
}
