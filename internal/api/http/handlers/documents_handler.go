package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/egov/grievance-service/internal/auth"
	"github.com/egov/grievance-service/internal/service"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

// DocumentsHandler serves grievance attachments.
type DocumentsHandler struct {
	documents *service.DocumentService
}

// NewDocumentsHandler constructs handler.
func NewDocumentsHandler(documents *service.DocumentService) *DocumentsHandler {
	return &DocumentsHandler{documents: documents}
}

// Upload POST /grievances/:id/documents.
func (h *DocumentsHandler) Upload(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	if !isMultipart(c) {
		return apperrors.NewValidationError("multipart form with files is required", nil)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("invalid multipart form", nil)
	}
	uploads, closeAll, err := openUploads(form.File["files"])
	if err != nil {
		return err
	}
	defer closeAll()

	docs, err := h.documents.Attach(c.UserContext(), actor, c.Params("id"), uploads)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": documentResponses(docs)})
}

// List GET /grievances/:id/documents.
func (h *DocumentsHandler) List(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	docs, err := h.documents.List(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": documentResponses(docs)})
}

// Download GET /grievances/:id/documents/:docId.
func (h *DocumentsHandler) Download(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	doc, content, err := h.documents.Download(c.UserContext(), actor, c.Params("id"), c.Params("docId"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.FileName))
	// fasthttp closes the stream once the body is written.
	return c.SendStream(content, int(doc.SizeBytes))
}
