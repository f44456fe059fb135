package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/egov/grievance-service/internal/api/dto"
	"github.com/egov/grievance-service/internal/reference"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

// ReferenceHandler exposes the department and category catalog.
type ReferenceHandler struct {
	catalog *reference.Catalog
}

// NewReferenceHandler constructs handler.
func NewReferenceHandler(catalog *reference.Catalog) *ReferenceHandler {
	return &ReferenceHandler{catalog: catalog}
}

// Departments GET /reference/departments.
func (h *ReferenceHandler) Departments(c *fiber.Ctx) error {
	departments := h.catalog.Departments()
	items := make([]dto.DepartmentResponse, 0, len(departments))
	for _, dept := range departments {
		items = append(items, dto.DepartmentResponse{ID: dept.ID, Name: dept.Name, CategoryCount: len(dept.Categories)})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Categories GET /reference/departments/:id/categories.
func (h *ReferenceHandler) Categories(c *fiber.Ctx) error {
	deptID := c.Params("id")
	categories, err := h.catalog.Categories(deptID)
	if errors.Is(err, reference.ErrUnknownDepartment) {
		return apperrors.NewNotFound("department", map[string]any{"department_id": deptID})
	}
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, cat := range categories {
		items = append(items, dto.CategoryResponse{ID: cat.ID, Name: cat.Name, SLAHours: cat.SLAHours})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Validate GET /reference/departments/:id/validate[?category_id=]. Unknown departments are
// NotFound; a category that does not belong to a known department reports valid=false.
func (h *ReferenceHandler) Validate(c *fiber.Ctx) error {
	deptID := c.Params("id")
	if !h.catalog.IsValidDepartment(deptID) {
		return apperrors.NewNotFound("department", map[string]any{"department_id": deptID})
	}
	resp := dto.ValidationResponse{DepartmentID: deptID, Valid: true}
	if catID := strings.TrimSpace(c.Query("category_id")); catID != "" {
		valid, err := h.catalog.IsValid(c.UserContext(), deptID, catID)
		if err != nil {
			return err
		}
		resp.CategoryID = catID
		resp.Valid = valid
	}
	return c.JSON(fiber.Map{"data": resp})
}
