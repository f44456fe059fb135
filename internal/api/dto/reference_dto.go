package dto

// DepartmentResponse summarises a department.
type DepartmentResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CategoryCount int    `json:"category_count"`
}

// CategoryResponse is one complaint category.
type CategoryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SLAHours int    `json:"sla_hours"`
}

// ValidationResponse answers a reference lookup.
type ValidationResponse struct {
	DepartmentID string `json:"department_id"`
	CategoryID   string `json:"category_id,omitempty"`
	Valid        bool   `json:"valid"`
}
