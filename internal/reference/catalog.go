// Package reference holds the department, category and SLA reference data.
//
// The catalog is loaded once at start-up and never mutated afterwards, so a single
// instance is shared by every request without locking.
package reference

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	// ErrUnknownDepartment is returned for a department missing from the catalog.
	ErrUnknownDepartment = errors.New("unknown department")
	// ErrUnknownCategory is returned for a category missing from its department.
	ErrUnknownCategory = errors.New("unknown category")
)

// Directory answers reference questions needed by the lifecycle engine.
type Directory interface {
	IsValid(ctx context.Context, departmentID, categoryID string) (bool, error)
	SLAHours(ctx context.Context, departmentID, categoryID string) (int, error)
}

// Category is one complaint category of a department.
type Category struct {
	ID       string `yaml:"-" json:"id"`
	Name     string `yaml:"name" json:"name"`
	SLAHours int    `yaml:"slaHours" json:"sla_hours"`
}

// Department groups categories.
type Department struct {
	ID         string              `yaml:"-" json:"id"`
	Name       string              `yaml:"name" json:"name"`
	Categories map[string]Category `yaml:"categories" json:"categories"`
}

type catalogFile struct {
	Departments map[string]Department `yaml:"departments"`
}

// Catalog is the immutable reference data set.
type Catalog struct {
	departments map[string]Department
}

// LoadCatalog reads the catalog from path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read reference catalog: %w", err)
		}
		data = raw
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML (or JSON) catalog bytes and validates them.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode reference catalog: %w", err)
	}
	if len(file.Departments) == 0 {
		return nil, errors.New("reference catalog has no departments")
	}

	departments := make(map[string]Department, len(file.Departments))
	for deptID, dept := range file.Departments {
		categories := make(map[string]Category, len(dept.Categories))
		for catID, cat := range dept.Categories {
			if cat.SLAHours <= 0 {
				return nil, fmt.Errorf("category %s/%s: slaHours must be positive", deptID, catID)
			}
			cat.ID = catID
			categories[catID] = cat
		}
		dept.ID = deptID
		dept.Categories = categories
		departments[deptID] = dept
	}
	return &Catalog{departments: departments}, nil
}

// IsValid reports whether the department/category pair exists.
func (c *Catalog) IsValid(_ context.Context, departmentID, categoryID string) (bool, error) {
	if c == nil {
		return false, nil
	}
	dept, ok := c.departments[departmentID]
	if !ok {
		return false, nil
	}
	_, ok = dept.Categories[categoryID]
	return ok, nil
}

// IsValidDepartment reports whether the department exists.
func (c *Catalog) IsValidDepartment(departmentID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.departments[departmentID]
	return ok
}

// SLAHours returns the SLA threshold for the pair.
func (c *Catalog) SLAHours(_ context.Context, departmentID, categoryID string) (int, error) {
	if c == nil {
		return 0, ErrUnknownDepartment
	}
	dept, ok := c.departments[departmentID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDepartment, departmentID)
	}
	cat, ok := dept.Categories[categoryID]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownCategory, departmentID, categoryID)
	}
	return cat.SLAHours, nil
}

// Departments lists departments sorted by id. The returned values are copies.
func (c *Catalog) Departments() []Department {
	if c == nil {
		return nil
	}
	out := make([]Department, 0, len(c.departments))
	for _, dept := range c.departments {
		out = append(out, copyDepartment(dept))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Categories lists a department's categories sorted by id.
func (c *Catalog) Categories(departmentID string) ([]Category, error) {
	if c == nil {
		return nil, ErrUnknownDepartment
	}
	dept, ok := c.departments[departmentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDepartment, departmentID)
	}
	out := make([]Category, 0, len(dept.Categories))
	for _, cat := range dept.Categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyDepartment(dept Department) Department {
	categories := make(map[string]Category, len(dept.Categories))
	for id, cat := range dept.Categories {
		categories[id] = cat
	}
	dept.Categories = categories
	return dept
}
