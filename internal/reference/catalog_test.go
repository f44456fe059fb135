package reference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalogDefault(t *testing.T) {
	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	ctx := context.Background()

	ok, err := catalog.IsValid(ctx, "D001", "C101")
	if err != nil || !ok {
		t.Errorf("IsValid(D001, C101) = %v, %v; want true", ok, err)
	}
	hours, err := catalog.SLAHours(ctx, "D001", "C101")
	if err != nil {
		t.Fatalf("SLAHours() error = %v", err)
	}
	if hours != 48 {
		t.Errorf("SLAHours(D001, C101) = %d, want 48", hours)
	}
	if !catalog.IsValidDepartment("D002") {
		t.Error("D002 should be a valid department")
	}
}

func TestCatalogUnknownEntries(t *testing.T) {
	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	ctx := context.Background()

	if ok, _ := catalog.IsValid(ctx, "INVALID", "C101"); ok {
		t.Error("IsValid should be false for unknown department")
	}
	if ok, _ := catalog.IsValid(ctx, "D001", "BAD"); ok {
		t.Error("IsValid should be false for unknown category")
	}
	if _, err := catalog.SLAHours(ctx, "INVALID", "C101"); !errors.Is(err, ErrUnknownDepartment) {
		t.Errorf("SLAHours unknown department error = %v", err)
	}
	if _, err := catalog.SLAHours(ctx, "D001", "BAD"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("SLAHours unknown category error = %v", err)
	}
	if _, err := catalog.Categories("INVALID"); !errors.Is(err, ErrUnknownDepartment) {
		t.Errorf("Categories unknown department error = %v", err)
	}
}

func TestNilCatalogIsEmpty(t *testing.T) {
	var catalog *Catalog
	if ok, _ := catalog.IsValid(context.Background(), "D001", "C101"); ok {
		t.Error("nil catalog should not validate anything")
	}
	if catalog.IsValidDepartment("D001") {
		t.Error("nil catalog should have no departments")
	}
}

func TestParseCatalogAcceptsJSON(t *testing.T) {
	data := []byte(`{"departments": {"D9": {"name": "Parks", "categories": {"C9": {"slaHours": 12}}}}}`)
	catalog, err := ParseCatalog(data)
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}
	hours, err := catalog.SLAHours(context.Background(), "D9", "C9")
	if err != nil || hours != 12 {
		t.Errorf("SLAHours(D9, C9) = %d, %v; want 12", hours, err)
	}
}

func TestParseCatalogRejectsBadData(t *testing.T) {
	cases := map[string]string{
		"empty":        `departments: {}`,
		"zero sla":     `departments: {D1: {categories: {C1: {slaHours: 0}}}}`,
		"invalid yaml": `departments: [`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("departments:\n  D7:\n    categories:\n      C7: {slaHours: 5}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if depts := catalog.Departments(); len(depts) != 1 || depts[0].ID != "D7" {
		t.Errorf("Departments() = %+v", depts)
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDepartmentsReturnsCopies(t *testing.T) {
	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	depts := catalog.Departments()
	delete(depts[0].Categories, "C101")

	if ok, _ := catalog.IsValid(context.Background(), "D001", "C101"); !ok {
		t.Error("mutating Departments() output must not change the catalog")
	}
}
