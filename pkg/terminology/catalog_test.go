package terminology

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogCodes(t *testing.T) {
	catalog := DefaultCatalog()
	if len(catalog.DiabetesCodes) != 6 {
		t.Fatalf("expected 6 diabetes codes, got %d", len(catalog.DiabetesCodes))
	}
	if len(catalog.GlucoseCodes) != 3 {
		t.Fatalf("expected 3 glucose codes, got %d", len(catalog.GlucoseCodes))
	}
	glucose := CodeSet(catalog.GlucoseCodes)
	if _, ok := glucose["4548-4"]; !ok {
		t.Fatal("expected HbA1c code in glucose set")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	catalog, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog.DiabetesCodes) == 0 {
		t.Fatal("expected default diabetes codes")
	}
}

func TestLoadYAMLWithPartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codes.yaml")
	content := "diabetes_codes:\n  - \"44054006\"\nglucose_codes:\n  - \"4548-4\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog.DiabetesCodes) != 1 {
		t.Fatalf("expected overridden diabetes codes, got %v", catalog.DiabetesCodes)
	}
	// Lists absent from the file keep their defaults.
	if len(catalog.VitalCodes) != 3 {
		t.Fatalf("expected default vital codes, got %v", catalog.VitalCodes)
	}
}

func TestLoadMalformedYAMLFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codes.yaml")
	if err := os.WriteFile(path, []byte(":: not yaml ::\n"), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	catalog, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed catalog")
	}
	// A caller that logs the error and keeps going must end up on the
	// defaults, never on empty code lists that filter everything out.
	if len(catalog.GlucoseCodes) == 0 || len(catalog.DiabetesCodes) == 0 {
		t.Fatalf("expected default catalog alongside the error, got %+v", catalog)
	}
}

func TestLoadEmptyListsFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codes.yaml")
	if err := os.WriteFile(path, []byte("diabetes_codes: []\nglucose_codes: []\n"), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	catalog, err := Load(path)
	if err == nil {
		t.Fatal("expected error for empty catalog")
	}
	if len(catalog.GlucoseCodes) != 3 {
		t.Fatalf("expected default glucose codes alongside the error, got %v", catalog.GlucoseCodes)
	}
}

func TestWithOverrides(t *testing.T) {
	catalog := DefaultCatalog().WithOverrides([]string{"111"}, nil, []string{"222", "333"})
	if len(catalog.DiabetesCodes) != 1 || catalog.DiabetesCodes[0] != "111" {
		t.Fatalf("unexpected diabetes codes: %v", catalog.DiabetesCodes)
	}
	if len(catalog.GlucoseCodes) != 3 {
		t.Fatalf("expected glucose codes untouched, got %v", catalog.GlucoseCodes)
	}
	if len(catalog.VitalCodes) != 2 {
		t.Fatalf("unexpected vital codes: %v", catalog.VitalCodes)
	}
}
