package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func validDefs() []ServiceDefinition {
	return []ServiceDefinition{
		{Code: "40", Name: "Producers", Steps: []string{"Name?", "City?"}, Fields: []string{"name", "city"}},
		{Code: "50", Name: "Drivers", Steps: []string{"Name?"}, Fields: []string{"name"}},
	}
}

func TestNewCatalog(t *testing.T) {
	cat, err := New(validDefs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("expected 2 services, got %d", cat.Len())
	}
	def, ok := cat.Lookup("40")
	if !ok || def.Name != "Producers" {
		t.Errorf("Lookup(40) = %+v, %v", def, ok)
	}
	if !cat.IsServiceCode("50") {
		t.Error("expected 50 to be a service code")
	}
	if cat.IsServiceCode("99") || cat.IsServiceCode("") {
		t.Error("unexpected service code match")
	}
	codes := cat.Codes()
	if len(codes) != 2 || codes[0] != "40" || codes[1] != "50" {
		t.Errorf("Codes() = %v, want sorted [40 50]", codes)
	}
}

func TestNewCatalogValidation(t *testing.T) {
	cases := []struct {
		name string
		defs []ServiceDefinition
	}{
		{"empty catalog", nil},
		{"empty code", []ServiceDefinition{{Code: "", Name: "x", Steps: []string{"a"}, Fields: []string{"f"}}}},
		{"non-numeric code", []ServiceDefinition{{Code: "4a", Name: "x", Steps: []string{"a"}, Fields: []string{"f"}}}},
		{"empty name", []ServiceDefinition{{Code: "40", Steps: []string{"a"}, Fields: []string{"f"}}}},
		{"no steps", []ServiceDefinition{{Code: "40", Name: "x"}}},
		{"mismatched fields", []ServiceDefinition{{Code: "40", Name: "x", Steps: []string{"a", "b"}, Fields: []string{"f"}}}},
		{"blank step", []ServiceDefinition{{Code: "40", Name: "x", Steps: []string{""}, Fields: []string{"f"}}}},
		{"blank field", []ServiceDefinition{{Code: "40", Name: "x", Steps: []string{"a"}, Fields: []string{""}}}},
		{"duplicate code", append(validDefs(), ServiceDefinition{Code: "40", Name: "dup", Steps: []string{"a"}, Fields: []string{"f"}})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := New(c.defs); err == nil {
				t.Errorf("expected validation error for %s", c.name)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")
	data := `[{"code":"70","name":"Test","steps":["Q1?"],"fields":["answer"],"confirmation":"done"}]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	cat, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def, ok := cat.Lookup("70")
	if !ok || def.Confirmation != "done" {
		t.Errorf("Lookup(70) = %+v, %v", def, ok)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	cat := Default()
	if cat.Len() == 0 {
		t.Fatal("default catalog is empty")
	}
	for _, code := range []string{"40", "50", "60", "100"} {
		def, ok := cat.Lookup(code)
		if !ok {
			t.Errorf("default catalog missing service %s", code)
			continue
		}
		if len(def.Steps) == 0 || len(def.Steps) != len(def.Fields) {
			t.Errorf("service %s has inconsistent steps/fields", code)
		}
	}
}
