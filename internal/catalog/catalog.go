// Package catalog holds the static service definitions the bot collects data
// for. The catalog is loaded once at startup and is immutable afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// ServiceDefinition describes one multi-step data-collection flow.
type ServiceDefinition struct {
	Code         string   `json:"code"`   // short numeric string, unique
	Name         string   `json:"name"`   // human-readable label
	Steps        []string `json:"steps"`  // ordered prompt texts
	Fields       []string `json:"fields"` // field names, parallel to Steps
	Confirmation string   `json:"confirmation,omitempty"` // optional completion message override
}

// Catalog maps service codes to their definitions. Lookup methods are safe
// for concurrent use because the catalog is never mutated after construction.
type Catalog struct {
	services map[string]ServiceDefinition
	codes    []string
}

// New builds a catalog from the given definitions. It fails if any
// definition violates the catalog invariants (unique numeric codes,
// matching non-empty step and field lists).
func New(defs []ServiceDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog has no service definitions")
	}
	services := make(map[string]ServiceDefinition, len(defs))
	for _, def := range defs {
		if err := validate(def); err != nil {
			return nil, err
		}
		if _, exists := services[def.Code]; exists {
			return nil, fmt.Errorf("duplicate service code %q", def.Code)
		}
		services[def.Code] = def
	}
	codes := make([]string, 0, len(services))
	for code := range services {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	slog.Debug("Catalog.New: catalog built", "services", len(services))
	return &Catalog{services: services, codes: codes}, nil
}

// LoadFile builds a catalog from a JSON file holding an array of service
// definitions. Deployments use this to replace the built-in catalog.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	var defs []ServiceDefinition
	if err := json.NewDecoder(f).Decode(&defs); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	slog.Info("Catalog.LoadFile: loaded service definitions", "path", path, "count", len(defs))
	return New(defs)
}

func validate(def ServiceDefinition) error {
	if def.Code == "" {
		return fmt.Errorf("service definition has empty code")
	}
	for _, r := range def.Code {
		if r < '0' || r > '9' {
			return fmt.Errorf("service code %q is not numeric", def.Code)
		}
	}
	if def.Name == "" {
		return fmt.Errorf("service %s has empty name", def.Code)
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("service %s has no steps", def.Code)
	}
	if len(def.Steps) != len(def.Fields) {
		return fmt.Errorf("service %s has %d steps but %d fields", def.Code, len(def.Steps), len(def.Fields))
	}
	for i, step := range def.Steps {
		if step == "" {
			return fmt.Errorf("service %s has empty step at index %d", def.Code, i)
		}
		if def.Fields[i] == "" {
			return fmt.Errorf("service %s has empty field name at index %d", def.Code, i)
		}
	}
	return nil
}

// Lookup returns the definition for code, if present.
func (c *Catalog) Lookup(code string) (ServiceDefinition, bool) {
	def, ok := c.services[code]
	return def, ok
}

// IsServiceCode reports whether text exactly matches a catalog code.
func (c *Catalog) IsServiceCode(text string) bool {
	_, ok := c.services[text]
	return ok
}

// Codes returns all service codes in sorted order.
func (c *Catalog) Codes() []string {
	return c.codes
}

// Len returns the number of services in the catalog.
func (c *Catalog) Len() int {
	return len(c.services)
}
