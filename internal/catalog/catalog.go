// Package catalog holds the immutable allowlist of analytics queries.
// Every query the engine can run is declared here as a parameterized
// SQL template with a typed parameter schema and a fixed output shape.
// The registry is validated once at startup and never mutated after.
package catalog

import (
	"errors"
	"fmt"

	"github.com/itsneelabh/insights-agent/internal/schema"
)

// Sentinel errors shared with the executor layer.
var (
	ErrUnknownQuery  = errors.New("unknown query")
	ErrInvalidParams = errors.New("invalid params")
)

// ParamType is the declared type of a query parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamDate    ParamType = "date"
)

// Param describes one parameter of a catalog entry. Default, when
// set, is evaluated at bind time so date defaults track the clock.
// Sensitive parameters are never logged with their values.
type Param struct {
	Name      string
	Type      ParamType
	Required  bool
	Default   func() interface{}
	Allowed   []string
	Sensitive bool
}

// Entry is one allowlisted query.
type Entry struct {
	ID          string
	Description string
	Params      []Param
	OutputKind  schema.OutputKind
	OutputRef   string
	// Template is the parameterized SQL, using :name placeholders.
	// It is the only place SQL text exists in the engine.
	Template string
	// Columns orders table output; empty for non-table entries.
	Columns []string
}

// Param returns the schema of a named parameter.
func (e *Entry) Param(name string) (Param, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Catalog is the read-only query registry.
type Catalog struct {
	entries map[string]*Entry
	order   []string
}

// New loads the default registry and validates it. Validation
// failures are fatal configuration errors.
func New() (*Catalog, error) {
	return NewFromEntries(defaultEntries())
}

// NewFromEntries builds a catalog from explicit entries.
func NewFromEntries(entries []*Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]*Entry, len(entries))}

	seenRefs := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry with empty id")
		}
		if _, dup := c.entries[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", e.ID)
		}
		if prev, dup := seenRefs[e.OutputRef]; dup {
			return nil, fmt.Errorf("duplicate output ref %q (entries %q and %q)", e.OutputRef, prev, e.ID)
		}
		if err := validateTemplate(e); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
		if err := validateDefaults(e); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
		seenRefs[e.OutputRef] = e.ID
		c.entries[e.ID] = e
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id string) (*Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// List returns all entries in registration order.
func (c *Catalog) List() []*Entry {
	out := make([]*Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// IDs returns all entry ids in registration order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Descriptions maps id to description, for prompt construction and
// the queries endpoint.
func (c *Catalog) Descriptions() map[string]string {
	out := make(map[string]string, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.Description
	}
	return out
}

// validateDefaults evaluates each default once and checks it against
// the parameter's own schema.
func validateDefaults(e *Entry) error {
	for _, p := range e.Params {
		if p.Default == nil {
			continue
		}
		if _, err := coerceValue(p, p.Default()); err != nil {
			return fmt.Errorf("default for param %q: %w", p.Name, err)
		}
	}
	return nil
}
