package taxonomy

import (
	"errors"
	"fmt"
)

// Managed pairs a taxonomy's definition with its directive table.
type Managed struct {
	Definition Definition `json:"definition" yaml:"definition"`
	Directives Directives `json:"directives,omitempty" yaml:"directives,omitempty"`
}

// ID returns the taxonomy this entry manages.
func (m Managed) ID() ID {
	return m.Definition.Taxonomy
}

// Schema is the complete versioned configuration: every managed taxonomy, in
// the fixed order they are reconciled, stamped with one version.
type Schema struct {
	Version    string    `json:"version" yaml:"version"`
	Taxonomies []Managed `json:"taxonomies" yaml:"taxonomies"`
}

// IDs returns the managed taxonomy identifiers in reconciliation order.
func (s *Schema) IDs() []ID {
	ids := make([]ID, len(s.Taxonomies))
	for i, m := range s.Taxonomies {
		ids[i] = m.ID()
	}
	return ids
}

// Lookup returns the managed entry for id.
func (s *Schema) Lookup(id ID) (Managed, bool) {
	for _, m := range s.Taxonomies {
		if m.ID() == id {
			return m, true
		}
	}
	return Managed{}, false
}

// Validate checks the version stamp and every managed entry.
func (s *Schema) Validate() error {
	if s.Version == "" {
		return errors.New("schema version is required")
	}
	seen := make(map[ID]bool, len(s.Taxonomies))
	for _, m := range s.Taxonomies {
		if err := m.Definition.Validate(); err != nil {
			return err
		}
		if err := m.Directives.Validate(); err != nil {
			return fmt.Errorf("%s: %w", m.ID(), err)
		}
		if seen[m.ID()] {
			return fmt.Errorf("taxonomy %q defined twice", m.ID())
		}
		seen[m.ID()] = true
	}
	return nil
}
