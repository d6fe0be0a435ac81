package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// Definition is the desired-state tree for one taxonomy: an ordered list of
// level-1 groups, each holding ordered level-2 children, each holding ordered
// level-3 leaf names. Declaration order is preserved end to end.
type Definition struct {
	Taxonomy ID      `json:"taxonomy" yaml:"taxonomy"`
	Groups   []Group `json:"groups" yaml:"groups"`
}

// Group is a level-1 entry.
type Group struct {
	Name     string  `json:"name" yaml:"name"`
	Children []Child `json:"children,omitempty" yaml:"children,omitempty"`
}

// Child is a level-2 entry. Leaves are level-3 names.
type Child struct {
	Name   string   `json:"name" yaml:"name"`
	Leaves []string `json:"leaves,omitempty" yaml:"leaves,omitempty"`
}

// MaxDepth is the deepest level a definition may describe.
const MaxDepth = 3

// ErrInvalidDefinition is wrapped by every Validate failure.
var ErrInvalidDefinition = errors.New("invalid definition")

// Count returns the total number of nodes described by the definition.
func (d *Definition) Count() int {
	n := 0
	for _, g := range d.Groups {
		n++
		for _, c := range g.Children {
			n += 1 + len(c.Leaves)
		}
	}
	return n
}

// Names returns every name in the definition as slash-joined paths, in
// declaration order, parents before their children.
func (d *Definition) Names() []string {
	names := make([]string, 0, d.Count())
	for _, g := range d.Groups {
		names = append(names, g.Name)
		for _, c := range g.Children {
			names = append(names, g.Name+"/"+c.Name)
			for _, leaf := range c.Leaves {
				names = append(names, g.Name+"/"+c.Name+"/"+leaf)
			}
		}
	}
	return names
}

// Group returns the level-1 entry with the given name.
func (d *Definition) Group(name string) (Group, bool) {
	for _, g := range d.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// Child returns the level-2 entry with the given name.
func (g Group) Child(name string) (Child, bool) {
	for _, c := range g.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Child{}, false
}

// Validate checks that the taxonomy is named, that every name is non-empty,
// and that names are unique among siblings. Sibling uniqueness is what makes
// name matching during reconciliation unambiguous; the same name may still
// appear under different parents.
func (d *Definition) Validate() error {
	if d.Taxonomy == "" {
		return fmt.Errorf("%w: taxonomy is required", ErrInvalidDefinition)
	}

	seen := make(map[string]bool, len(d.Groups))
	for i, g := range d.Groups {
		if err := checkName(g.Name); err != nil {
			return fmt.Errorf("%w: %s: groups[%d]: %v", ErrInvalidDefinition, d.Taxonomy, i, err)
		}
		if seen[g.Name] {
			return fmt.Errorf("%w: %s: duplicate level-1 name %q", ErrInvalidDefinition, d.Taxonomy, g.Name)
		}
		seen[g.Name] = true

		children := make(map[string]bool, len(g.Children))
		for j, c := range g.Children {
			if err := checkName(c.Name); err != nil {
				return fmt.Errorf("%w: %s: %s[%d]: %v", ErrInvalidDefinition, d.Taxonomy, g.Name, j, err)
			}
			if children[c.Name] {
				return fmt.Errorf("%w: %s: duplicate level-2 name %q under %q", ErrInvalidDefinition, d.Taxonomy, c.Name, g.Name)
			}
			children[c.Name] = true

			leaves := make(map[string]bool, len(c.Leaves))
			for k, leaf := range c.Leaves {
				if err := checkName(leaf); err != nil {
					return fmt.Errorf("%w: %s: %s/%s[%d]: %v", ErrInvalidDefinition, d.Taxonomy, g.Name, c.Name, k, err)
				}
				if leaves[leaf] {
					return fmt.Errorf("%w: %s: duplicate level-3 name %q under %q/%q", ErrInvalidDefinition, d.Taxonomy, leaf, g.Name, c.Name)
				}
				leaves[leaf] = true
			}
		}
	}
	return nil
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is empty")
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("name %q has surrounding whitespace", name)
	}
	return nil
}
