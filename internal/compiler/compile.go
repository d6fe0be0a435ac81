package compiler

import (
	"fmt"
	"maps"
	"slices"

	"cuelang.org/go/cue"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// CompileSchema builds a Schema from the root value of a definitions
// package. Taxonomies are returned in the order named by the top-level
// order list; a taxonomy missing from the list (or listed but not defined)
// is an error. The result is validated.
func CompileSchema(v cue.Value) (*taxonomy.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	sch := &taxonomy.Schema{}

	versionVal := v.LookupPath(cue.ParsePath("version"))
	if !versionVal.Exists() {
		return nil, &CompileError{Field: "version", Message: "version is required", Pos: v.Pos()}
	}
	version, err := versionVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	sch.Version = version

	order, err := parseOrder(v)
	if err != nil {
		return nil, err
	}

	taxVal := v.LookupPath(cue.ParsePath("taxonomy"))
	if !taxVal.Exists() {
		return nil, &CompileError{Field: "taxonomy", Message: "at least one taxonomy is required", Pos: v.Pos()}
	}

	defined := make(map[string]cue.Value)
	iter, err := taxVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		defined[iter.Label()] = iter.Value()
	}

	listed := make(map[string]bool, len(order))
	for _, id := range order {
		tv, ok := defined[id]
		if !ok {
			return nil, &CompileError{
				Field:   "order",
				Message: fmt.Sprintf("taxonomy %q is listed but not defined", id),
				Pos:     v.LookupPath(cue.ParsePath("order")).Pos(),
			}
		}
		m, err := CompileTaxonomy(taxonomy.ID(id), tv)
		if err != nil {
			return nil, err
		}
		sch.Taxonomies = append(sch.Taxonomies, *m)
		listed[id] = true
	}
	for _, id := range slices.Sorted(maps.Keys(defined)) {
		if tv := defined[id]; !listed[id] {
			return nil, &CompileError{
				Field:   "order",
				Message: fmt.Sprintf("taxonomy %q is defined but missing from order", id),
				Pos:     tv.Pos(),
			}
		}
	}

	if err := sch.Validate(); err != nil {
		return nil, &CompileError{Field: "schema", Message: err.Error(), Pos: v.Pos()}
	}
	return sch, nil
}

func parseOrder(v cue.Value) ([]string, error) {
	orderVal := v.LookupPath(cue.ParsePath("order"))
	if !orderVal.Exists() {
		return nil, &CompileError{Field: "order", Message: "order is required", Pos: v.Pos()}
	}
	iter, err := orderVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var order []string
	for iter.Next() {
		id, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		order = append(order, id)
	}
	return order, nil
}

// CompileTaxonomy parses one taxonomy entry: its terms tree and optional
// directive list.
func CompileTaxonomy(id taxonomy.ID, v cue.Value) (*taxonomy.Managed, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &taxonomy.Managed{Definition: taxonomy.Definition{Taxonomy: id}}

	termsVal := v.LookupPath(cue.ParsePath("terms"))
	if !termsVal.Exists() {
		return nil, &CompileError{Field: "terms", Message: fmt.Sprintf("%s: terms is required", id), Pos: v.Pos()}
	}
	groups, err := parseGroups(termsVal)
	if err != nil {
		return nil, err
	}
	m.Definition.Groups = groups

	dirVal := v.LookupPath(cue.ParsePath("directives"))
	if dirVal.Exists() {
		m.Directives, err = parseDirectives(dirVal)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func parseGroups(v cue.Value) ([]taxonomy.Group, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var groups []taxonomy.Group
	for iter.Next() {
		g := taxonomy.Group{Name: iter.Label()}
		val := iter.Value()

		switch val.IncompleteKind() {
		case cue.StructKind:
			children, err := iter.Value().Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for children.Next() {
				leaves, err := parseNames(children.Value())
				if err != nil {
					return nil, err
				}
				g.Children = append(g.Children, taxonomy.Child{Name: children.Label(), Leaves: leaves})
			}
		case cue.ListKind:
			names, err := parseNames(val)
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				g.Children = append(g.Children, taxonomy.Child{Name: name})
			}
		default:
			return nil, &CompileError{
				Field:   "terms",
				Message: fmt.Sprintf("%q: expected a struct of subcategories or a list of names, got %v", g.Name, val.IncompleteKind()),
				Pos:     val.Pos(),
			}
		}

		groups = append(groups, g)
	}
	return groups, nil
}

// parseNames reads a list of strings. Nested structure below level 3 is
// rejected.
func parseNames(v cue.Value) ([]string, error) {
	if v.IncompleteKind() != cue.ListKind {
		return nil, &CompileError{
			Field:   "terms",
			Message: fmt.Sprintf("expected a list of names, got %v (definitions are at most %d levels deep)", v.IncompleteKind(), taxonomy.MaxDepth),
			Pos:     v.Pos(),
		}
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var names []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: "terms", Message: "term names must be strings", Pos: iter.Value().Pos()}
		}
		names = append(names, name)
	}
	return names, nil
}

func parseDirectives(v cue.Value) (taxonomy.Directives, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var ds taxonomy.Directives
	for iter.Next() {
		dv := iter.Value()
		var d taxonomy.Directive

		fromVal := dv.LookupPath(cue.ParsePath("from"))
		if !fromVal.Exists() {
			return nil, &CompileError{Field: "directives", Message: "from is required", Pos: dv.Pos()}
		}
		if d.From, err = fromVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		toVal := dv.LookupPath(cue.ParsePath("to"))
		if toVal.Exists() {
			if d.To, err = toVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		ds = append(ds, d)
	}
	return ds, nil
}
