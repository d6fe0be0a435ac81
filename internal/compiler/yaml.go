package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// yamlSchema mirrors the CUE layout. Terms are kept as raw nodes so mapping
// order survives decoding.
type yamlSchema struct {
	Version    string         `yaml:"version"`
	Taxonomies []yamlTaxonomy `yaml:"taxonomies"`
}

type yamlTaxonomy struct {
	Taxonomy   string              `yaml:"taxonomy"`
	Terms      yaml.Node           `yaml:"terms"`
	Directives taxonomy.Directives `yaml:"directives"`
}

// DecodeYAML builds a Schema from a YAML document:
//
//	version: "2024-09-01"
//	taxonomies:
//	  - taxonomy: wsuwp_university_category
//	    terms:
//	      Sports:
//	        Intercollegiate: [Baseball, Football]
//	      Alumni: [Alumni Association]
//	    directives:
//	      - {from: Registar, to: Registrar}
//
// Taxonomies are reconciled in list order. The result is validated.
func DecodeYAML(data []byte) (*taxonomy.Schema, error) {
	var doc yamlSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	if doc.Version == "" {
		return nil, &CompileError{Field: "version", Message: "version is required"}
	}

	sch := &taxonomy.Schema{Version: doc.Version}
	for _, yt := range doc.Taxonomies {
		if yt.Taxonomy == "" {
			return nil, &CompileError{Field: "taxonomy", Message: "taxonomy id is required", Line: yt.Terms.Line}
		}
		groups, err := yamlGroups(&yt.Terms)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", yt.Taxonomy, err)
		}
		sch.Taxonomies = append(sch.Taxonomies, taxonomy.Managed{
			Definition: taxonomy.Definition{Taxonomy: taxonomy.ID(yt.Taxonomy), Groups: groups},
			Directives: yt.Directives,
		})
	}

	if err := sch.Validate(); err != nil {
		return nil, &CompileError{Field: "schema", Message: err.Error()}
	}
	return sch, nil
}

func yamlGroups(n *yaml.Node) ([]taxonomy.Group, error) {
	if n.Kind == 0 {
		return nil, &CompileError{Field: "terms", Message: "terms is required"}
	}
	if n.Kind != yaml.MappingNode {
		return nil, &CompileError{Field: "terms", Message: "expected a mapping of level-1 names", Line: n.Line}
	}

	var groups []taxonomy.Group
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		g := taxonomy.Group{Name: key.Value}

		switch {
		case isNull(val):
		case val.Kind == yaml.MappingNode:
			for j := 0; j+1 < len(val.Content); j += 2 {
				leaves, err := yamlNames(val.Content[j+1])
				if err != nil {
					return nil, err
				}
				g.Children = append(g.Children, taxonomy.Child{Name: val.Content[j].Value, Leaves: leaves})
			}
		case val.Kind == yaml.SequenceNode:
			names, err := yamlNames(val)
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				g.Children = append(g.Children, taxonomy.Child{Name: name})
			}
		default:
			return nil, &CompileError{
				Field:   "terms",
				Message: fmt.Sprintf("%q: expected a mapping of subcategories or a list of names", g.Name),
				Line:    val.Line,
			}
		}

		groups = append(groups, g)
	}
	return groups, nil
}

func yamlNames(n *yaml.Node) ([]string, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, &CompileError{
			Field:   "terms",
			Message: fmt.Sprintf("expected a list of names (definitions are at most %d levels deep)", taxonomy.MaxDepth),
			Line:    n.Line,
		}
	}
	names := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, &CompileError{Field: "terms", Message: "term names must be strings", Line: item.Line}
		}
		names = append(names, item.Value)
	}
	return names, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}
