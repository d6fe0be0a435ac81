package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

// WriteDefinition writes trees as a YAML definition document stamped with
// version. Taxonomies appear in argument order.
//
// Level-1 and level-2 terms without children are written as empty keys, and
// level-3 names as a block list, so the output decodes back through the
// compiler into the same Definition. Directives are never emitted; a live tree
// carries none.
func WriteDefinition(w io.Writer, version string, trees ...*store.Tree) error {
	taxonomies := &yaml.Node{Kind: yaml.SequenceNode}
	for _, tree := range trees {
		taxonomies.Content = append(taxonomies.Content, mapping(
			str("taxonomy"), str(string(tree.Taxonomy)),
			str("terms"), termsNode(tree.Roots, 1),
		))
	}

	doc := mapping(
		str("version"), str(version),
		str("taxonomies"), taxonomies,
	)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	return nil
}

// termsNode renders nodes at depth. The deepest level becomes a list of
// names, everything above it a mapping keyed by name.
func termsNode(nodes []*store.Node, depth int) *yaml.Node {
	if len(nodes) == 0 {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
	}

	if depth == taxonomy.MaxDepth {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, n := range nodes {
			seq.Content = append(seq.Content, str(n.Name))
		}
		return seq
	}

	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, n := range nodes {
		m.Content = append(m.Content, str(n.Name), termsNode(n.Children, depth+1))
	}
	return m
}

func mapping(kv ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Content: kv}
}

// str forces string typing so names like "2024" or "No" survive a round trip.
func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
