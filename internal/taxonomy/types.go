package taxonomy

import "fmt"

// ID identifies a taxonomy (a classification axis with one independent tree),
// e.g. "wsuwp_university_category".
type ID string

// TermID is the store-assigned identifier of a term. Stable once created.
type TermID int64

// RootID is the parent identifier of level-1 terms.
const RootID TermID = 0

// Term is one node of a taxonomy tree.
type Term struct {
	ID       TermID `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Slug     string `json:"slug" yaml:"slug"`
	Parent   TermID `json:"parent" yaml:"parent"`
	Taxonomy ID     `json:"taxonomy" yaml:"taxonomy"`
}

// IsRoot reports whether the term hangs directly off the taxonomy root.
func (t Term) IsRoot() bool {
	return t.Parent == RootID
}

func (t Term) String() string {
	return fmt.Sprintf("%s/%d(%q parent=%d)", t.Taxonomy, t.ID, t.Name, t.Parent)
}

// ParentFilter restricts a term listing to one parent, or to none.
// The zero value matches every term in the taxonomy.
type ParentFilter struct {
	parent TermID
	set    bool
}

// AnyParent matches every term regardless of parent.
func AnyParent() ParentFilter {
	return ParentFilter{}
}

// ChildrenOf matches terms whose parent is id. ChildrenOf(RootID) selects level-1 terms.
func ChildrenOf(id TermID) ParentFilter {
	return ParentFilter{parent: id, set: true}
}

// Parent returns the filtered parent and whether a filter is set.
func (f ParentFilter) Parent() (TermID, bool) {
	return f.parent, f.set
}

// Match reports whether t passes the filter.
func (f ParentFilter) Match(t Term) bool {
	return !f.set || t.Parent == f.parent
}

// NameIndex maps term names to identifiers. When two terms share a name the
// first one listed wins, matching store-native ordering.
func NameIndex(terms []Term) map[string]TermID {
	idx := make(map[string]TermID, len(terms))
	for _, t := range terms {
		if _, ok := idx[t.Name]; !ok {
			idx[t.Name] = t.ID
		}
	}
	return idx
}

// NameSet projects terms to the set of their names.
func NameSet(terms []Term) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t.Name] = struct{}{}
	}
	return set
}
