package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// Node is one term in a derived tree view.
type Node struct {
	taxonomy.Term
	Children []*Node `json:"children,omitempty"`
}

// Tree is a derived, read-only view of one taxonomy.
//
// Trees are shared between callers through the view cache and MUST NOT be
// mutated.
type Tree struct {
	Taxonomy taxonomy.ID `json:"taxonomy"`
	Roots    []*Node     `json:"roots"`
	// Orphans are terms whose parent id no longer resolves (the parent was
	// deleted). Their own descendants stay attached beneath them.
	Orphans []*Node `json:"orphans,omitempty"`
	Count   int     `json:"count"`

	byID map[taxonomy.TermID]*Node
}

// Node returns the node for id.
func (t *Tree) Node(id taxonomy.TermID) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// Find resolves a name path from the root, e.g. Find("Sports", "Club").
func (t *Tree) Find(path ...string) (*Node, bool) {
	level := t.Roots
	var found *Node
	for _, name := range path {
		found = nil
		for _, n := range level {
			if n.Name == name {
				found = n
				break
			}
		}
		if found == nil {
			return nil, false
		}
		level = found.Children
	}
	return found, found != nil
}

// Walk visits every rooted node depth-first in store-native order. depth is
// 1 for level-1 terms. Orphans are not visited.
func (t *Tree) Walk(fn func(n *Node, depth int)) {
	var visit func(nodes []*Node, depth int)
	visit = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			fn(n, depth)
			visit(n.Children, depth+1)
		}
	}
	visit(t.Roots, 1)
}

// buildTree assembles a Tree from a full listing. Listing order is kept, so
// siblings come out sorted by name.
func buildTree(tax taxonomy.ID, terms []taxonomy.Term) *Tree {
	t := &Tree{
		Taxonomy: tax,
		Roots:    []*Node{},
		Count:    len(terms),
		byID:     make(map[taxonomy.TermID]*Node, len(terms)),
	}
	for _, term := range terms {
		t.byID[term.ID] = &Node{Term: term}
	}
	for _, term := range terms {
		n := t.byID[term.ID]
		if term.IsRoot() {
			t.Roots = append(t.Roots, n)
			continue
		}
		if parent, ok := t.byID[term.Parent]; ok {
			parent.Children = append(parent.Children, n)
			continue
		}
		t.Orphans = append(t.Orphans, n)
	}
	return t
}

// viewCache caches one Tree per taxonomy until invalidated.
//
// Concurrent misses for the same taxonomy share one build (singleflight).
// Each invalidation bumps a generation counter; a build started under an
// older generation is returned to its callers but never cached.
type viewCache struct {
	store  *Store
	mu     sync.Mutex
	trees  map[taxonomy.ID]*Tree
	gen    map[taxonomy.ID]uint64
	flight singleflight.Group
	builds atomic.Int64
}

func newViewCache(s *Store) *viewCache {
	return &viewCache{
		store: s,
		trees: make(map[taxonomy.ID]*Tree),
		gen:   make(map[taxonomy.ID]uint64),
	}
}

func (c *viewCache) get(ctx context.Context, tax taxonomy.ID) (*Tree, error) {
	c.mu.Lock()
	if t, ok := c.trees[tax]; ok {
		c.mu.Unlock()
		return t, nil
	}
	gen := c.gen[tax]
	c.mu.Unlock()

	key := fmt.Sprintf("%s#%d", tax, gen)
	// The build is shared by every caller in the flight, so it must not
	// inherit the first caller's cancellation.
	buildCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		terms, err := c.store.ListTerms(buildCtx, tax, taxonomy.AnyParent())
		if err != nil {
			return nil, err
		}
		t := buildTree(tax, terms)

		c.mu.Lock()
		if c.gen[tax] == gen {
			c.trees[tax] = t
		}
		c.mu.Unlock()
		c.builds.Add(1)
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("build tree %s: %w", tax, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("build tree %s: %w", tax, res.Err)
		}
		return res.Val.(*Tree), nil
	}
}

func (c *viewCache) invalidate(tax taxonomy.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.trees, tax)
	c.gen[tax]++
}

// Tree returns the cached tree view of tax, building it on a miss.
//
// The view is NOT refreshed by writes; call InvalidateCache after mutating.
func (s *Store) Tree(ctx context.Context, tax taxonomy.ID) (*Tree, error) {
	return s.views.get(ctx, tax)
}

// InvalidateCache drops every derived view of tax so the next read reflects
// the store's true contents.
func (s *Store) InvalidateCache(ctx context.Context, tax taxonomy.ID) error {
	s.views.invalidate(tax)
	s.logger.Debug("taxonomy cache invalidated", "taxonomy", tax)
	return nil
}
