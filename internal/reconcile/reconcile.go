package reconcile

import (
	"context"
	"strconv"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// Reconcile creates every node of def that is missing from the store.
//
// Levels are processed strictly in order: all level-1 names, then the
// children of every resolved level-1 term, then the leaves of every resolved
// level-2 term. A node is resolved if it already existed or was created
// earlier in this pass. Caches are invalidated before and after the walk.
func (e *Engine) Reconcile(ctx context.Context, def *taxonomy.Definition) (Report, error) {
	tax := def.Taxonomy
	report := Report{Taxonomy: tax, Created: []taxonomy.Term{}}

	if err := e.invalidate(ctx, tax); err != nil {
		return report, err
	}

	w := walk{e: e, ctx: writeCtx(ctx), tax: tax, report: &report}

	// Level 1
	roots, err := e.store.ListTerms(ctx, tax, taxonomy.ChildrenOf(taxonomy.RootID))
	if err != nil {
		opFailures.WithLabelValues(string(tax), string(OpList)).Inc()
		return report, &OpError{Op: OpList, Taxonomy: tax, Parent: taxonomy.RootID, Level: 1, Err: err}
	}
	groupIDs := w.ensure(1, taxonomy.RootID, taxonomy.NameIndex(roots), groupNames(def.Groups))

	// Level 2
	childIDs := make(map[string]map[string]taxonomy.TermID, len(def.Groups))
	for _, g := range def.Groups {
		parent, ok := groupIDs[g.Name]
		if !ok {
			w.skip(g.Name, countGroup(g))
			continue
		}
		existing, ok := w.list(ctx, 2, parent)
		if !ok {
			w.skip(g.Name, countGroup(g))
			continue
		}
		childIDs[g.Name] = w.ensure(2, parent, taxonomy.NameIndex(existing), childNames(g.Children))
	}

	// Level 3
	for _, g := range def.Groups {
		resolved, ok := childIDs[g.Name]
		if !ok {
			continue
		}
		for _, c := range g.Children {
			if len(c.Leaves) == 0 {
				continue
			}
			parent, ok := resolved[c.Name]
			if !ok {
				w.skip(c.Name, len(c.Leaves))
				continue
			}
			existing, ok := w.list(ctx, 3, parent)
			if !ok {
				w.skip(c.Name, len(c.Leaves))
				continue
			}
			present := taxonomy.NameSet(existing)
			for _, leaf := range c.Leaves {
				if _, ok := present[leaf]; ok {
					report.Matched++
					continue
				}
				w.create(3, parent, leaf)
			}
		}
	}

	if err := e.invalidate(ctx, tax); err != nil {
		return report, err
	}
	return report, nil
}

// walk carries per-pass state for Reconcile.
type walk struct {
	e      *Engine
	ctx    context.Context
	tax    taxonomy.ID
	report *Report
}

// ensure resolves every name under parent, creating those missing from
// existing. Names whose creation fails are absent from the result.
func (w *walk) ensure(level int, parent taxonomy.TermID, existing map[string]taxonomy.TermID, names []string) map[string]taxonomy.TermID {
	resolved := make(map[string]taxonomy.TermID, len(names))
	for _, name := range names {
		if id, ok := existing[name]; ok {
			resolved[name] = id
			w.report.Matched++
			continue
		}
		if t, ok := w.create(level, parent, name); ok {
			resolved[name] = t.ID
		}
	}
	return resolved
}

func (w *walk) create(level int, parent taxonomy.TermID, name string) (taxonomy.Term, bool) {
	t, err := w.e.store.CreateTerm(w.ctx, w.tax, name, parent)
	if err != nil {
		w.report.Failures = append(w.report.Failures, w.e.fail(OpCreate, w.tax, name, parent, level, err))
		return taxonomy.Term{}, false
	}
	w.report.Created = append(w.report.Created, t)
	termsCreated.WithLabelValues(string(w.tax), strconv.Itoa(level)).Inc()
	w.e.logger.Debug("term created", "taxonomy", w.tax, "name", name, "parent", parent, "id", t.ID, "level", level)
	return t, true
}

// list returns the children of parent, recording a failure if the store
// cannot list them.
func (w *walk) list(ctx context.Context, level int, parent taxonomy.TermID) ([]taxonomy.Term, bool) {
	terms, err := w.e.store.ListTerms(ctx, w.tax, taxonomy.ChildrenOf(parent))
	if err != nil {
		w.report.Failures = append(w.report.Failures, w.e.fail(OpList, w.tax, "", parent, level, err))
		return nil, false
	}
	return terms, true
}

func (w *walk) skip(under string, n int) {
	if n == 0 {
		return
	}
	w.report.Skipped += n
	w.e.logger.Debug("branch skipped, parent unresolved", "taxonomy", w.tax, "parent_name", under, "nodes", n)
}

func groupNames(groups []taxonomy.Group) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}

func childNames(children []taxonomy.Child) []string {
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name
	}
	return names
}

// countGroup counts the nodes beneath a level-1 entry.
func countGroup(g taxonomy.Group) int {
	n := 0
	for _, c := range g.Children {
		n += 1 + len(c.Leaves)
	}
	return n
}
