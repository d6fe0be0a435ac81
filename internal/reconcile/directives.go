package reconcile

import (
	"context"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// ApplyDirectives renames or deletes existing terms of tax according to ds.
//
// The whole taxonomy is listed once up front and indexed by name; when two
// terms share a name the first in store order is targeted. Directives whose
// source name is absent are counted as skipped. Individual rename and delete
// failures are logged and recorded, and processing continues.
//
// Returns an error only if the taxonomy cannot be listed.
func (e *Engine) ApplyDirectives(ctx context.Context, tax taxonomy.ID, ds taxonomy.Directives) (DirectiveReport, error) {
	report := DirectiveReport{Taxonomy: tax}
	if len(ds) == 0 {
		return report, nil
	}

	terms, err := e.store.ListTerms(ctx, tax, taxonomy.AnyParent())
	if err != nil {
		opFailures.WithLabelValues(string(tax), string(OpList)).Inc()
		return report, &OpError{Op: OpList, Taxonomy: tax, Err: err}
	}
	index := taxonomy.NameIndex(terms)

	wctx := writeCtx(ctx)
	for _, d := range ds {
		id, ok := index[d.From]
		if !ok {
			report.Skipped++
			e.logger.Debug("directive not applicable", "taxonomy", tax, "directive", d.String())
			continue
		}

		if d.IsDelete() {
			if err := e.store.DeleteTerm(wctx, id); err != nil {
				report.Failures = append(report.Failures, e.fail(OpDelete, tax, d.From, 0, 0, err))
				continue
			}
			delete(index, d.From)
			report.Deleted++
			directivesApplied.WithLabelValues(string(tax), "delete").Inc()
			e.logger.Info("term deleted", "taxonomy", tax, "name", d.From, "id", id)
			continue
		}

		if err := e.store.RenameTerm(wctx, id, d.To); err != nil {
			report.Failures = append(report.Failures, e.fail(OpRename, tax, d.From, 0, 0, err))
			continue
		}
		delete(index, d.From)
		if _, taken := index[d.To]; !taken {
			index[d.To] = id
		}
		report.Renamed++
		directivesApplied.WithLabelValues(string(tax), "rename").Inc()
		e.logger.Info("term renamed", "taxonomy", tax, "from", d.From, "to", d.To, "id", id)
	}

	return report, nil
}

// fail logs and counts an absorbed store failure.
func (e *Engine) fail(op Op, tax taxonomy.ID, name string, parent taxonomy.TermID, level int, err error) *OpError {
	oe := &OpError{Op: op, Taxonomy: tax, Name: name, Parent: parent, Level: level, Err: err}
	opFailures.WithLabelValues(string(tax), string(op)).Inc()
	e.logger.Warn("term operation failed, skipping",
		"op", string(op),
		"taxonomy", tax,
		"name", name,
		"parent", parent,
		"error", err,
	)
	return oe
}
