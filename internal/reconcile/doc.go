// Package reconcile brings a term store into structural agreement with a
// declared taxonomy definition.
//
// A run for one taxonomy has two phases, always in this order:
//
//  1. ApplyDirectives renames or deletes existing terms by their previous
//     name. Directives whose source name is absent are skipped, so the table
//     can be replayed on every run.
//  2. Reconcile walks the definition root to leaf, one level at a time, and
//     creates every node that is missing under its resolved parent. Matching
//     is by exact name among siblings.
//
// Reconciliation is additive. Terms present in the store but absent from the
// definition are never touched; removal only happens through a directive.
// A second run over an unchanged definition creates nothing.
//
// Failures are absorbed term by term. A rejected creation is logged and
// recorded in the Report, and anything that would have been parented under
// the failed node is skipped. Only a failure to list level-1 terms (or to
// invalidate caches) aborts a run, because then nothing reliable can be said
// about the tree.
//
// The engine holds no locks. Callers must not run two passes over the same
// taxonomy at once; the schema package's ticket scheduling provides that.
package reconcile
