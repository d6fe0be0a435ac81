// Package export writes the live state of a taxonomy tree out of the store.
//
// Two formats are supported:
//
//   - CSV: one row per node, six columns (level-1 name and slug, level-2
//     name and slug, level-3 name and slug). Ancestor columns are repeated
//     on every row and unused columns are empty.
//   - Definition: a YAML document in the same layout the compiler reads, so
//     a hand-curated tree can be captured and checked in as the new desired
//     state.
//
// Both formats walk the tree in store-native order and stop at level 3.
// Orphaned terms are not exported.
package export
