// Package store provides the SQLite-backed term store for managed taxonomies.
//
// The store holds:
//   - Terms: one row per taxonomy node (id, taxonomy, name, slug, parent)
//   - Term Relationships: externally-assigned object -> term links
//   - Options: process-wide persisted scalars (the schema version stamp)
//   - Scheduled Jobs: at most one deferred job ticket per hook
//
// # Primitives
//
// Each mutation (create, rename, delete) is atomic on its own. There is no
// batch API: callers that build trees issue one write per node and must be
// correct under that constraint.
//
// # Write Guard
//
// Taxonomies registered with WithManaged only accept structural writes that
// carry an allowed Origin in their context (see WithOrigin). The reconciler
// may create, rename and delete; the admin single-term insert may only
// create. Anything else is rejected with ErrUnmanagedWrite.
//
// # Ordering
//
// Listings are returned in store-native order: ORDER BY name ASC, id ASC
// (binary collation). Sibling placement for admin inserts relies on it.
//
// # Derived Views
//
// Tree builds a nested view of a taxonomy and caches it until
// InvalidateCache is called for that taxonomy. Writes never invalidate
// implicitly; the reconciler invalidates before and after each pass.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Relationships cascade when a term is deleted
package store
