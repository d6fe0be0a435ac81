// Package taxonomy provides the domain types shared by every other package:
// terms, the ordered three-level master definition, rename/delete directives,
// and the versioned schema that groups managed taxonomies.
//
// This package contains types and pure helpers only. All other internal
// packages import taxonomy; taxonomy imports nothing internal.
//
// Key design constraints:
//   - Definitions are ordered values built once at startup and never mutated
//   - Term names are matched by exact equality within a sibling scope
//   - RootID (0) is the parent of every level-1 term
package taxonomy
