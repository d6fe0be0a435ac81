package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// maxSlugAttempts bounds the -2, -3, ... suffix search for a free slug.
const maxSlugAttempts = 1000

// ListTerms returns the terms of a taxonomy that pass filter, in
// store-native order (name ASC, id ASC).
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListTerms(ctx context.Context, tax taxonomy.ID, filter taxonomy.ParentFilter) ([]taxonomy.Term, error) {
	query := `
		SELECT id, taxonomy, name, slug, parent
		FROM terms
		WHERE taxonomy = ?`
	args := []any{string(tax)}
	if parent, ok := filter.Parent(); ok {
		query += ` AND parent = ?`
		args = append(args, int64(parent))
	}
	query += ` ORDER BY name COLLATE BINARY ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	terms := []taxonomy.Term{}
	for rows.Next() {
		t, err := scanTerm(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list terms: %w", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}

	return terms, nil
}

// Term retrieves a single term by ID.
// Returns ErrNotFound if it does not exist.
func (s *Store) Term(ctx context.Context, id taxonomy.TermID) (taxonomy.Term, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, taxonomy, name, slug, parent
		FROM terms
		WHERE id = ?
	`, int64(id))

	t, err := scanTerm(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return taxonomy.Term{}, fmt.Errorf("term %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return taxonomy.Term{}, fmt.Errorf("read term %d: %w", id, err)
	}
	return t, nil
}

// CreateTerm inserts one term under parent (taxonomy.RootID for level 1).
//
// The insert is rejected when:
//   - the name is empty (ErrInvalidName)
//   - the taxonomy is managed and ctx carries no origin allowed to create (ErrUnmanagedWrite)
//   - parent is not a term of the same taxonomy (ErrUnknownParent)
//   - a sibling already has the same name (ErrDuplicateTerm)
//
// The slug is derived from the name and made unique within the taxonomy.
func (s *Store) CreateTerm(ctx context.Context, tax taxonomy.ID, name string, parent taxonomy.TermID) (taxonomy.Term, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return taxonomy.Term{}, fmt.Errorf("create term: %w", ErrInvalidName)
	}
	if err := s.guard(ctx, tax, opCreate); err != nil {
		return taxonomy.Term{}, fmt.Errorf("create term %q: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return taxonomy.Term{}, fmt.Errorf("create term: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if parent != taxonomy.RootID {
		var n int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM terms WHERE id = ? AND taxonomy = ?
		`, int64(parent), string(tax)).Scan(&n)
		if err != nil {
			return taxonomy.Term{}, fmt.Errorf("create term: check parent: %w", err)
		}
		if n == 0 {
			return taxonomy.Term{}, fmt.Errorf("create term %q: parent %d: %w", name, parent, ErrUnknownParent)
		}
	}

	if err := checkSibling(ctx, tx, tax, parent, name, 0); err != nil {
		return taxonomy.Term{}, fmt.Errorf("create term %q: %w", name, err)
	}

	slug, err := uniqueSlug(ctx, tx, tax, taxonomy.Slugify(name))
	if err != nil {
		return taxonomy.Term{}, fmt.Errorf("create term %q: %w", name, err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO terms (taxonomy, name, slug, parent)
		VALUES (?, ?, ?, ?)
	`, string(tax), name, slug, int64(parent))
	if err != nil {
		return taxonomy.Term{}, fmt.Errorf("create term %q: insert: %w", name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return taxonomy.Term{}, fmt.Errorf("create term %q: last insert id: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return taxonomy.Term{}, fmt.Errorf("create term %q: commit: %w", name, err)
	}

	return taxonomy.Term{
		ID:       taxonomy.TermID(id),
		Name:     name,
		Slug:     slug,
		Parent:   parent,
		Taxonomy: tax,
	}, nil
}

// RenameTerm changes a term's name in place. Identifier, parent and slug are
// preserved, so anything tagged with the term stays tagged.
func (s *Store) RenameTerm(ctx context.Context, id taxonomy.TermID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("rename term %d: %w", id, ErrInvalidName)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rename term: begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := scanTerm(tx.QueryRowContext(ctx, `
		SELECT id, taxonomy, name, slug, parent FROM terms WHERE id = ?
	`, int64(id)).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("rename term %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("rename term %d: %w", id, err)
	}

	if err := s.guard(ctx, t.Taxonomy, opRename); err != nil {
		return fmt.Errorf("rename term %q: %w", t.Name, err)
	}
	if err := checkSibling(ctx, tx, t.Taxonomy, t.Parent, newName, t.ID); err != nil {
		return fmt.Errorf("rename term %q: %w", t.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE terms SET name = ? WHERE id = ?`, newName, int64(id)); err != nil {
		return fmt.Errorf("rename term %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rename term %d: commit: %w", id, err)
	}
	return nil
}

// DeleteTerm removes one term and its object relationships.
//
// Children of the deleted term are NOT removed or re-parented: they keep a
// parent id that no longer resolves. See Tree for how such orphans surface.
func (s *Store) DeleteTerm(ctx context.Context, id taxonomy.TermID) error {
	t, err := s.Term(ctx, id)
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	if err := s.guard(ctx, t.Taxonomy, opDelete); err != nil {
		return fmt.Errorf("delete term %q: %w", t.Name, err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM terms WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("delete term %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete term %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete term %d: %w", id, ErrNotFound)
	}
	return nil
}

// guard enforces the managed-taxonomy write policy.
func (s *Store) guard(ctx context.Context, tax taxonomy.ID, op writeOp) error {
	if !s.managed[tax] {
		return nil
	}
	origin := OriginFrom(ctx)
	if origin.allows(op) {
		return nil
	}
	s.logger.Warn("rejected write to managed taxonomy",
		"taxonomy", tax,
		"op", string(op),
		"origin", origin.String(),
	)
	return fmt.Errorf("%w: %s by %s origin on %s", ErrUnmanagedWrite, op, origin, tax)
}

// checkSibling fails with ErrDuplicateTerm if another term under parent
// already carries name. except is ignored (the term being renamed).
func checkSibling(ctx context.Context, tx *sql.Tx, tax taxonomy.ID, parent taxonomy.TermID, name string, except taxonomy.TermID) error {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM terms
		WHERE taxonomy = ? AND parent = ? AND name = ? AND id != ?
	`, string(tax), int64(parent), name, int64(except)).Scan(&n)
	if err != nil {
		return fmt.Errorf("check siblings: %w", err)
	}
	if n > 0 {
		return ErrDuplicateTerm
	}
	return nil
}

// uniqueSlug returns base, or base-2, base-3, ... whichever is free first.
func uniqueSlug(ctx context.Context, tx *sql.Tx, tax taxonomy.ID, base string) (string, error) {
	candidate := base
	for i := 2; i < maxSlugAttempts; i++ {
		var n int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM terms WHERE taxonomy = ? AND slug = ?
		`, string(tax), candidate).Scan(&n)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q", base)
}

func scanTerm(scan func(dest ...any) error) (taxonomy.Term, error) {
	var (
		t      taxonomy.Term
		id     int64
		tax    string
		parent int64
	)
	if err := scan(&id, &tax, &t.Name, &t.Slug, &parent); err != nil {
		return taxonomy.Term{}, err
	}
	t.ID = taxonomy.TermID(id)
	t.Taxonomy = taxonomy.ID(tax)
	t.Parent = taxonomy.TermID(parent)
	return t, nil
}
