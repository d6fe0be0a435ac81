package store

import (
	"context"
	"fmt"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// AssignTerm tags an external object (a post, a page, an attachment) with a
// term. Uses ON CONFLICT DO NOTHING - assigning twice is a no-op.
//
// Relationships are owned by content editors; reconciliation never touches them.
func (s *Store) AssignTerm(ctx context.Context, objectID string, termID taxonomy.TermID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO term_relationships (object_id, term_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, objectID, int64(termID))
	if err != nil {
		return fmt.Errorf("assign term %d to %s: %w", termID, objectID, err)
	}
	return nil
}

// ObjectTerms returns the terms assigned to an object, in store-native order.
func (s *Store) ObjectTerms(ctx context.Context, objectID string) ([]taxonomy.Term, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.taxonomy, t.name, t.slug, t.parent
		FROM term_relationships r
		JOIN terms t ON t.id = r.term_id
		WHERE r.object_id = ?
		ORDER BY t.name COLLATE BINARY ASC, t.id ASC
	`, objectID)
	if err != nil {
		return nil, fmt.Errorf("query object terms: %w", err)
	}
	defer rows.Close()

	terms := []taxonomy.Term{}
	for rows.Next() {
		t, err := scanTerm(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan object term: %w", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate object terms: %w", err)
	}
	return terms, nil
}
