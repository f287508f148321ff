package database

import (
	"context"
	"fmt"
	"log"
	"time"
)

// AuthorRetention is how long an unreferenced author stays cached.
const AuthorRetention = 30 * 24 * time.Hour

// PruneAuthors deletes cached authors not seen for AuthorRetention that no
// subscription references any more.
func (s *Store) PruneAuthors(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-AuthorRetention).Unix()

	stmt, err := s.db.PrepareContext(ctx, `
    DELETE FROM twitter_users
    WHERE last_seen < ?
      AND id NOT IN (SELECT twitter_user_id FROM subscriptions)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare prune statement: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune authors: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	log.Printf("Pruned %d cached authors not seen since %s", rowsAffected, time.Unix(cutoff, 0).Format(time.RFC3339))
	return rowsAffected, nil
}
