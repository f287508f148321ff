package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tweet-relay/models"
)

// RecordSeenAuthor caches the latest profile of a tweet author.
func (s *Store) RecordSeenAuthor(ctx context.Context, author models.TwitterUser) error {
	if author.ID == "" {
		return fmt.Errorf("author without id")
	}
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO twitter_users (id, screen_name, name, profile_image_url, last_seen)
    VALUES (?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET
        screen_name = excluded.screen_name,
        name = excluded.name,
        profile_image_url = excluded.profile_image_url,
        last_seen = excluded.last_seen;`,
		author.ID, author.ScreenName, author.Name, author.ProfileImageURL, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record author %s: %w", author.ID, err)
	}
	return nil
}

// UserByScreenName looks up a cached author, ignoring case and a leading @.
func (s *Store) UserByScreenName(ctx context.Context, screenName string) (*models.TwitterUser, error) {
	screenName = strings.TrimPrefix(strings.TrimSpace(screenName), "@")
	row := s.db.QueryRowContext(ctx, `
    SELECT id, screen_name, name, profile_image_url FROM twitter_users
    WHERE screen_name = ? COLLATE NOCASE
    ORDER BY last_seen DESC LIMIT 1`, screenName)

	var u models.TwitterUser
	if err := row.Scan(&u.ID, &u.ScreenName, &u.Name, &u.ProfileImageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up %s: %w", screenName, err)
	}
	return &u, nil
}
