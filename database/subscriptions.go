package database

import (
	"context"
	"database/sql"
	"fmt"

	"tweet-relay/models"
)

// AddSubscription creates a subscription or replaces the flags of an
// existing one for the same destination and user.
func (s *Store) AddSubscription(ctx context.Context, sub models.Subscription) error {
	if sub.CreatedAt == 0 {
		sub.CreatedAt = s.now().Unix()
	}
	query := `
    INSERT INTO subscriptions (channel_id, is_dm, twitter_user_id, flags, created_at)
    VALUES (?, ?, ?, ?, ?)
    ON CONFLICT(channel_id, twitter_user_id) DO UPDATE SET
        is_dm = excluded.is_dm,
        flags = excluded.flags;`

	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for adding subscription: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, sub.ChannelID, sub.IsDM, sub.TwitterUserID, int(sub.Flags), sub.CreatedAt); err != nil {
		return fmt.Errorf("failed to add subscription of %s to %s: %w", sub.TwitterUserID, sub.ChannelID, err)
	}
	return nil
}

// RemoveSubscription deletes a subscription and reports whether it existed.
func (s *Store) RemoveSubscription(ctx context.Context, channelID, twitterUserID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE channel_id = ? AND twitter_user_id = ?`,
		channelID, twitterUserID)
	if err != nil {
		return false, fmt.Errorf("failed to remove subscription of %s from %s: %w", twitterUserID, channelID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListFollowedUserIDs returns every distinct subscribed Twitter user id, sorted.
func (s *Store) ListFollowedUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT twitter_user_id FROM subscriptions ORDER BY twitter_user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query followed users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan followed user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSubscriptionsForAuthor returns the subscriptions following authorID,
// oldest first.
func (s *Store) ListSubscriptionsForAuthor(ctx context.Context, authorID string) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT channel_id, is_dm, twitter_user_id, flags, created_at
    FROM subscriptions WHERE twitter_user_id = ?
    ORDER BY created_at, channel_id`, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions for %s: %w", authorID, err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListSubscriptionsForChannel returns the subscriptions of a destination
// together with the cached screen name of each followed user.
func (s *Store) ListSubscriptionsForChannel(ctx context.Context, channelID string) ([]models.ChannelSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT s.channel_id, s.is_dm, s.twitter_user_id, s.flags, s.created_at, COALESCE(u.screen_name, '')
    FROM subscriptions s LEFT JOIN twitter_users u ON u.id = s.twitter_user_id
    WHERE s.channel_id = ?
    ORDER BY s.created_at, s.twitter_user_id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions of %s: %w", channelID, err)
	}
	defer rows.Close()

	var subs []models.ChannelSubscription
	for rows.Next() {
		var cs models.ChannelSubscription
		var flags int
		if err := rows.Scan(&cs.ChannelID, &cs.IsDM, &cs.TwitterUserID, &flags, &cs.CreatedAt, &cs.ScreenName); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		cs.Flags = models.SubscriptionFlags(flags)
		subs = append(subs, cs)
	}
	return subs, rows.Err()
}

func scanSubscription(rows *sql.Rows) (models.Subscription, error) {
	var sub models.Subscription
	var flags int
	if err := rows.Scan(&sub.ChannelID, &sub.IsDM, &sub.TwitterUserID, &flags, &sub.CreatedAt); err != nil {
		return sub, fmt.Errorf("failed to scan subscription: %w", err)
	}
	sub.Flags = models.SubscriptionFlags(flags)
	return sub, nil
}
