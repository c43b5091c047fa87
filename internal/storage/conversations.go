package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// touch creates or updates the rollup of channelID inside tx for one newly
// inserted message. It reports whether the rollup was created and the count
// after the update.
func (s *SQLiteStore) touch(ctx context.Context, tx *sql.Tx, channelID, displayName string, at time.Time) (bool, int, error) {
	var count int
	err := tx.QueryRowContext(ctx, `SELECT message_count FROM conversations WHERE channel_id = ?`, channelID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (channel_id, display_name, last_activity_at, message_count, created_at)
			VALUES (?, ?, ?, 1, ?)
		`, channelID, displayName, at.UnixNano(), s.now().UnixNano()); err != nil {
			return false, 0, fmt.Errorf("failed to create conversation: %w", err)
		}
		return true, 1, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read conversation: %w", err)
	}

	// Events may arrive out of order; last activity only moves forward.
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET display_name = CASE WHEN ? != '' THEN ? ELSE display_name END,
			last_activity_at = MAX(last_activity_at, ?),
			message_count = message_count + 1
		WHERE channel_id = ?
	`, displayName, displayName, at.UnixNano(), channelID); err != nil {
		return false, 0, fmt.Errorf("failed to update conversation: %w", err)
	}
	return false, count + 1, nil
}

// GetConversation returns the rollup of channelID, or nil if the channel has
// never been recorded.
func (s *SQLiteStore) GetConversation(ctx context.Context, channelID string) (*Conversation, error) {
	var (
		c    Conversation
		last int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT channel_id, display_name, last_activity_at, message_count
		FROM conversations WHERE channel_id = ?
	`, channelID).Scan(&c.ChannelID, &c.DisplayName, &last, &c.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	c.LastActivityAt = time.Unix(0, last).UTC()
	return &c, nil
}

// ListActive returns the ids of channels whose last activity is at or after
// since, most recent first.
func (s *SQLiteStore) ListActive(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id FROM conversations
		WHERE last_activity_at >= ?
		ORDER BY last_activity_at DESC, channel_id ASC
	`, nanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list active conversations: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan channel id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListConversations returns up to limit rollups, most recently active first.
// A non-positive limit returns all of them.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, display_name, last_activity_at, message_count
		FROM conversations
		ORDER BY last_activity_at DESC, channel_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	out := []Conversation{}
	for rows.Next() {
		var (
			c    Conversation
			last int64
		)
		if err := rows.Scan(&c.ChannelID, &c.DisplayName, &last, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.LastActivityAt = time.Unix(0, last).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountConversations returns the number of known channels.
func (s *SQLiteStore) CountConversations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return n, nil
}
