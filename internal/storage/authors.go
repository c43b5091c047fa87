package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FindAuthor resolves who to an author of the channel. who may be an author
// id or a display name, with or without a leading "@", matched case
// insensitively. When several authors match, the most recently active one
// wins. It returns nil if nobody matches.
func (s *SQLiteStore) FindAuthor(ctx context.Context, channelID, who string) (*Author, error) {
	who = strings.TrimPrefix(strings.TrimSpace(who), "@")
	if who == "" {
		return nil, nil
	}
	a := Author{ChannelID: channelID}
	var newest int64
	// the bare author_display_name column comes from the row holding MAX(ts)
	err := s.db.QueryRowContext(ctx, `
		SELECT author_id, author_display_name, MAX(ts),
			SUM(CASE WHEN TRIM(content) != '' THEN 1 ELSE 0 END)
		FROM messages
		WHERE channel_id = ? AND author_id = (
			SELECT author_id FROM messages
			WHERE channel_id = ? AND (author_id = ? OR author_display_name = ? COLLATE NOCASE)
			ORDER BY ts DESC
			LIMIT 1
		)
		GROUP BY author_id
	`, channelID, channelID, who, who).Scan(&a.AuthorID, &a.DisplayName, &newest, &a.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find author: %w", err)
	}
	return &a, nil
}

// QueryByAuthor returns up to limit of the newest messages with text that
// authorID wrote in the channel, in chronological order.
func (s *SQLiteStore) QueryByAuthor(ctx context.Context, channelID, authorID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM (
			SELECT * FROM messages
			WHERE channel_id = ? AND author_id = ? AND TRIM(content) != ''
			ORDER BY `+newestFirst+`
			LIMIT ?
		) AS m
		LEFT JOIN attachments a ON a.message_id = m.id
		ORDER BY `+oldestFirst,
		channelID, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query author messages: %w", err)
	}
	return scanMessages(rows)
}

// RandomAuthor picks a random (channel, author) pair with at least
// minMessages messages with text since the given time. Authors in exclude
// are never picked. It returns nil if nobody qualifies.
func (s *SQLiteStore) RandomAuthor(ctx context.Context, since time.Time, minMessages int, exclude []string) (*Author, error) {
	query := `
		SELECT channel_id, author_id, author_display_name, COUNT(*)
		FROM messages
		WHERE ts >= ? AND TRIM(content) != ''`
	args := []any{nanos(since)}
	if len(exclude) > 0 {
		query += ` AND author_id NOT IN (?` + strings.Repeat(", ?", len(exclude)-1) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += `
		GROUP BY channel_id, author_id
		HAVING COUNT(*) >= ?
		ORDER BY RANDOM()
		LIMIT 1`
	args = append(args, minMessages)

	var a Author
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&a.ChannelID, &a.AuthorID, &a.DisplayName, &a.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick random author: %w", err)
	}
	return &a, nil
}
