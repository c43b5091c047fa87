package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Source ids are decimal strings that grow at the origin, so ordering by
// (length, value) matches numeric order and keeps same-timestamp messages in
// arrival order.
const (
	newestFirst = "ts DESC, length(source_message_id) DESC, source_message_id DESC"
	oldestFirst = "m.ts ASC, length(m.source_message_id) ASC, m.source_message_id ASC, m.id ASC, a.position ASC"

	messageColumns = `m.id, m.source_message_id, m.channel_id, m.author_id, m.author_display_name,
		m.content, m.ts, a.locator_url, a.content_type, a.size_bytes`
)

// SQLiteStore is the SQLite backed Store. The database runs in WAL mode so
// readers proceed while a write transaction is open; writers are serialized
// in-process by writeMu.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
	now     func() time.Time
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
// If dbPath is empty, defaults to "data/conversations.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "data/conversations.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		source_message_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		author_display_name TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		ts INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (channel_id, source_message_id)
	);

	CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		locator_url TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS conversations (
		channel_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		last_activity_at INTEGER NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_channel_ts ON messages(channel_id, ts);
	CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_last_activity ON conversations(last_activity_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a write transaction. Store writes are not cancellable
// once started, so the transaction ignores cancellation of ctx.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx = context.WithoutCancel(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Record stores msg unless (channel, source id) is already present. The
// message, its attachments and the conversation rollup are written in one
// transaction.
func (s *SQLiteStore) Record(ctx context.Context, msg Message, channelDisplayName string) (RecordResult, error) {
	if !ValidTimestamp(msg.Timestamp) {
		return RecordResult{}, fmt.Errorf("record %s/%s at %s: %w", msg.ChannelID, msg.SourceMessageID, msg.Timestamp, ErrTimestampOutOfRange)
	}
	var res RecordResult
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `
			INSERT INTO messages (channel_id, source_message_id, author_id, author_display_name, content, ts, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(channel_id, source_message_id) DO NOTHING
		`, msg.ChannelID, msg.SourceMessageID, msg.AuthorID, msg.AuthorDisplayName, msg.Content,
			msg.Timestamp.UnixNano(), s.now().UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		id, err := r.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get message ID: %w", err)
		}

		for i, a := range msg.Attachments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO attachments (message_id, position, locator_url, content_type, size_bytes)
				VALUES (?, ?, ?, ?, ?)
			`, id, i, a.LocatorURL, a.ContentType, a.SizeBytes); err != nil {
				return fmt.Errorf("failed to insert attachment: %w", err)
			}
		}

		created, count, err := s.touch(ctx, tx, msg.ChannelID, channelDisplayName, msg.Timestamp)
		if err != nil {
			return err
		}
		res = RecordResult{Inserted: true, MessageCount: count, NewConversation: created}
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}
	return res, nil
}

// QueryRecent returns up to limit of the newest messages of the channel in
// chronological order. The store applies no ceiling of its own.
func (s *SQLiteStore) QueryRecent(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM (
			SELECT * FROM messages
			WHERE channel_id = ?
			ORDER BY `+newestFirst+`
			LIMIT ?
		) AS m
		LEFT JOIN attachments a ON a.message_id = m.id
		ORDER BY `+oldestFirst,
		channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	return scanMessages(rows)
}

// QueryByTimeRange returns every message with start <= timestamp < end in
// chronological order.
func (s *SQLiteStore) QueryByTimeRange(ctx context.Context, channelID string, start, end time.Time) ([]Message, error) {
	if !start.Before(end) {
		return []Message{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN attachments a ON a.message_id = m.id
		WHERE m.channel_id = ? AND m.ts >= ? AND m.ts < ?
		ORDER BY `+oldestFirst,
		channelID, nanos(start), nanos(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages by time range: %w", err)
	}
	return scanMessages(rows)
}

// EvictOldest deletes all but the keepCount newest messages of the channel
// and decrements the rollup count by exactly the number removed.
func (s *SQLiteStore) EvictOldest(ctx context.Context, channelID string, keepCount int) (int, error) {
	if keepCount < 0 {
		return 0, ErrInvalidKeepCount
	}
	var removed int64
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `
			DELETE FROM messages
			WHERE channel_id = ? AND id NOT IN (
				SELECT id FROM messages
				WHERE channel_id = ?
				ORDER BY `+newestFirst+`
				LIMIT ?
			)
		`, channelID, channelID, keepCount)
		if err != nil {
			return fmt.Errorf("failed to evict messages: %w", err)
		}
		if removed, err = r.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if removed == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE conversations SET message_count = message_count - ? WHERE channel_id = ?
		`, removed, channelID); err != nil {
			return fmt.Errorf("failed to decrement message count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// DeleteRecent removes the count newest messages of the channel.
func (s *SQLiteStore) DeleteRecent(ctx context.Context, channelID string, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	var removed int64
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `
			DELETE FROM messages
			WHERE id IN (
				SELECT id FROM messages
				WHERE channel_id = ?
				ORDER BY `+newestFirst+`
				LIMIT ?
			)
		`, channelID, count)
		if err != nil {
			return fmt.Errorf("failed to delete recent messages: %w", err)
		}
		if removed, err = r.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if removed == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE conversations
			SET message_count = message_count - ?,
				last_activity_at = COALESCE((SELECT MAX(ts) FROM messages WHERE channel_id = ?), last_activity_at)
			WHERE channel_id = ?
		`, removed, channelID, channelID); err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// DeleteChannel removes every message of the channel. The conversation row is
// kept with a zero count.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, channelID string) (int, error) {
	var removed int64
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = ?`, channelID)
		if err != nil {
			return fmt.Errorf("failed to delete channel messages: %w", err)
		}
		if removed, err = r.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE conversations SET message_count = 0 WHERE channel_id = ?
		`, channelID); err != nil {
			return fmt.Errorf("failed to reset message count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// Reconcile recounts every conversation from the messages table and creates
// rollups missing for channels that have messages. It returns the number of
// rollups that were changed.
func (s *SQLiteStore) Reconcile(ctx context.Context) (int, error) {
	var changed int64
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (channel_id, display_name, last_activity_at, message_count, created_at)
			SELECT channel_id, '', MAX(ts), COUNT(*), ?
			FROM messages
			WHERE channel_id NOT IN (SELECT channel_id FROM conversations)
			GROUP BY channel_id
		`, s.now().UnixNano())
		if err != nil {
			return fmt.Errorf("failed to create missing conversations: %w", err)
		}
		created, err := r.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		r, err = tx.ExecContext(ctx, `
			UPDATE conversations
			SET message_count = (SELECT COUNT(*) FROM messages m WHERE m.channel_id = conversations.channel_id)
			WHERE message_count != (SELECT COUNT(*) FROM messages m WHERE m.channel_id = conversations.channel_id)
		`)
		if err != nil {
			return fmt.Errorf("failed to recount conversations: %w", err)
		}
		fixed, err := r.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		changed = created + fixed
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(changed), nil
}

// Info returns size and row counts of the database.
func (s *SQLiteStore) Info(ctx context.Context) (Info, error) {
	info := Info{Path: s.path}
	for _, p := range []string{s.path, s.path + "-wal"} {
		if st, err := os.Stat(p); err == nil {
			info.SizeBytes += st.Size()
		}
	}

	var oldest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM attachments),
			(SELECT MIN(ts) FROM messages)
	`).Scan(&info.TotalMessages, &info.Conversations, &info.TotalAttachments, &oldest)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read database info: %w", err)
	}
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64).UTC()
		info.OldestMessageTime = &t
	}
	return info, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	out := []Message{}
	lastID := int64(-1)
	for rows.Next() {
		var (
			id      int64
			m       Message
			ts      int64
			locator sql.NullString
			ctype   sql.NullString
			size    sql.NullInt64
		)
		if err := rows.Scan(&id, &m.SourceMessageID, &m.ChannelID, &m.AuthorID, &m.AuthorDisplayName,
			&m.Content, &ts, &locator, &ctype, &size); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if id != lastID {
			m.Timestamp = time.Unix(0, ts).UTC()
			out = append(out, m)
			lastID = id
		}
		if locator.Valid {
			cur := &out[len(out)-1]
			cur.Attachments = append(cur.Attachments, Attachment{
				LocatorURL:  locator.String,
				ContentType: ctype.String,
				SizeBytes:   size.Int64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return out, nil
}
