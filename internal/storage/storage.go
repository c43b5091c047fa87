package storage

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrInvalidKeepCount is returned by EvictOldest for a negative keep count.
	ErrInvalidKeepCount = errors.New("keep count must not be negative")
	// ErrTimestampOutOfRange is returned by Record for a timestamp that has
	// no nanosecond representation.
	ErrTimestampOutOfRange = errors.New("timestamp out of range")
)

// Timestamps are stored as unix nanoseconds, which covers 1677-09-21 to
// 2262-04-11.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// ValidTimestamp reports whether t is non-zero and storable.
func ValidTimestamp(t time.Time) bool {
	return !t.IsZero() && !t.Before(MinTimestamp) && !t.After(MaxTimestamp)
}

// nanos converts t for a query bound, clamping it into the storable range.
func nanos(t time.Time) int64 {
	switch {
	case t.Before(MinTimestamp):
		return math.MinInt64
	case t.After(MaxTimestamp):
		return math.MaxInt64
	}
	return t.UnixNano()
}

// Attachment is a reference to media attached to a message. Only the
// locator and metadata are kept, never the bytes.
type Attachment struct {
	LocatorURL  string `json:"locator_url"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Message is one recorded chat event. Messages are immutable once recorded.
type Message struct {
	SourceMessageID   string       `json:"source_message_id"`
	ChannelID         string       `json:"channel_id"`
	AuthorID          string       `json:"author_id"`
	AuthorDisplayName string       `json:"author_display_name"`
	Content           string       `json:"content"`
	Timestamp         time.Time    `json:"timestamp"`
	Attachments       []Attachment `json:"attachments,omitempty"`
}

// Conversation is the per-channel rollup. MessageCount always equals the
// number of stored messages of the channel.
type Conversation struct {
	ChannelID      string    `json:"channel_id"`
	DisplayName    string    `json:"display_name"`
	LastActivityAt time.Time `json:"last_activity_at"`
	MessageCount   int       `json:"message_count"`
}

// RecordResult describes the outcome of Record. A duplicate is reported
// with Inserted=false and is not an error.
type RecordResult struct {
	Inserted bool
	// MessageCount is the channel's count after the write.
	MessageCount int
	// NewConversation is set when this record created the channel rollup.
	NewConversation bool
}

// Author is one author of a channel together with how many of their
// messages with text are stored.
type Author struct {
	ChannelID    string
	AuthorID     string
	DisplayName  string
	MessageCount int
}

// Info summarizes the database for operators.
type Info struct {
	Path              string
	SizeBytes         int64
	TotalMessages     int64
	Conversations     int64
	TotalAttachments  int64
	OldestMessageTime *time.Time
}

// Store is the Message Store together with the Conversation Index.
// Implementations must be safe for concurrent use; every write is applied
// as a single transaction.
type Store interface {
	Record(ctx context.Context, msg Message, channelDisplayName string) (RecordResult, error)
	QueryRecent(ctx context.Context, channelID string, limit int) ([]Message, error)
	QueryByTimeRange(ctx context.Context, channelID string, start, end time.Time) ([]Message, error)
	EvictOldest(ctx context.Context, channelID string, keepCount int) (int, error)
	DeleteRecent(ctx context.Context, channelID string, count int) (int, error)
	DeleteChannel(ctx context.Context, channelID string) (int, error)

	FindAuthor(ctx context.Context, channelID, who string) (*Author, error)
	QueryByAuthor(ctx context.Context, channelID, authorID string, limit int) ([]Message, error)
	RandomAuthor(ctx context.Context, since time.Time, minMessages int, exclude []string) (*Author, error)

	GetConversation(ctx context.Context, channelID string) (*Conversation, error)
	ListActive(ctx context.Context, since time.Time) ([]string, error)
	ListConversations(ctx context.Context, limit int) ([]Conversation, error)
	CountConversations(ctx context.Context) (int64, error)

	Reconcile(ctx context.Context) (int, error)
	Info(ctx context.Context) (Info, error)
	Ping(ctx context.Context) error
	Close() error
}
