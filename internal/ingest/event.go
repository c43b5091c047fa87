package ingest

import (
	"errors"
	"fmt"
	"time"

	"chat-archive/internal/storage"
)

// ErrMalformedEvent is matched by every validation failure.
var ErrMalformedEvent = errors.New("malformed event")

// MalformedEventError names the first invalid required field. An empty
// Reason means the field is missing.
type MalformedEventError struct {
	Field  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed event: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed event: missing %s", e.Field)
}

func (e *MalformedEventError) Is(target error) bool { return target == ErrMalformedEvent }

type Attachment struct {
	LocatorURL  string `json:"locator_url"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// Event is a chat message as delivered by the chat platform, bot replies
// included.
type Event struct {
	SourceMessageID    string       `json:"source_message_id"`
	ChannelID          string       `json:"channel_id"`
	ChannelDisplayName string       `json:"channel_display_name,omitempty"`
	AuthorID           string       `json:"author_id"`
	AuthorDisplayName  string       `json:"author_display_name,omitempty"`
	Content            string       `json:"content"`
	Timestamp          time.Time    `json:"timestamp"`
	Attachments        []Attachment `json:"attachments,omitempty"`
}

// Validate checks the fields the store cannot do without. Empty content is
// allowed.
func (e Event) Validate() error {
	switch {
	case e.SourceMessageID == "":
		return &MalformedEventError{Field: "source_message_id"}
	case e.ChannelID == "":
		return &MalformedEventError{Field: "channel_id"}
	case e.AuthorID == "":
		return &MalformedEventError{Field: "author_id"}
	case e.Timestamp.IsZero():
		return &MalformedEventError{Field: "timestamp"}
	case !storage.ValidTimestamp(e.Timestamp):
		return &MalformedEventError{Field: "timestamp", Reason: "out of range"}
	}
	for i, a := range e.Attachments {
		if a.LocatorURL == "" {
			return &MalformedEventError{Field: fmt.Sprintf("attachments[%d].locator_url", i)}
		}
	}
	return nil
}

// Message converts the event into its stored form.
func (e Event) Message() storage.Message {
	m := storage.Message{
		SourceMessageID:   e.SourceMessageID,
		ChannelID:         e.ChannelID,
		AuthorID:          e.AuthorID,
		AuthorDisplayName: e.AuthorDisplayName,
		Content:           e.Content,
		Timestamp:         e.Timestamp.UTC(),
	}
	for _, a := range e.Attachments {
		m.Attachments = append(m.Attachments, storage.Attachment{
			LocatorURL:  a.LocatorURL,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
		})
	}
	return m
}
