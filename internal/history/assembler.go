// Package history assembles stored messages into AI context and report
// transcripts.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-archive/internal/storage"
)

const TimeLabelLayout = "2006-01-02 15:04"

var ErrInvalidSelector = errors.New("invalid selector")

// Reader is the read side of the store.
type Reader interface {
	QueryRecent(ctx context.Context, channelID string, limit int) ([]storage.Message, error)
	QueryByTimeRange(ctx context.Context, channelID string, start, end time.Time) ([]storage.Message, error)
	FindAuthor(ctx context.Context, channelID, who string) (*storage.Author, error)
	QueryByAuthor(ctx context.Context, channelID, authorID string, limit int) ([]storage.Message, error)
}

// Line is one message rendered for a prompt.
type Line struct {
	TimeLabel   string
	DisplayName string
	Content     string
}

func (l Line) String() string {
	return fmt.Sprintf("[%s] %s: %s", l.TimeLabel, l.DisplayName, l.Content)
}

type Assembler struct {
	reader     Reader
	maxContext int
	now        func() time.Time
}

func NewAssembler(reader Reader, maxContext int) *Assembler {
	return &Assembler{reader: reader, maxContext: maxContext, now: time.Now}
}

// MaxContext is the ceiling ForAI applies.
func (a *Assembler) MaxContext() int { return a.maxContext }

// ForAI returns the newest maxContext messages of the channel as prompt
// lines, oldest first.
func (a *Assembler) ForAI(ctx context.Context, channelID string) ([]Line, error) {
	return a.ForAIWithLimit(ctx, channelID, a.maxContext)
}

// ForAIWithLimit is ForAI with the limit clamped to [1, maxContext].
func (a *Assembler) ForAIWithLimit(ctx context.Context, channelID string, limit int) ([]Line, error) {
	msgs, err := a.reader.QueryRecent(ctx, channelID, a.clamp(limit))
	if err != nil {
		return nil, err
	}
	return Lines(msgs), nil
}

// ForReport returns the messages sel covers in chronological order.
func (a *Assembler) ForReport(ctx context.Context, channelID string, sel Selector) ([]storage.Message, error) {
	switch sel.Kind() {
	case KindCount:
		if sel.Count() <= 0 {
			return nil, fmt.Errorf("%w: count %d", ErrInvalidSelector, sel.Count())
		}
		return a.reader.QueryRecent(ctx, channelID, sel.Count())
	case KindCalendarDay:
		start, end := DayRange(a.now(), sel.DayOffset())
		return a.reader.QueryByTimeRange(ctx, channelID, start, end)
	default:
		return nil, ErrInvalidSelector
	}
}

// ForAuthor resolves who among the channel's authors and returns their
// newest messages with text, oldest first, limit clamped like
// ForAIWithLimit. The author is nil when nobody matches.
func (a *Assembler) ForAuthor(ctx context.Context, channelID, who string, limit int) (*storage.Author, []storage.Message, error) {
	author, err := a.reader.FindAuthor(ctx, channelID, who)
	if err != nil || author == nil {
		return nil, nil, err
	}
	msgs, err := a.reader.QueryByAuthor(ctx, channelID, author.AuthorID, a.clamp(limit))
	if err != nil {
		return nil, nil, err
	}
	return author, msgs, nil
}

func (a *Assembler) clamp(n int) int {
	if n < 1 {
		return 1
	}
	if n > a.maxContext {
		return a.maxContext
	}
	return n
}

// DayRange returns [midnight, next midnight) in UTC of the day offset days
// from the day containing now.
func DayRange(now time.Time, offset int) (time.Time, time.Time) {
	u := now.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day()+offset, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Lines renders msgs for a prompt. Attachments become placeholders so the
// model knows media was present.
func Lines(msgs []storage.Message) []Line {
	out := make([]Line, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Line{
			TimeLabel:   m.Timestamp.UTC().Format(TimeLabelLayout),
			DisplayName: displayName(m),
			Content:     renderContent(m),
		})
	}
	return out
}

// Transcript joins lines one per row.
func Transcript(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.String())
	}
	return b.String()
}

func displayName(m storage.Message) string {
	if m.AuthorDisplayName != "" {
		return m.AuthorDisplayName
	}
	return m.AuthorID
}

func renderContent(m storage.Message) string {
	parts := make([]string, 0, len(m.Attachments)+1)
	if c := strings.TrimSpace(m.Content); c != "" {
		parts = append(parts, c)
	}
	for _, a := range m.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "unknown"
		}
		parts = append(parts, "[attachment: "+ct+"]")
	}
	return strings.Join(parts, " ")
}
