package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chat-archive/internal/config"
	"chat-archive/internal/retention"
	"chat-archive/internal/storage"
)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(channel string, id int) Event {
	return Event{
		SourceMessageID:    fmt.Sprint(id),
		ChannelID:          channel,
		ChannelDisplayName: "room " + channel,
		AuthorID:           "42",
		AuthorDisplayName:  "bob",
		Content:            "hello",
		Timestamp:          time.Date(2024, 5, 1, 10, 0, id, 0, time.UTC),
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Event){
		"source_message_id":          func(e *Event) { e.SourceMessageID = "" },
		"channel_id":                 func(e *Event) { e.ChannelID = "" },
		"author_id":                  func(e *Event) { e.AuthorID = "" },
		"timestamp":                  func(e *Event) { e.Timestamp = time.Time{} },
		"attachments[0].locator_url": func(e *Event) { e.Attachments = []Attachment{{ContentType: "image/png"}} },
	}
	for field, mutate := range cases {
		ev := event("c1", 1)
		mutate(&ev)
		err := ev.Validate()
		if !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("%s: want ErrMalformedEvent, got %v", field, err)
		}
		var me *MalformedEventError
		if !errors.As(err, &me) || me.Field != field {
			t.Fatalf("%s: wrong field in %v", field, err)
		}
	}

	ev := event("c1", 1)
	ev.Content = ""
	if err := ev.Validate(); err != nil {
		t.Fatalf("empty content must be accepted: %v", err)
	}
}

func TestValidate_TimestampOutOfRange(t *testing.T) {
	st := newStore(t)
	svc := NewService(st, nil, config.DefaultRetention(), zerolog.New(io.Discard))
	ctx := context.Background()

	for _, at := range []time.Time{
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1200, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		ev := event("c1", 1)
		ev.Timestamp = at
		_, err := svc.Handle(ctx, ev)
		var me *MalformedEventError
		if !errors.As(err, &me) || me.Field != "timestamp" || me.Reason != "out of range" {
			t.Fatalf("%v: want out of range timestamp error, got %v", at, err)
		}
	}
	if n, _ := st.CountConversations(ctx); n != 0 {
		t.Fatalf("out of range event was stored")
	}
}

func TestHandle_RecordsAndDeduplicates(t *testing.T) {
	st := newStore(t)
	policy := config.DefaultRetention()
	svc := NewService(st, retention.NewSweeper(st, policy.MaxMessagesPerChannel, zerolog.New(io.Discard)), policy, zerolog.New(io.Discard))
	ctx := context.Background()

	ev := event("c1", 1)
	ev.Attachments = []Attachment{{LocatorURL: "tg://file/1", ContentType: "image/jpeg", SizeBytes: 5}}
	res, err := svc.Handle(ctx, ev)
	if err != nil || !res.Inserted || !res.NewConversation {
		t.Fatalf("first handle: %+v %v", res, err)
	}
	res, err = svc.Handle(ctx, ev)
	if err != nil || res.Inserted {
		t.Fatalf("redelivery: %+v %v", res, err)
	}

	msgs, _ := st.QueryRecent(ctx, "c1", 10)
	if len(msgs) != 1 || len(msgs[0].Attachments) != 1 {
		t.Fatalf("unexpected stored messages: %+v", msgs)
	}
	conv, _ := st.GetConversation(ctx, "c1")
	if conv.DisplayName != "room c1" {
		t.Fatalf("display name: %q", conv.DisplayName)
	}
}

func TestHandle_MalformedIsDropped(t *testing.T) {
	st := newStore(t)
	svc := NewService(st, nil, config.DefaultRetention(), zerolog.New(io.Discard))
	ev := event("c1", 1)
	ev.AuthorID = ""
	if _, err := svc.Handle(context.Background(), ev); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("want ErrMalformedEvent, got %v", err)
	}
	n, _ := st.CountConversations(context.Background())
	if n != 0 {
		t.Fatalf("malformed event created a conversation")
	}
}

func TestHandle_EnforcesCap(t *testing.T) {
	st := newStore(t)
	policy := config.Retention{MaxMessagesPerChannel: 3, MaxActiveConversations: 10, MaxContextMessagesForAI: 3}
	svc := NewService(st, retention.NewSweeper(st, 3, zerolog.New(io.Discard)), policy, zerolog.New(io.Discard))
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		if _, err := svc.Handle(ctx, event("c1", i)); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	conv, _ := st.GetConversation(ctx, "c1")
	if conv.MessageCount != 3 {
		t.Fatalf("want 3 after cap, got %d", conv.MessageCount)
	}
}

func TestHandle_WarnsAboveActiveLimit(t *testing.T) {
	st := newStore(t)
	var buf bytes.Buffer
	policy := config.Retention{MaxMessagesPerChannel: 10, MaxActiveConversations: 1, MaxContextMessagesForAI: 10}
	svc := NewService(st, nil, policy, zerolog.New(&buf))
	ctx := context.Background()

	if _, err := svc.Handle(ctx, event("c1", 1)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Contains(buf.String(), "active conversation limit exceeded") {
		t.Fatalf("warned at the limit")
	}
	if _, err := svc.Handle(ctx, event("c2", 1)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(buf.String(), "active conversation limit exceeded") {
		t.Fatalf("expected advisory warning, log: %s", buf.String())
	}
	n, _ := st.CountConversations(ctx)
	if n != 2 {
		t.Fatalf("conversation dropped by advisory limit: %d", n)
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, msg storage.Message, name string) (storage.RecordResult, error) {
	return storage.RecordResult{}, errors.New("database is locked")
}

func (failingRecorder) CountConversations(ctx context.Context) (int64, error) { return 0, nil }

func TestHandle_StorageFailureIsReturned(t *testing.T) {
	svc := NewService(failingRecorder{}, nil, config.DefaultRetention(), zerolog.New(io.Discard))
	if _, err := svc.Handle(context.Background(), event("c1", 1)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHandle_TwelveHundredOneAtATime(t *testing.T) {
	st := newStore(t)
	policy := config.DefaultRetention()
	svc := NewService(st, retention.NewSweeper(st, policy.MaxMessagesPerChannel, zerolog.New(io.Discard)), policy, zerolog.New(io.Discard))
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 1200; i++ {
		ev := event("busy", i)
		ev.Timestamp = start.Add(time.Duration(i) * time.Second)
		if _, err := svc.Handle(ctx, ev); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
		conv, _ := st.GetConversation(ctx, "busy")
		if want := min(i, 1000); conv.MessageCount != want {
			t.Fatalf("after %d: count %d, want %d", i, conv.MessageCount, want)
		}
	}

	msgs, _ := st.QueryRecent(ctx, "busy", 5000)
	if len(msgs) != 1000 {
		t.Fatalf("want 1000 rows, got %d", len(msgs))
	}
	if msgs[0].SourceMessageID != "201" || msgs[999].SourceMessageID != "1200" {
		t.Fatalf("oldest 200 not evicted: first=%s last=%s", msgs[0].SourceMessageID, msgs[999].SourceMessageID)
	}
	conv, _ := st.GetConversation(ctx, "busy")
	if conv.MessageCount != 1000 {
		t.Fatalf("rollup count %d", conv.MessageCount)
	}

	// a second sweep has nothing left to do
	if n, err := retention.NewSweeper(st, 1000, zerolog.New(io.Discard)).Sweep(ctx, "busy"); err != nil || n != 0 {
		t.Fatalf("second sweep: %d %v", n, err)
	}
}
