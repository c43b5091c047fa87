package retention

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chat-archive/internal/storage"
)

type fakeEvictor struct {
	calls []string
	keep  []int
	convs []storage.Conversation
	err   error
}

func (f *fakeEvictor) EvictOldest(ctx context.Context, channelID string, keepCount int) (int, error) {
	f.calls = append(f.calls, channelID)
	f.keep = append(f.keep, keepCount)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakeEvictor) ListConversations(ctx context.Context, limit int) ([]storage.Conversation, error) {
	return f.convs, nil
}

func TestAfterRecord_OnlyAboveCap(t *testing.T) {
	f := &fakeEvictor{}
	s := NewSweeper(f, 3, zerolog.New(io.Discard))
	ctx := context.Background()

	if _, err := s.AfterRecord(ctx, "c1", storage.RecordResult{Inserted: true, MessageCount: 3}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := s.AfterRecord(ctx, "c1", storage.RecordResult{Inserted: false, MessageCount: 10}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(f.calls) != 0 {
		t.Fatalf("evicted at or below cap: %v", f.calls)
	}

	if _, err := s.AfterRecord(ctx, "c1", storage.RecordResult{Inserted: true, MessageCount: 4}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(f.calls) != 1 || f.keep[0] != 3 {
		t.Fatalf("expected one eviction keeping 3, got %v %v", f.calls, f.keep)
	}
}

func TestSweep_WrapsError(t *testing.T) {
	boom := errors.New("disk full")
	s := NewSweeper(&fakeEvictor{err: boom}, 3, zerolog.New(io.Discard))
	if _, err := s.Sweep(context.Background(), "c1"); !errors.Is(err, boom) {
		t.Fatalf("want wrapped error, got %v", err)
	}
}

func TestSweepAll_SkipsChannelsUnderCap(t *testing.T) {
	f := &fakeEvictor{convs: []storage.Conversation{
		{ChannelID: "small", MessageCount: 2},
		{ChannelID: "big", MessageCount: 9},
	}}
	s := NewSweeper(f, 5, zerolog.New(io.Discard))
	n, err := s.SweepAll(context.Background())
	if err != nil {
		t.Fatalf("sweep all: %v", err)
	}
	if n != 1 || len(f.calls) != 1 || f.calls[0] != "big" {
		t.Fatalf("unexpected sweep: n=%d calls=%v", n, f.calls)
	}
}

func TestSweeper_BoundsChannelWithRealStore(t *testing.T) {
	ctx := context.Background()
	st, err := storage.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "r.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	s := NewSweeper(st, 5, zerolog.New(io.Discard))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 12; i++ {
		res, err := st.Record(ctx, storage.Message{
			SourceMessageID: fmt.Sprint(i),
			ChannelID:       "c1",
			AuthorID:        "u",
			Content:         "x",
			Timestamp:       base.Add(time.Duration(i) * time.Second),
		}, "")
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if _, err := s.AfterRecord(ctx, "c1", res); err != nil {
			t.Fatalf("after record: %v", err)
		}
		conv, _ := st.GetConversation(ctx, "c1")
		if conv.MessageCount > 5 {
			t.Fatalf("cap exceeded after message %d: %d", i, conv.MessageCount)
		}
	}

	got, _ := st.QueryRecent(ctx, "c1", 100)
	if len(got) != 5 || got[0].SourceMessageID != "8" {
		t.Fatalf("unexpected survivors: %+v", got)
	}

	// idempotent
	if n, _ := s.Sweep(ctx, "c1"); n != 0 {
		t.Fatalf("second sweep removed %d", n)
	}
}
