package assistant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chat-archive/internal/history"
	"chat-archive/internal/llm"
)

type fakeLLM struct {
	resp llm.Response
	err  error
	got  []llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.got = msgs
	return f.resp, f.err
}

type fakeSource struct{ lines []history.Line }

func (f fakeSource) ForAI(ctx context.Context, channelID string) ([]history.Line, error) {
	return f.lines, nil
}

var lines = []history.Line{
	{TimeLabel: "2024-01-01 10:00", DisplayName: "ann", Content: "hi"},
	{TimeLabel: "2024-01-01 10:01", DisplayName: "ben", Content: "yo [attachment: image/png]"},
}

func TestReply_BuildsPromptFromContext(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: " hello ann "}}
	a := New(f, fakeSource{lines: lines}, "persona", "", zerolog.Nop())

	out, err := a.Reply(context.Background(), "c1", "ann")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if out != "hello ann" {
		t.Fatalf("unexpected reply: %q", out)
	}
	if len(f.got) != 2 || f.got[0].Role != llm.RoleSystem || f.got[0].Content != "persona" {
		t.Fatalf("unexpected system message: %+v", f.got)
	}
	user := f.got[1].Content
	if !strings.Contains(user, "[2024-01-01 10:01] ben: yo [attachment: image/png]") || !strings.Contains(user, "Reply to ann.") {
		t.Fatalf("context not embedded: %q", user)
	}
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()

	if _, err := New(nil, fakeSource{}, "", "", zerolog.Nop()).Reply(ctx, "c1", "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("nil client: want ErrUnavailable, got %v", err)
	}
	failing := New(&fakeLLM{err: errors.New("timeout")}, fakeSource{}, "", "", zerolog.Nop())
	if _, err := failing.Summarize(ctx, lines); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("llm error: want ErrUnavailable, got %v", err)
	}
	empty := New(&fakeLLM{resp: llm.Response{Content: "   "}}, fakeSource{}, "", "", zerolog.Nop())
	if _, err := empty.Summarize(ctx, lines); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty text: want ErrUnavailable, got %v", err)
	}
}

func TestSummarize_UsesSummaryPrompt(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: strings.Repeat("a", 3000)}}
	a := New(f, fakeSource{}, "", "", zerolog.Nop())
	out, err := a.Summarize(context.Background(), lines)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if f.got[0].Content != DefaultSummary {
		t.Fatalf("summary prompt not used: %q", f.got[0].Content)
	}
	if len([]rune(out)) != maxResponseRune || !strings.HasSuffix(out, "...") {
		t.Fatalf("long output not truncated: %d", len(out))
	}
}

func TestReadPrompt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "p.txt")
	if err := os.WriteFile(p, []byte("  be kind \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ReadPrompt(p, zerolog.Nop()); got != "be kind" {
		t.Fatalf("unexpected prompt: %q", got)
	}
	if got := ReadPrompt(filepath.Join(t.TempDir(), "missing"), zerolog.Nop()); got != "" {
		t.Fatalf("missing file should give empty prompt")
	}
}
