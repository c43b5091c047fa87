package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chat-archive/internal/llm"
	"chat-archive/internal/storage"
)

var authored = []storage.Message{
	{SourceMessageID: "101", Content: "pineapple belongs on pizza"},
	{SourceMessageID: "102", Content: " tabs over spaces "},
	{SourceMessageID: "103", Content: "I never lose at chess"},
}

func TestRoast_FillsUsername(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: "dave plays chess like checkers"}}
	a := New(f, fakeSource{}, "", "", zerolog.Nop()).WithPrompts("Roast {username} hard. {username} can take it.", "")

	out, err := a.Roast(context.Background(), "dave", authored)
	if err != nil {
		t.Fatalf("roast: %v", err)
	}
	if out != "dave plays chess like checkers" {
		t.Fatalf("unexpected roast: %q", out)
	}
	if f.got[0].Content != "Roast dave hard. dave can take it." {
		t.Fatalf("username not filled: %q", f.got[0].Content)
	}
	user := f.got[1].Content
	if !strings.HasPrefix(user, "Messages from dave to analyze:") || !strings.Contains(user, "\ndave: tabs over spaces\n") {
		t.Fatalf("messages not embedded: %q", user)
	}
	if !strings.HasSuffix(user, "Please generate a witty roast of dave based on these messages.") {
		t.Fatalf("missing instruction: %q", user)
	}
}

func TestRoast_Unavailable(t *testing.T) {
	if _, err := New(nil, fakeSource{}, "", "", zerolog.Nop()).Roast(context.Background(), "dave", authored); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestPickReply(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: "REPLY_TO: 102\nSpaces won, dave. Let it go."}}
	a := New(f, fakeSource{}, "", "", zerolog.Nop())

	p, err := a.PickReply(context.Background(), "dave", authored)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if p.SourceMessageID != "102" || p.Text != "Spaces won, dave. Let it go." {
		t.Fatalf("unexpected pick: %+v", p)
	}
	if f.got[0].Content != DefaultPick {
		t.Fatalf("default prompt not used: %q", f.got[0].Content)
	}
	if !strings.Contains(f.got[1].Content, "[ID: 103] dave: I never lose at chess") {
		t.Fatalf("ids not offered: %q", f.got[1].Content)
	}
}

func TestPickReply_RejectsUnknownOrMalformed(t *testing.T) {
	cases := map[string]string{
		"not offered": "REPLY_TO: 999\nhello",
		"no marker":   "I like message 101",
		"no text":     "REPLY_TO: 101\n   ",
	}
	for name, answer := range cases {
		a := New(&fakeLLM{resp: llm.Response{Content: answer}}, fakeSource{}, "", "", zerolog.Nop())
		if _, err := a.PickReply(context.Background(), "dave", authored); !errors.Is(err, ErrNoReplyTarget) {
			t.Fatalf("%s: want ErrNoReplyTarget, got %v", name, err)
		}
	}
}

func TestParsePick_Brackets(t *testing.T) {
	p, ok := parsePick("REPLY_TO: [abc-1]\nline one\nline two")
	if !ok || p.SourceMessageID != "abc-1" || p.Text != "line one\nline two" {
		t.Fatalf("unexpected pick: %+v %v", p, ok)
	}
}
