package config

import (
	"os"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")

	cfg, err := New()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Retention != DefaultRetention() {
		t.Fatalf("unexpected retention defaults: %+v", cfg.Storage.Retention)
	}
	if cfg.Storage.DatabasePath != "data/conversations.db" {
		t.Fatalf("unexpected db path: %q", cfg.Storage.DatabasePath)
	}
	if cfg.AITimeout != 60*time.Second {
		t.Fatalf("unexpected ai timeout: %v", cfg.AITimeout)
	}
	if cfg.LLMProvider != ProviderOpenAI {
		t.Fatalf("unexpected provider: %q", cfg.LLMProvider)
	}
}

func TestNew_RequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	os.Unsetenv("TELEGRAM_BOT_TOKEN")
	if _, err := New(); err == nil {
		t.Fatalf("expected error without token")
	}
}

func TestNewStorage_Overrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/x.db")
	t.Setenv("MAX_MESSAGES_PER_CHANNEL", "10")
	t.Setenv("MAX_CONTEXT_MESSAGES_FOR_AI", "5")

	cfg, err := NewStorage()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DatabasePath != "/tmp/x.db" {
		t.Fatalf("db path not overridden: %q", cfg.DatabasePath)
	}
	if cfg.Retention.MaxMessagesPerChannel != 10 || cfg.Retention.MaxContextMessagesForAI != 5 {
		t.Fatalf("retention not overridden: %+v", cfg.Retention)
	}
	if cfg.Retention.MaxActiveConversations != 100 {
		t.Fatalf("advisory cap default lost: %+v", cfg.Retention)
	}
}

func TestRetentionValidate(t *testing.T) {
	r := DefaultRetention()
	r.MaxMessagesPerChannel = 0
	if err := r.Validate(); err == nil {
		t.Fatalf("zero cap must be rejected")
	}
	if err := DefaultRetention().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestNew_RandomReply(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	cfg, err := New()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.RandomReplySchedule != "" || cfg.RandomReplyLookback != 7*24*time.Hour {
		t.Fatalf("unexpected random reply defaults: %q %v", cfg.RandomReplySchedule, cfg.RandomReplyLookback)
	}

	t.Setenv("RANDOM_REPLY_SCHEDULE", "0 13 * * *")
	t.Setenv("RANDOM_REPLY_EXCLUDE", "11,22")
	cfg, err = New()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.RandomReplySchedule != "0 13 * * *" || len(cfg.RandomReplyExclude) != 2 || cfg.RandomReplyExclude[1] != "22" {
		t.Fatalf("overrides lost: %q %v", cfg.RandomReplySchedule, cfg.RandomReplyExclude)
	}
}
