package analytics

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"chat-archive/internal/storage"
)

func TestAnalyze(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	msgs := []storage.Message{
		{AuthorID: "123", AuthorDisplayName: "ivan", Content: "hi", Timestamp: day.Add(2 * time.Hour)},
		{AuthorID: "123", AuthorDisplayName: "ivan", Content: "look", Timestamp: day.Add(4 * time.Hour),
			Attachments: []storage.Attachment{{LocatorURL: "a"}, {LocatorURL: "b"}}},
		{AuthorID: "456", Content: "ok", Timestamp: day.Add(6 * time.Hour)},
	}

	stats := Analyze(msgs, "today")

	if stats.TotalMessages != 3 {
		t.Errorf("Expected 3 messages, got %d", stats.TotalMessages)
	}
	if stats.UniqueAuthors != 2 {
		t.Errorf("Expected 2 unique authors, got %d", stats.UniqueAuthors)
	}
	if stats.TotalAttachments != 2 {
		t.Errorf("Expected 2 attachments, got %d", stats.TotalAttachments)
	}
	if !stats.First.Equal(day.Add(2*time.Hour)) || !stats.Last.Equal(day.Add(6*time.Hour)) {
		t.Errorf("Unexpected period %v - %v", stats.First, stats.Last)
	}

	ivan := stats.AuthorStats["123"]
	if ivan.Messages != 2 || ivan.Attachments != 2 || ivan.DisplayName != "ivan" {
		t.Errorf("Unexpected stats for 123: %+v", ivan)
	}

	top := stats.TopAuthors()
	if len(top) != 2 || top[0].AuthorID != "123" {
		t.Errorf("Unexpected author order: %+v", top)
	}
}

func TestGenerateReportSummary(t *testing.T) {
	stats := Analyze([]storage.Message{
		{AuthorID: "1", AuthorDisplayName: "ann", Timestamp: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{AuthorID: "2", Timestamp: time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC)},
	}, "last 2 messages")

	summary := stats.GenerateReportSummary()
	for _, want := range []string{
		"Stats for last 2 messages:",
		"- Messages: 2",
		"- Unique authors: 2",
		"- Period: 2024-01-01 09:00 to 2024-01-01 09:05 UTC",
		"- ann: 1 messages",
		"- 2: 1 messages",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}
}

func TestToJSON(t *testing.T) {
	stats := Analyze(nil, "today")
	out, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	var back SelectionStats
	if err := json.Unmarshal([]byte(out), &back); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if back.Label != "today" || back.TotalMessages != 0 {
		t.Errorf("Unexpected decoded stats: %+v", back)
	}
}
