package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"chat-archive/internal/storage"
)

// SelectionStats summarizes one selection of channel messages.
type SelectionStats struct {
	Label            string                 `json:"label"`
	TotalMessages    int                    `json:"total_messages"`
	UniqueAuthors    int                    `json:"unique_authors"`
	TotalAttachments int                    `json:"total_attachments"`
	First            time.Time              `json:"first"`
	Last             time.Time              `json:"last"`
	AuthorStats      map[string]AuthorStats `json:"author_stats"`
}

type AuthorStats struct {
	AuthorID    string `json:"author_id"`
	DisplayName string `json:"display_name"`
	Messages    int    `json:"messages"`
	Attachments int    `json:"attachments"`
}

// Analyze counts msgs. label names the selection in the rendered report.
func Analyze(msgs []storage.Message, label string) *SelectionStats {
	stats := &SelectionStats{
		Label:       label,
		AuthorStats: make(map[string]AuthorStats),
	}
	for _, m := range msgs {
		stats.TotalMessages++
		stats.TotalAttachments += len(m.Attachments)
		if stats.First.IsZero() || m.Timestamp.Before(stats.First) {
			stats.First = m.Timestamp
		}
		if m.Timestamp.After(stats.Last) {
			stats.Last = m.Timestamp
		}

		a, ok := stats.AuthorStats[m.AuthorID]
		if !ok {
			a = AuthorStats{AuthorID: m.AuthorID}
		}
		if m.AuthorDisplayName != "" {
			a.DisplayName = m.AuthorDisplayName
		}
		a.Messages++
		a.Attachments += len(m.Attachments)
		stats.AuthorStats[m.AuthorID] = a
	}
	stats.UniqueAuthors = len(stats.AuthorStats)
	return stats
}

// TopAuthors returns authors by message count, busiest first.
func (s *SelectionStats) TopAuthors() []AuthorStats {
	out := make([]AuthorStats, 0, len(s.AuthorStats))
	for _, a := range s.AuthorStats {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Messages != out[j].Messages {
			return out[i].Messages > out[j].Messages
		}
		return out[i].AuthorID < out[j].AuthorID
	})
	return out
}

// GenerateReportSummary renders the stats as chat text.
func (s *SelectionStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stats for %s:\n", s.Label)
	fmt.Fprintf(&b, "- Messages: %d\n", s.TotalMessages)
	fmt.Fprintf(&b, "- Unique authors: %d\n", s.UniqueAuthors)
	fmt.Fprintf(&b, "- Attachments: %d\n", s.TotalAttachments)
	if s.TotalMessages > 0 {
		fmt.Fprintf(&b, "- Period: %s to %s UTC\n", s.First.UTC().Format("2006-01-02 15:04"), s.Last.UTC().Format("2006-01-02 15:04"))
	}

	top := s.TopAuthors()
	if len(top) > 0 {
		b.WriteString("\nMost active:\n")
	}
	for _, a := range top {
		name := a.DisplayName
		if name == "" {
			name = a.AuthorID
		}
		fmt.Fprintf(&b, "- %s: %d messages", name, a.Messages)
		if a.Attachments > 0 {
			fmt.Fprintf(&b, ", %d attachments", a.Attachments)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *SelectionStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
