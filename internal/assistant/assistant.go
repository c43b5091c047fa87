// Package assistant is the boundary to the generative AI collaborator. Any
// failure to produce text is reported as ErrUnavailable.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-archive/internal/history"
	"chat-archive/internal/llm"
	"chat-archive/internal/metrics"
)

var ErrUnavailable = errors.New("ai collaborator unavailable")

const (
	FallbackReply   = "My AI is having trouble right now, but I'm still logging our conversation!"
	DefaultPersona  = "You are a helpful assistant in a group chat. Keep replies short."
	DefaultSummary  = "Summarize the conversation below. List the main topics and who said what. Be concise."
	maxResponseRune = 1900
)

// ContextSource provides the recent channel history for a reply.
type ContextSource interface {
	ForAI(ctx context.Context, channelID string) ([]history.Line, error)
}

type Assistant struct {
	client        llm.Client
	source        ContextSource
	systemPrompt  string
	summaryPrompt string
	roastPrompt   string
	pickPrompt    string
	log           zerolog.Logger
}

// New returns an assistant. A nil client makes every call report
// ErrUnavailable.
func New(client llm.Client, source ContextSource, systemPrompt, summaryPrompt string, log zerolog.Logger) *Assistant {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultPersona
	}
	if strings.TrimSpace(summaryPrompt) == "" {
		summaryPrompt = DefaultSummary
	}
	return &Assistant{
		client:        client,
		source:        source,
		systemPrompt:  systemPrompt,
		summaryPrompt: summaryPrompt,
		roastPrompt:   DefaultRoast,
		pickPrompt:    DefaultPick,
		log:           log.With().Str("component", "assistant").Logger(),
	}
}

func (a *Assistant) Available() bool { return a.client != nil }

// Reply answers a mention in channelID using the channel's recent history.
func (a *Assistant) Reply(ctx context.Context, channelID, mentionedBy string) (string, error) {
	if a.client == nil {
		metrics.AIRequests.WithLabelValues("reply", "unconfigured").Inc()
		return "", ErrUnavailable
	}
	lines, err := a.source.ForAI(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("assemble context: %w", err)
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	b.WriteString(history.Transcript(lines))
	fmt.Fprintf(&b, "\n\nReply to %s.", mentionedBy)

	return a.generate(ctx, "reply", a.systemPrompt, b.String())
}

// Summarize asks the model for a summary of lines.
func (a *Assistant) Summarize(ctx context.Context, lines []history.Line) (string, error) {
	if a.client == nil {
		metrics.AIRequests.WithLabelValues("summary", "unconfigured").Inc()
		return "", ErrUnavailable
	}
	prompt := "Conversation to summarize:\n" + history.Transcript(lines) + "\n\nPlease provide a summary of this conversation."
	return a.generate(ctx, "summary", a.summaryPrompt, prompt)
}

func (a *Assistant) generate(ctx context.Context, kind, system, user string) (string, error) {
	id := uuid.NewString()
	started := time.Now()
	resp, err := a.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	})
	metrics.AILatency.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.AIRequests.WithLabelValues(kind, "error").Inc()
		a.log.Warn().Err(err).Str("request_id", id).Str("kind", kind).Msg("llm call failed")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		metrics.AIRequests.WithLabelValues(kind, "empty").Inc()
		a.log.Warn().Str("request_id", id).Str("kind", kind).Msg("llm returned empty text")
		return "", ErrUnavailable
	}
	metrics.AIRequests.WithLabelValues(kind, "ok").Inc()
	a.log.Info().
		Str("request_id", id).
		Str("kind", kind).
		Str("model", resp.Model).
		Int("total_tokens", resp.TotalTokens).
		Dur("took", time.Since(started)).
		Msg("llm call completed")
	return truncate(text, maxResponseRune), nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
