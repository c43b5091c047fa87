package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"chat-archive/internal/metrics"
	"chat-archive/internal/storage"
)

const (
	DefaultRoast = "You are a witty roaster. Generate a clever, playful roast of {username} based on their message history. Keep it fun and not genuinely mean."
	DefaultPick  = "You are a witty member of this chat. Select the most interesting message and reply to it.\nFormat: REPLY_TO: <message id>\n<your response>"
)

// ErrNoReplyTarget means the model's answer did not name one of the offered
// messages.
var ErrNoReplyTarget = errors.New("no reply target in model answer")

var replyToRe = regexp.MustCompile(`(?s)^\s*REPLY_TO:\s*\[?([^\s\]]+)\]?\s*\n(.*)$`)

// Pick is the message the model chose to answer and its answer.
type Pick struct {
	SourceMessageID string
	Text            string
}

// WithPrompts overrides the roast and reply-picking prompts. Empty values
// keep the defaults.
func (a *Assistant) WithPrompts(roast, pick string) *Assistant {
	if strings.TrimSpace(roast) != "" {
		a.roastPrompt = roast
	}
	if strings.TrimSpace(pick) != "" {
		a.pickPrompt = pick
	}
	return a
}

// Roast asks the model for a roast of target based on msgs. The roast
// prompt may refer to the target as {username}.
func (a *Assistant) Roast(ctx context.Context, target string, msgs []storage.Message) (string, error) {
	if a.client == nil {
		metrics.AIRequests.WithLabelValues("roast", "unconfigured").Inc()
		return "", ErrUnavailable
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Messages from %s to analyze:\n", target)
	for _, m := range msgs {
		fmt.Fprintf(&b, "\n%s: %s", target, strings.TrimSpace(m.Content))
	}
	fmt.Fprintf(&b, "\n\nPlease generate a witty roast of %s based on these messages.", target)

	system := strings.ReplaceAll(a.roastPrompt, "{username}", target)
	return a.generate(ctx, "roast", system, b.String())
}

// PickReply shows the model msgs by author and lets it choose one to
// answer.
func (a *Assistant) PickReply(ctx context.Context, author string, msgs []storage.Message) (Pick, error) {
	if a.client == nil {
		metrics.AIRequests.WithLabelValues("pick", "unconfigured").Inc()
		return Pick{}, ErrUnavailable
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Messages from %s:\n", author)
	for _, m := range msgs {
		fmt.Fprintf(&b, "\n[ID: %s] %s: %s", m.SourceMessageID, author, strings.TrimSpace(m.Content))
	}
	out, err := a.generate(ctx, "pick", a.pickPrompt, b.String())
	if err != nil {
		return Pick{}, err
	}
	p, ok := parsePick(out)
	if !ok || !offered(msgs, p.SourceMessageID) {
		a.log.Warn().Str("answer", truncate(out, 200)).Msg("model answer names no offered message")
		return Pick{}, ErrNoReplyTarget
	}
	return p, nil
}

func parsePick(s string) (Pick, bool) {
	m := replyToRe.FindStringSubmatch(s)
	if m == nil {
		return Pick{}, false
	}
	p := Pick{SourceMessageID: m[1], Text: strings.TrimSpace(m[2])}
	return p, p.Text != ""
}

func offered(msgs []storage.Message, id string) bool {
	for _, m := range msgs {
		if m.SourceMessageID == id {
			return true
		}
	}
	return false
}
