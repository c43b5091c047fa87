package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-archive/internal/analytics"
	"chat-archive/internal/assistant"
	"chat-archive/internal/config"
	"chat-archive/internal/history"
	"chat-archive/internal/metrics"
	"chat-archive/internal/storage"
)

type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeUsage       Outcome = "usage"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
	OutcomeDenied      Outcome = "denied"
)

const (
	TextNotFound    = "No messages found in the specified range."
	TextUnavailable = "AI is currently unavailable for summarization."
	TextFailed      = "Something went wrong while reading the history. Please try again later."

	selectorUsage = "[count|today|yesterday]"
	recapMaxChars = 3500

	minRoastMessages = 3
)

// Result is always renderable; callers send Text as is.
type Result struct {
	Outcome Outcome
	Text    string
}

type Invocation struct {
	Name      string
	Args      []string
	ChannelID string
	UserID    string
	UserName  string
	BotUserID string
}

type Reporter interface {
	ForReport(ctx context.Context, channelID string, sel history.Selector) ([]storage.Message, error)
	ForAuthor(ctx context.Context, channelID, who string, limit int) (*storage.Author, []storage.Message, error)
}

type Purger interface {
	DeleteRecent(ctx context.Context, channelID string, count int) (int, error)
	DeleteChannel(ctx context.Context, channelID string) (int, error)
}

// AI is the generative side of the commands.
type AI interface {
	Summarize(ctx context.Context, lines []history.Line) (string, error)
	Roast(ctx context.Context, target string, msgs []storage.Message) (string, error)
}

type Authorizer interface {
	IsOperator(userID string) bool
}

type command struct {
	usage    string
	help     string
	operator bool
	run      func(ctx context.Context, inv Invocation, log zerolog.Logger) Result
}

type Handler struct {
	reports  Reporter
	purger   Purger
	ai       AI
	ops      Authorizer
	policy   config.Retention
	log      zerolog.Logger
	commands map[string]command
}

func NewHandler(reports Reporter, purger Purger, ai AI, ops Authorizer, policy config.Retention, log zerolog.Logger) *Handler {
	h := &Handler{
		reports: reports,
		purger:  purger,
		ai:      ai,
		ops:     ops,
		policy:  policy,
		log:     log.With().Str("component", "command").Logger(),
	}
	h.commands = map[string]command{
		"summarize": {usage: "summarize " + selectorUsage, help: "AI summary of the selected messages", run: h.summarize},
		"recap":     {usage: "recap " + selectorUsage, help: "plain transcript of the selected messages", run: h.recap},
		"stats":     {usage: "stats " + selectorUsage, help: "activity statistics of the selected messages", run: h.stats},
		"roast":     {usage: "roast <name>", help: "playful roast of someone based on what they wrote here", run: h.roast},
		"forget":    {usage: "forget [count|all]", help: "delete the most recent messages of this channel", operator: true, run: h.forget},
		"commands":  {usage: "commands", help: "list available commands", run: h.list},
	}
	return h
}

// Known reports whether name is a command this handler serves.
func (h *Handler) Known(name string) bool {
	_, ok := h.commands[strings.ToLower(name)]
	return ok
}

// Handle runs inv. The second return is false for unknown commands, which
// the caller may treat as ordinary text.
func (h *Handler) Handle(ctx context.Context, inv Invocation) (Result, bool) {
	name := strings.ToLower(inv.Name)
	cmd, ok := h.commands[name]
	if !ok {
		return Result{}, false
	}
	log := h.log.With().
		Str("invocation_id", uuid.NewString()).
		Str("command", name).
		Str("channel_id", inv.ChannelID).
		Str("user_id", inv.UserID).
		Logger()

	var res Result
	if cmd.operator && (h.ops == nil || !h.ops.IsOperator(inv.UserID)) {
		res = Result{Outcome: OutcomeDenied, Text: fmt.Sprintf("Only operators can use %s%s.", Prefix, name)}
	} else {
		res = cmd.run(ctx, inv, log)
	}

	metrics.Commands.WithLabelValues(name, string(res.Outcome)).Inc()
	log.Info().Str("outcome", string(res.Outcome)).Strs("args", inv.Args).Msg("command handled")
	return res, true
}

// selection parses the selector and loads the messages it covers. A non-nil
// *Result means the command is finished.
func (h *Handler) selection(ctx context.Context, name string, inv Invocation, log zerolog.Logger) (history.Selector, []storage.Message, *Result) {
	sel, err := Parse(inv.Args)
	if err != nil {
		return sel, nil, &Result{Outcome: OutcomeUsage, Text: usageText(name, err)}
	}
	msgs, err := h.reports.ForReport(ctx, inv.ChannelID, sel)
	if err != nil {
		log.Error().Err(err).Str("selector", sel.String()).Msg("failed to load messages")
		return sel, nil, &Result{Outcome: OutcomeFailed, Text: TextFailed}
	}
	if len(msgs) == 0 {
		return sel, nil, &Result{Outcome: OutcomeNotFound, Text: TextNotFound}
	}
	return sel, msgs, nil
}

func (h *Handler) summarize(ctx context.Context, inv Invocation, log zerolog.Logger) Result {
	_, msgs, done := h.selection(ctx, "summarize", inv, log)
	if done != nil {
		return *done
	}
	if h.ai == nil {
		return Result{Outcome: OutcomeUnavailable, Text: TextUnavailable}
	}
	summary, err := h.ai.Summarize(ctx, history.Lines(msgs))
	if err != nil {
		if !errors.Is(err, assistant.ErrUnavailable) {
			log.Warn().Err(err).Msg("summary failed")
		}
		return Result{Outcome: OutcomeUnavailable, Text: TextUnavailable}
	}
	return Result{Outcome: OutcomeOK, Text: summary}
}

func (h *Handler) recap(ctx context.Context, inv Invocation, log zerolog.Logger) Result {
	sel, msgs, done := h.selection(ctx, "recap", inv, log)
	if done != nil {
		return *done
	}
	lines := history.Lines(msgs)

	// keep the newest lines that fit
	kept, size := 0, 0
	for i := len(lines) - 1; i >= 0; i-- {
		n := len(lines[i].String()) + 1
		if size+n > recapMaxChars && kept > 0 {
			break
		}
		size += n
		kept++
	}

	header := fmt.Sprintf("Recap of %s (%d messages):", sel, len(lines))
	if kept < len(lines) {
		header = fmt.Sprintf("Recap of %s (showing last %d of %d messages):", sel, kept, len(lines))
	}
	return Result{Outcome: OutcomeOK, Text: header + "\n" + history.Transcript(lines[len(lines)-kept:])}
}

func (h *Handler) stats(ctx context.Context, inv Invocation, log zerolog.Logger) Result {
	sel, msgs, done := h.selection(ctx, "stats", inv, log)
	if done != nil {
		return *done
	}
	return Result{Outcome: OutcomeOK, Text: analytics.Analyze(msgs, sel.String()).GenerateReportSummary()}
}

func (h *Handler) roast(ctx context.Context, inv Invocation, log zerolog.Logger) Result {
	if len(inv.Args) == 0 {
		return Result{Outcome: OutcomeUsage, Text: fmt.Sprintf("Usage: %sroast <name>", Prefix)}
	}
	who := strings.Join(inv.Args, " ")
	author, msgs, err := h.reports.ForAuthor(ctx, inv.ChannelID, who, h.policy.MaxContextMessagesForAI)
	if err != nil {
		log.Error().Err(err).Str("target", who).Msg("failed to load author messages")
		return Result{Outcome: OutcomeFailed, Text: TextFailed}
	}
	if author == nil {
		return Result{Outcome: OutcomeNotFound, Text: fmt.Sprintf("Could not find %s in this channel's history.", who)}
	}
	name := author.DisplayName
	if name == "" {
		name = author.AuthorID
	}
	switch {
	case author.AuthorID == inv.UserID:
		return Result{Outcome: OutcomeUsage, Text: "Nice try, but I'm not helping you roast yourself. That's just sad."}
	case inv.BotUserID != "" && author.AuthorID == inv.BotUserID:
		return Result{Outcome: OutcomeUsage, Text: "I don't roast bots. We need to stick together."}
	case len(msgs) == 0:
		return Result{Outcome: OutcomeNotFound, Text: fmt.Sprintf("%s hasn't said anything interesting enough to roast.", name)}
	case len(msgs) < minRoastMessages:
		return Result{Outcome: OutcomeNotFound, Text: fmt.Sprintf("I need more material to work with. %s has barely said anything.", name)}
	}

	unavailable := Result{Outcome: OutcomeUnavailable, Text: fmt.Sprintf("My AI is unavailable right now, but I'm sure %s deserves a good roasting.", name)}
	if h.ai == nil {
		return unavailable
	}
	text, err := h.ai.Roast(ctx, name, msgs)
	if err != nil {
		if !errors.Is(err, assistant.ErrUnavailable) {
			log.Warn().Err(err).Msg("roast failed")
		}
		return unavailable
	}
	return Result{Outcome: OutcomeOK, Text: text}
}

func (h *Handler) forget(ctx context.Context, inv Invocation, log zerolog.Logger) Result {
	all := false
	count := h.policy.MaxContextMessagesForAI
	if len(inv.Args) > 0 {
		tok := inv.Args[0]
		if strings.EqualFold(tok, "all") {
			all = true
		} else {
			n, err := strconv.Atoi(tok)
			if err != nil || n <= 0 {
				return Result{Outcome: OutcomeUsage, Text: fmt.Sprintf("'%s' isn't a positive number. Usage: %sforget [count|all]", tok, Prefix)}
			}
			count = n
		}
	}

	var (
		removed int
		err     error
	)
	if all {
		removed, err = h.purger.DeleteChannel(ctx, inv.ChannelID)
	} else {
		removed, err = h.purger.DeleteRecent(ctx, inv.ChannelID, count)
	}
	if err != nil {
		metrics.StorageFailures.WithLabelValues("forget").Inc()
		log.Error().Err(err).Msg("failed to delete messages")
		return Result{Outcome: OutcomeFailed, Text: "Failed to delete messages. Please try again later."}
	}
	if removed == 0 {
		return Result{Outcome: OutcomeNotFound, Text: "There was nothing to forget."}
	}
	log.Warn().Int("removed", removed).Bool("all", all).Msg("messages deleted on request")
	if all {
		return Result{Outcome: OutcomeOK, Text: fmt.Sprintf("Forgot all %d messages in this channel.", removed)}
	}
	return Result{Outcome: OutcomeOK, Text: fmt.Sprintf("Forgot the last %d messages.", removed)}
}

func (h *Handler) list(ctx context.Context, inv Invocation, log zerolog.Logger) Result {
	isOp := h.ops != nil && h.ops.IsOperator(inv.UserID)
	names := make([]string, 0, len(h.commands))
	for name, c := range h.commands {
		if c.operator && !isOp {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:")
	for _, name := range names {
		c := h.commands[name]
		fmt.Fprintf(&b, "\n%s%s - %s", Prefix, c.usage, c.help)
	}
	return Result{Outcome: OutcomeOK, Text: b.String()}
}

func usageText(name string, err error) string {
	var ia *InvalidArgumentError
	if errors.As(err, &ia) {
		return fmt.Sprintf("%s Usage: %s%s %s", ia.Reason, Prefix, name, selectorUsage)
	}
	return fmt.Sprintf("Usage: %s%s %s", Prefix, name, selectorUsage)
}
