package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"chat-archive/internal/assistant"
	"chat-archive/internal/command"
	"chat-archive/internal/ingest"
	"chat-archive/internal/storage"
)

const maxMessageLen = 4096

type EventSink interface {
	Handle(ctx context.Context, ev ingest.Event) (storage.RecordResult, error)
}

type CommandRunner interface {
	Known(name string) bool
	Handle(ctx context.Context, inv command.Invocation) (command.Result, bool)
}

type Replier interface {
	Reply(ctx context.Context, channelID, mentionedBy string) (string, error)
}

type Options struct {
	ParseMode string
	AITimeout time.Duration
}

// Bot records every message it sees and answers mentions and commands.
// Replies run in their own goroutines so recording never waits on the AI.
type Bot struct {
	api       *tgbotapi.BotAPI
	s         sender
	botID     int64
	botName   string
	events    EventSink
	commands  CommandRunner
	ai        Replier
	parseMode string
	aiTimeout time.Duration
	log       zerolog.Logger
	wg        sync.WaitGroup
}

func New(botToken string, events EventSink, commands CommandRunner, ai Replier, opts Options, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	b := newBot(newFloodSender(api, log), api.Self, events, commands, ai, opts, log)
	b.api = api
	return b, nil
}

func newBot(s sender, self tgbotapi.User, events EventSink, commands CommandRunner, ai Replier, opts Options, log zerolog.Logger) *Bot {
	if opts.AITimeout <= 0 {
		opts.AITimeout = 60 * time.Second
	}
	return &Bot{
		s:         s,
		botID:     self.ID,
		botName:   self.UserName,
		events:    events,
		commands:  commands,
		ai:        ai,
		parseMode: opts.ParseMode,
		aiTimeout: opts.AITimeout,
		log:       log.With().Str("component", "telegram").Logger(),
	}
}

// Start consumes updates until ctx is cancelled, then waits for in-flight
// replies.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Info().Str("bot", b.botName).Msg("receiving updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				b.Wait()
				return
			}
			if msg := update.Message; msg != nil {
				b.handleMessage(ctx, msg)
			}
		}
	}
}

// UserID is the bot's own user id as stored in the archive.
func (b *Bot) UserID() string { return strconv.FormatInt(b.botID, 10) }

// Post sends text to channelID as a reply to the stored message
// replyToID and records what was sent.
func (b *Bot) Post(ctx context.Context, channelID, replyToID, text string) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("channel id %q: %w", channelID, err)
	}
	replyTo, err := strconv.Atoi(replyToID)
	if err != nil {
		return fmt.Errorf("message id %q: %w", replyToID, err)
	}
	return b.send(ctx, chatID, replyTo, text)
}

// Wait blocks until all reply goroutines have finished.
func (b *Bot) Wait() { b.wg.Wait() }

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// record first so the triggering message is part of any reply context
	b.record(ctx, msg)

	if msg.From == nil || msg.From.ID == b.botID || msg.Chat == nil {
		return
	}

	inv, ok := b.invocation(msg)
	if ok {
		b.spawn(ctx, msg, func(ctx context.Context) (string, bool) {
			res, handled := b.commands.Handle(ctx, inv)
			if !handled {
				return "", false
			}
			return res.Text, true
		})
		return
	}
	if b.mentioned(msg) {
		b.spawn(ctx, msg, func(ctx context.Context) (string, bool) {
			return b.reply(ctx, msg), true
		})
	}
}

func (b *Bot) record(ctx context.Context, msg *tgbotapi.Message) {
	if _, err := b.events.Handle(ctx, EventFromMessage(msg)); err != nil {
		b.log.Debug().Err(err).Int("message_id", msg.MessageID).Msg("message not recorded")
	}
}

// invocation recognizes "/name args" and, inside a mention, "!name args".
// Unknown "!" names are left to the AI reply.
func (b *Bot) invocation(msg *tgbotapi.Message) (command.Invocation, bool) {
	inv := command.Invocation{
		ChannelID: strconv.FormatInt(msg.Chat.ID, 10),
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		UserName:  userName(msg.From),
		BotUserID: b.UserID(),
	}
	if msg.IsCommand() {
		if at := strings.SplitN(msg.CommandWithAt(), "@", 2); len(at) == 2 && !strings.EqualFold(at[1], b.botName) {
			return inv, false
		}
		inv.Name = msg.Command()
		inv.Args = strings.Fields(msg.CommandArguments())
		return inv, true
	}
	if !b.mentioned(msg) {
		return inv, false
	}
	name, args, ok := command.ParseInvocation(msg.Text)
	if !ok {
		return inv, false
	}
	if !b.commands.Known(name) {
		return inv, false
	}
	inv.Name, inv.Args = name, args
	return inv, true
}

func (b *Bot) mentioned(msg *tgbotapi.Message) bool {
	if msg.Chat.IsPrivate() {
		return true
	}
	if r := msg.ReplyToMessage; r != nil && r.From != nil && r.From.ID == b.botID {
		return true
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	return b.botName != "" && strings.Contains(strings.ToLower(text), "@"+strings.ToLower(b.botName))
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message) string {
	out, err := b.ai.Reply(ctx, strconv.FormatInt(msg.Chat.ID, 10), userName(msg.From))
	if err != nil {
		if !errors.Is(err, assistant.ErrUnavailable) {
			b.log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("reply failed")
		}
		return assistant.FallbackReply
	}
	return out
}

func (b *Bot) spawn(ctx context.Context, msg *tgbotapi.Message, fn func(ctx context.Context) (string, bool)) {
	chatID, replyTo := msg.Chat.ID, msg.MessageID
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, b.aiTimeout)
		defer cancel()

		text, ok := fn(ctx)
		if !ok || strings.TrimSpace(text) == "" {
			return
		}
		// the recording context must outlive the reply timeout
		_ = b.send(context.WithoutCancel(ctx), chatID, replyTo, text)
	}()
}

// send delivers text in chunks and records every sent message, since
// Telegram does not echo the bot's own messages back as updates.
func (b *Bot) send(ctx context.Context, chatID int64, replyTo int, text string) error {
	for i, part := range splitMessage(text, maxMessageLen) {
		out := tgbotapi.NewMessage(chatID, part)
		if i == 0 {
			out.ReplyToMessageID = replyTo
		}
		out.ParseMode = b.parseMode
		sent, err := b.s.Send(out)
		if err != nil && b.parseMode != "" {
			out.ParseMode = ""
			sent, err = b.s.Send(out)
		}
		if err != nil {
			b.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
			return fmt.Errorf("send to %d: %w", chatID, err)
		}
		if sent.MessageID != 0 {
			b.record(ctx, &sent)
		}
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks.
func splitMessage(text string, limit int) []string {
	r := []rune(text)
	var out []string
	for len(r) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if r[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimRight(string(r[:cut]), "\n"))
		r = r[cut:]
	}
	return append(out, string(r))
}
