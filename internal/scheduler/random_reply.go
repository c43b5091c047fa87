package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chat-archive/internal/assistant"
	"chat-archive/internal/storage"
)

type AuthorStore interface {
	RandomAuthor(ctx context.Context, since time.Time, minMessages int, exclude []string) (*storage.Author, error)
	QueryByAuthor(ctx context.Context, channelID, authorID string, limit int) ([]storage.Message, error)
}

type ReplyPicker interface {
	PickReply(ctx context.Context, author string, msgs []storage.Message) (assistant.Pick, error)
}

type Poster interface {
	Post(ctx context.Context, channelID, replyToID, text string) error
}

type RandomReplyOptions struct {
	Lookback    time.Duration
	MinMessages int
	Limit       int
	Exclude     []string
}

// RandomReply answers one message of a randomly chosen recent author, as if
// the bot had joined the conversation on its own.
type RandomReply struct {
	store  AuthorStore
	picker ReplyPicker
	poster Poster
	opts   RandomReplyOptions
	log    zerolog.Logger
	now    func() time.Time
}

func NewRandomReply(store AuthorStore, picker ReplyPicker, poster Poster, opts RandomReplyOptions, log zerolog.Logger) *RandomReply {
	if opts.MinMessages <= 0 {
		opts.MinMessages = 5
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 7 * 24 * time.Hour
	}
	return &RandomReply{
		store:  store,
		picker: picker,
		poster: poster,
		opts:   opts,
		log:    log.With().Str("component", "random_reply").Logger(),
		now:    time.Now,
	}
}

// Run picks an author, lets the AI choose which of their messages to answer
// and posts the answer. Finding nobody eligible, or an AI that is down or
// names no offered message, is not an error.
func (r *RandomReply) Run(ctx context.Context) error {
	author, err := r.store.RandomAuthor(ctx, r.now().Add(-r.opts.Lookback), r.opts.MinMessages, r.opts.Exclude)
	if err != nil {
		return fmt.Errorf("pick author: %w", err)
	}
	if author == nil {
		r.log.Info().Msg("no eligible author")
		return nil
	}
	log := r.log.With().Str("channel_id", author.ChannelID).Str("author_id", author.AuthorID).Logger()

	msgs, err := r.store.QueryByAuthor(ctx, author.ChannelID, author.AuthorID, r.opts.Limit)
	if err != nil {
		return fmt.Errorf("load author messages: %w", err)
	}
	if len(msgs) == 0 {
		log.Info().Msg("author has no messages with text")
		return nil
	}
	name := author.DisplayName
	if name == "" {
		name = author.AuthorID
	}

	pick, err := r.picker.PickReply(ctx, name, msgs)
	if errors.Is(err, assistant.ErrUnavailable) || errors.Is(err, assistant.ErrNoReplyTarget) {
		log.Warn().Err(err).Msg("random reply skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("pick reply: %w", err)
	}
	if err := r.poster.Post(ctx, author.ChannelID, pick.SourceMessageID, pick.Text); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	log.Info().Str("reply_to", pick.SourceMessageID).Int("candidates", len(msgs)).Msg("random reply posted")
	return nil
}
