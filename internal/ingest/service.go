// Package ingest records inbound chat events and applies retention after
// each new message.
package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chat-archive/internal/config"
	"chat-archive/internal/metrics"
	"chat-archive/internal/retention"
	"chat-archive/internal/storage"
)

type Recorder interface {
	Record(ctx context.Context, msg storage.Message, channelDisplayName string) (storage.RecordResult, error)
	CountConversations(ctx context.Context) (int64, error)
}

type Service struct {
	store   Recorder
	sweeper *retention.Sweeper
	policy  config.Retention
	log     zerolog.Logger
}

func NewService(store Recorder, sweeper *retention.Sweeper, policy config.Retention, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		sweeper: sweeper,
		policy:  policy,
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// Handle validates and records ev, then evicts if the channel went over its
// cap. A failed eviction is logged and does not undo the record.
func (s *Service) Handle(ctx context.Context, ev Event) (storage.RecordResult, error) {
	if err := ev.Validate(); err != nil {
		metrics.MalformedEvents.Inc()
		s.log.Warn().Err(err).Str("channel_id", ev.ChannelID).Msg("dropping event")
		return storage.RecordResult{}, err
	}

	res, err := s.store.Record(ctx, ev.Message(), ev.ChannelDisplayName)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("record").Inc()
		s.log.Error().Err(err).
			Str("channel_id", ev.ChannelID).
			Str("source_message_id", ev.SourceMessageID).
			Msg("failed to record message")
		return storage.RecordResult{}, fmt.Errorf("record message: %w", err)
	}
	if !res.Inserted {
		metrics.MessagesRecorded.WithLabelValues("duplicate").Inc()
		s.log.Debug().Str("channel_id", ev.ChannelID).Str("source_message_id", ev.SourceMessageID).Msg("duplicate event ignored")
		return res, nil
	}
	metrics.MessagesRecorded.WithLabelValues("inserted").Inc()

	if s.sweeper != nil {
		if _, err := s.sweeper.AfterRecord(ctx, ev.ChannelID, res); err != nil {
			s.log.Error().Err(err).Str("channel_id", ev.ChannelID).Msg("retention sweep failed")
		}
	}

	if res.NewConversation {
		s.checkActiveLimit(ctx, ev.ChannelID)
	}
	return res, nil
}

// checkActiveLimit only warns; conversations are never dropped for being
// over the advisory limit.
func (s *Service) checkActiveLimit(ctx context.Context, channelID string) {
	n, err := s.store.CountConversations(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to count conversations")
		return
	}
	if n > int64(s.policy.MaxActiveConversations) {
		s.log.Warn().
			Str("channel_id", channelID).
			Int64("conversations", n).
			Int("limit", s.policy.MaxActiveConversations).
			Msg("active conversation limit exceeded")
	}
}
