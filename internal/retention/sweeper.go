// Package retention keeps every channel at or below the configured message
// cap by evicting the oldest messages.
package retention

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chat-archive/internal/metrics"
	"chat-archive/internal/storage"
)

// Evictor is the part of the store the sweeper needs.
type Evictor interface {
	EvictOldest(ctx context.Context, channelID string, keepCount int) (int, error)
	ListConversations(ctx context.Context, limit int) ([]storage.Conversation, error)
}

type Sweeper struct {
	store Evictor
	max   int
	log   zerolog.Logger
}

func NewSweeper(store Evictor, maxPerChannel int, log zerolog.Logger) *Sweeper {
	return &Sweeper{store: store, max: maxPerChannel, log: log.With().Str("component", "retention").Logger()}
}

// Max returns the per-channel cap.
func (s *Sweeper) Max() int { return s.max }

// AfterRecord evicts only when the write that produced res pushed the channel
// over the cap.
func (s *Sweeper) AfterRecord(ctx context.Context, channelID string, res storage.RecordResult) (int, error) {
	if !res.Inserted || res.MessageCount <= s.max {
		return 0, nil
	}
	return s.Sweep(ctx, channelID)
}

// Sweep trims channelID down to the cap. Running it twice is the same as
// running it once.
func (s *Sweeper) Sweep(ctx context.Context, channelID string) (int, error) {
	removed, err := s.store.EvictOldest(ctx, channelID, s.max)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("evict").Inc()
		return 0, fmt.Errorf("evict %s: %w", channelID, err)
	}
	if removed > 0 {
		metrics.MessagesEvicted.Add(float64(removed))
		s.log.Info().Str("channel_id", channelID).Int("removed", removed).Int("kept", s.max).Msg("evicted oldest messages")
	}
	return removed, nil
}

// SweepAll trims every channel whose rollup is above the cap. A failure on
// one channel does not stop the others.
func (s *Sweeper) SweepAll(ctx context.Context) (int, error) {
	convs, err := s.store.ListConversations(ctx, 0)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range convs {
		if c.MessageCount <= s.max {
			continue
		}
		n, err := s.Sweep(ctx, c.ChannelID)
		if err != nil {
			s.log.Error().Err(err).Str("channel_id", c.ChannelID).Msg("sweep failed")
			continue
		}
		total += n
	}
	return total, nil
}
