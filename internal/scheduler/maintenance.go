package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chat-archive/internal/config"
	"chat-archive/internal/retention"
	"chat-archive/internal/storage"
)

type MaintenanceStore interface {
	Reconcile(ctx context.Context) (int, error)
	ListActive(ctx context.Context, since time.Time) ([]string, error)
	GetConversation(ctx context.Context, channelID string) (*storage.Conversation, error)
	CountConversations(ctx context.Context) (int64, error)
}

// ActivityReport is what the daily report job observed.
type ActivityReport struct {
	Since          time.Time
	Active         []storage.Conversation
	Tracked        int64
	OverActiveCap  bool
	ActiveCapLimit int
}

type Maintenance struct {
	store   MaintenanceStore
	sweeper *retention.Sweeper
	policy  config.Retention
	log     zerolog.Logger
	now     func() time.Time
}

func NewMaintenance(store MaintenanceStore, sweeper *retention.Sweeper, policy config.Retention, log zerolog.Logger) *Maintenance {
	return &Maintenance{
		store:   store,
		sweeper: sweeper,
		policy:  policy,
		log:     log.With().Str("component", "maintenance").Logger(),
		now:     time.Now,
	}
}

// Reconcile repairs conversation counts and then trims channels that are
// over the cap, for example after the cap was lowered.
func (m *Maintenance) Reconcile(ctx context.Context) error {
	fixed, err := m.store.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if fixed > 0 {
		m.log.Warn().Int("conversations", fixed).Msg("conversation counts repaired")
	}
	if m.sweeper == nil {
		return nil
	}
	removed, err := m.sweeper.SweepAll(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	m.log.Info().Int("repaired", fixed).Int("evicted", removed).Msg("reconcile finished")
	return nil
}

// Report logs the channels active in the last 24 hours.
func (m *Maintenance) Report(ctx context.Context) (ActivityReport, error) {
	since := m.now().Add(-24 * time.Hour)
	ids, err := m.store.ListActive(ctx, since)
	if err != nil {
		return ActivityReport{}, err
	}
	rep := ActivityReport{Since: since, ActiveCapLimit: m.policy.MaxActiveConversations}
	for _, id := range ids {
		c, err := m.store.GetConversation(ctx, id)
		if err != nil {
			return ActivityReport{}, err
		}
		if c != nil {
			rep.Active = append(rep.Active, *c)
		}
	}
	if rep.Tracked, err = m.store.CountConversations(ctx); err != nil {
		return ActivityReport{}, err
	}
	rep.OverActiveCap = rep.Tracked > int64(m.policy.MaxActiveConversations)

	for _, c := range rep.Active {
		m.log.Info().
			Str("channel_id", c.ChannelID).
			Str("name", c.DisplayName).
			Int("messages", c.MessageCount).
			Time("last_activity", c.LastActivityAt).
			Msg("active channel")
	}
	ev := m.log.Info()
	if rep.OverActiveCap {
		ev = m.log.Warn()
	}
	ev.Int("active_24h", len(rep.Active)).
		Int64("tracked", rep.Tracked).
		Int("limit", m.policy.MaxActiveConversations).
		Msg("activity report")
	return rep, nil
}

// ReportJob adapts Report to a scheduler job.
func (m *Maintenance) ReportJob(ctx context.Context) error {
	_, err := m.Report(ctx)
	return err
}
