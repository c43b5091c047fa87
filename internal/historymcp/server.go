// Package historymcp exposes stored chat history as read-only MCP tools.
package historymcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"chat-archive/internal/analytics"
	"chat-archive/internal/history"
	"chat-archive/internal/storage"
)

// Store is the read side of the archive the tools need.
type Store interface {
	history.Reader
	ListConversations(ctx context.Context, limit int) ([]storage.Conversation, error)
}

type RecentParams struct {
	ChannelID string `json:"channel_id" mcp:"channel (chat) id"`
	Limit     int    `json:"limit,omitempty" mcp:"number of newest messages, capped by MAX_CONTEXT_MESSAGES_FOR_AI"`
}

type DayParams struct {
	ChannelID string `json:"channel_id" mcp:"channel (chat) id"`
	DayOffset int    `json:"day_offset,omitempty" mcp:"UTC day relative to today: 0 today, -1 yesterday"`
}

type ListChannelsParams struct {
	SinceHours int `json:"since_hours,omitempty" mcp:"only channels active within this many hours (0 = all)"`
	Limit      int `json:"limit,omitempty" mcp:"max channels to return (0 = all)"`
}

type StatsParams struct {
	ChannelID string `json:"channel_id" mcp:"channel (chat) id"`
	DayOffset int    `json:"day_offset,omitempty" mcp:"UTC day relative to today: 0 today, -1 yesterday"`
	Format    string `json:"format,omitempty" mcp:"text (default) or json"`
}

type Server struct {
	store     Store
	assembler *history.Assembler
	log       zerolog.Logger
	now       func() time.Time
}

func New(store Store, maxContext int, log zerolog.Logger) *Server {
	return &Server{
		store:     store,
		assembler: history.NewAssembler(store, maxContext),
		log:       log.With().Str("component", "mcp").Logger(),
		now:       time.Now,
	}
}

// Register adds every history tool to server.
func (s *Server) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "recent_messages",
		Description: "Returns the newest messages of a channel, oldest first",
	}, s.Recent)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "day_messages",
		Description: "Returns every message of one UTC calendar day of a channel",
	}, s.Day)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_channels",
		Description: "Lists known channels, most recently active first",
	}, s.ListChannels)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "channel_stats",
		Description: "Message and author statistics of one UTC calendar day of a channel",
	}, s.Stats)
}

func (s *Server) Recent(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[RecentParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.ChannelID == "" {
		return errorResult("channel_id is required"), nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = s.assembler.MaxContext()
	}
	lines, err := s.assembler.ForAIWithLimit(ctx, args.ChannelID, limit)
	if err != nil {
		s.log.Error().Err(err).Str("channel_id", args.ChannelID).Msg("recent_messages failed")
		return errorResult(fmt.Sprintf("failed to read history: %v", err)), nil
	}
	return transcriptResult(args.ChannelID, history.ByCount(limit), lines), nil
}

func (s *Server) Day(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[DayParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.ChannelID == "" {
		return errorResult("channel_id is required"), nil
	}
	sel := history.ByCalendarDay(args.DayOffset)
	msgs, err := s.dayMessages(ctx, args.ChannelID, args.DayOffset)
	if err != nil {
		s.log.Error().Err(err).Str("channel_id", args.ChannelID).Msg("day_messages failed")
		return errorResult(fmt.Sprintf("failed to read history: %v", err)), nil
	}
	return transcriptResult(args.ChannelID, sel, history.Lines(msgs)), nil
}

func (s *Server) ListChannels(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ListChannelsParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	convs, err := s.store.ListConversations(ctx, args.Limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list_channels failed")
		return errorResult(fmt.Sprintf("failed to list channels: %v", err)), nil
	}
	var cutoff time.Time
	if args.SinceHours > 0 {
		cutoff = s.now().Add(-time.Duration(args.SinceHours) * time.Hour)
	}

	var b strings.Builder
	meta := make([]map[string]interface{}, 0, len(convs))
	for _, c := range convs {
		if c.LastActivityAt.Before(cutoff) {
			continue
		}
		fmt.Fprintf(&b, "%s (%s): %d messages, last activity %s\n",
			c.ChannelID, c.DisplayName, c.MessageCount, c.LastActivityAt.Format(time.RFC3339))
		meta = append(meta, map[string]interface{}{
			"channel_id":       c.ChannelID,
			"display_name":     c.DisplayName,
			"message_count":    c.MessageCount,
			"last_activity_at": c.LastActivityAt,
		})
	}
	if len(meta) == 0 {
		b.WriteString("No channels found.")
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
		Meta: map[string]interface{}{
			"channels": meta,
		},
	}, nil
}

func (s *Server) Stats(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[StatsParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.ChannelID == "" {
		return errorResult("channel_id is required"), nil
	}
	msgs, err := s.dayMessages(ctx, args.ChannelID, args.DayOffset)
	if err != nil {
		s.log.Error().Err(err).Str("channel_id", args.ChannelID).Msg("channel_stats failed")
		return errorResult(fmt.Sprintf("failed to read history: %v", err)), nil
	}
	stats := analytics.Analyze(msgs, history.ByCalendarDay(args.DayOffset).String())
	out := stats.GenerateReportSummary()
	if strings.EqualFold(args.Format, "json") {
		if out, err = stats.ToJSON(); err != nil {
			return errorResult(fmt.Sprintf("failed to encode stats: %v", err)), nil
		}
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: out}},
		Meta: map[string]interface{}{
			"channel_id":     args.ChannelID,
			"total_messages": stats.TotalMessages,
			"unique_authors": stats.UniqueAuthors,
		},
	}, nil
}

func (s *Server) dayMessages(ctx context.Context, channelID string, offset int) ([]storage.Message, error) {
	start, end := history.DayRange(s.now(), offset)
	return s.store.QueryByTimeRange(ctx, channelID, start, end)
}

func transcriptResult(channelID string, sel history.Selector, lines []history.Line) *mcp.CallToolResultFor[any] {
	text := history.Transcript(lines)
	if len(lines) == 0 {
		text = "No messages found."
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		Meta: map[string]interface{}{
			"channel_id": channelID,
			"selection":  sel.String(),
			"count":      len(lines),
		},
	}
}

func errorResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
