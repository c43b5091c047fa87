package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"chat-archive/internal/assistant"
	"chat-archive/internal/auth"
	"chat-archive/internal/command"
	"chat-archive/internal/config"
	"chat-archive/internal/history"
	"chat-archive/internal/ingest"
	"chat-archive/internal/llm"
	"chat-archive/internal/logging"
	"chat-archive/internal/metrics"
	"chat-archive/internal/retention"
	"chat-archive/internal/scheduler"
	"chat-archive/internal/storage"
	"chat-archive/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.Storage.LogLevel, cfg.Storage.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	policy := cfg.Storage.Retention
	sweeper := retention.NewSweeper(store, policy.MaxMessagesPerChannel, logger)
	maintenance := scheduler.NewMaintenance(store, sweeper, policy, logger)
	if err := maintenance.Reconcile(ctx); err != nil {
		logger.Error().Err(err).Msg("startup reconcile failed")
	}

	assembler := history.NewAssembler(store, policy.MaxContextMessagesForAI)
	ai := assistant.New(
		newLLMClient(cfg, logger),
		assembler,
		assistant.ReadPrompt(cfg.SystemPromptPath, logger),
		assistant.ReadPrompt(cfg.SummaryPromptPath, logger),
		logger,
	).WithPrompts(
		assistant.ReadPrompt(cfg.RoastPromptPath, logger),
		assistant.ReadPrompt(cfg.ReplyPromptPath, logger),
	)

	var opsRepo auth.Repository
	if cfg.Storage.OperatorsFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.Storage.OperatorsFilePath)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to init operators repo")
		} else {
			opsRepo = repo
		}
	}
	operators, err := auth.NewWithRepo(opsRepo, cfg.AdminUserID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init operators")
	}

	events := ingest.NewService(store, sweeper, policy, logger)
	commands := command.NewHandler(assembler, store, ai, operators, policy, logger)

	bot, err := telegram.New(cfg.TelegramBotToken, events, commands, ai, telegram.Options{
		ParseMode: cfg.MessageParseMode,
		AITimeout: cfg.AITimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create bot")
	}

	cron := scheduler.New(logger)
	if err := cron.AddJob("reconcile", cfg.ReconcileSchedule, maintenance.Reconcile); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule reconcile")
	}
	if err := cron.AddJob("activity-report", cfg.ActivityReportSchedule, maintenance.ReportJob); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule activity report")
	}
	randomReply := scheduler.NewRandomReply(store, ai, bot, scheduler.RandomReplyOptions{
		Lookback: cfg.RandomReplyLookback,
		Limit:    policy.MaxContextMessagesForAI,
		Exclude:  append([]string{bot.UserID()}, cfg.RandomReplyExclude...),
	}, logger)
	if err := cron.AddJob("random-reply", cfg.RandomReplySchedule, randomReply.Run); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule random reply")
	}
	cron.Start()
	defer cron.Stop()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.NewHandler(store),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().
		Int("max_messages_per_channel", policy.MaxMessagesPerChannel).
		Int("max_context_messages", policy.MaxContextMessagesForAI).
		Bool("ai", ai.Available()).
		Msg("bot started")
	bot.Start(ctx)
	logger.Info().Msg("bot stopped")
}

// newLLMClient returns nil when the provider has no credentials; the bot
// then keeps recording and answers mentions with a fallback text.
func newLLMClient(cfg *config.Config, logger zerolog.Logger) llm.Client {
	factory := llm.NewFactory(cfg)
	if !factory.Configured(cfg.LLMProvider) {
		logger.Warn().Str("provider", string(cfg.LLMProvider)).Msg("llm provider not configured, AI replies disabled")
		return nil
	}
	client, err := factory.CreateClient(cfg.LLMProvider)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create llm client, AI replies disabled")
		return nil
	}
	return client
}
