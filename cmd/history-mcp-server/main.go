package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chat-archive/internal/config"
	"chat-archive/internal/historymcp"
	"chat-archive/internal/logging"
	"chat-archive/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.NewStorage()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// stdout carries the MCP protocol, logs go to stderr.
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, logging.FormatJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "chat-archive-history-mcp",
		Version: "1.0.0",
	}, nil)
	historymcp.New(store, cfg.Retention.MaxContextMessagesForAI, logger).Register(server)

	logger.Info().Str("db", cfg.DatabasePath).Msg("history MCP server running on stdin/stdout")
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("history MCP server failed")
	}
}
