// Package cli provides the operator command-line interface for the chat
// archive database.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chat-archive/internal/auth"
	"chat-archive/internal/config"
	"chat-archive/internal/logging"
	"chat-archive/internal/storage"
)

// Version is set at build time.
var Version = "0.1.0"

type app struct {
	dbPath        string
	operatorsPath string
	verbose       bool

	cfg   *config.Storage
	store *storage.SQLiteStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewRootCmd builds the chatctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{now: time.Now, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "chatctl",
		Short: "Inspect and maintain the chat archive",
		Long: `chatctl works directly on the archive database used by the bot.

It can list channels, print history, repair conversation counts, apply the
retention cap, move history in and out as JSONL and manage operators.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewStorage()
			if err != nil {
				return err
			}
			if a.dbPath != "" {
				cfg.DatabasePath = a.dbPath
			}
			if a.operatorsPath != "" {
				cfg.OperatorsFilePath = a.operatorsPath
			}
			a.cfg = cfg
			level := "warn"
			if a.verbose {
				level = "debug"
			}
			a.log = logging.NewWithWriter(os.Stderr, level, cfg.LogFormat)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.store != nil {
				if err := a.store.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
				a.store = nil
			}
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path (default $DATABASE_PATH)")
	root.PersistentFlags().StringVar(&a.operatorsPath, "operators-file", "", "operators file (default $OPERATORS_FILE_PATH)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		a.infoCmd(),
		a.channelsCmd(),
		a.recentCmd(),
		a.dayCmd(),
		a.authorCmd(),
		a.statsCmd(),
		a.reconcileCmd(),
		a.sweepCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.operatorsCmd(),
	)
	return root
}

// Execute runs chatctl with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) openStore(ctx context.Context) (*storage.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := storage.NewSQLiteStore(ctx, a.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.store = st
	return st, nil
}

func (a *app) operators() (*auth.Service, error) {
	repo, err := auth.NewFileRepository(a.cfg.OperatorsFilePath)
	if err != nil {
		return nil, fmt.Errorf("open operators file: %w", err)
	}
	return auth.NewWithRepo(repo)
}
