package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"chat-archive/internal/ingest"
	"chat-archive/internal/retention"
	"chat-archive/internal/storage"
)

func (a *app) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <channel>",
		Short: "Write a channel's history as JSONL",
		Long: `Write every stored message of a channel, oldest first, one JSON object
per line.

Examples:
  chatctl export -100123 -o backup/team.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" {
				n, err := storage.ExportJSONL(cmd.Context(), st, args[0], cmd.OutOrStdout())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d message(s).\n", n)
				return nil
			}
			n, err := storage.ExportJSONLFile(cmd.Context(), st, args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d message(s) to %s.\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Record messages from a JSONL export",
		Long: `Record every message of a JSONL export through the same validation and
retention cap as live messages. Messages already stored are skipped, so
importing the same file twice is harmless.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			policy := a.cfg.Retention
			svc := ingest.NewService(st, retention.NewSweeper(st, policy.MaxMessagesPerChannel, a.log), policy, a.log)
			stats, err := svc.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, duplicates %d, skipped %d.\n", stats.Inserted, stats.Duplicates, stats.Skipped)
			return nil
		},
	}
}
