package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"chat-archive/internal/analytics"
	"chat-archive/internal/history"
	"chat-archive/internal/storage"
)

func (a *app) recentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent <channel>",
		Short: "Print the newest messages of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return a.printSelection(cmd, args[0], history.ByCount(limit))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of messages")
	return cmd
}

func (a *app) dayCmd() *cobra.Command {
	var offset int
	cmd := &cobra.Command{
		Use:   "day <channel>",
		Short: "Print one UTC calendar day of a channel",
		Long: `Print every message of one UTC calendar day.

Examples:
  chatctl day -100123
  chatctl day -100123 --offset -1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printSelection(cmd, args[0], history.ByCalendarDay(offset))
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "days relative to today (0 today, -1 yesterday)")
	return cmd
}

func (a *app) printSelection(cmd *cobra.Command, channelID string, sel history.Selector) error {
	ctx := cmd.Context()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	asm := history.NewAssembler(st, a.cfg.Retention.MaxContextMessagesForAI)
	msgs, err := asm.ForReport(ctx, channelID, sel)
	if err != nil {
		return err
	}
	printMessages(cmd.OutOrStdout(), msgs)
	return nil
}

func printMessages(w io.Writer, msgs []storage.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages found.")
		return
	}
	for _, l := range history.Lines(msgs) {
		fmt.Fprintln(w, l.String())
	}
}

func (a *app) authorCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "author <channel> <name-or-id>",
		Short: "Print the newest messages one author wrote in a channel",
		Long: `Print the newest messages with text written by one author, matched by
author id or display name (case insensitive, leading "@" allowed).

Examples:
  chatctl author -100123 @alice -n 10`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			asm := history.NewAssembler(st, a.cfg.Retention.MaxContextMessagesForAI)
			author, msgs, err := asm.ForAuthor(ctx, args[0], args[1], limit)
			if err != nil {
				return err
			}
			if author == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No author %q in %s.\n", args[1], args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s), %d messages with text:\n", author.DisplayName, author.AuthorID, author.MessageCount)
			printMessages(cmd.OutOrStdout(), msgs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of messages, at most $MAX_CONTEXT_MESSAGES_FOR_AI")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	var (
		offset int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats <channel>",
		Short: "Activity statistics for one UTC calendar day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			sel := history.ByCalendarDay(offset)
			msgs, err := history.NewAssembler(st, a.cfg.Retention.MaxContextMessagesForAI).ForReport(ctx, args[0], sel)
			if err != nil {
				return err
			}
			stats := analytics.Analyze(msgs, sel.String())
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), stats.GenerateReportSummary())
				return nil
			}
			out, err := stats.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "days relative to today (0 today, -1 yesterday)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}
