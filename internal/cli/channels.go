package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show database size and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			info, err := st.Info(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database:      %s\n", info.Path)
			fmt.Fprintf(out, "Size:          %.2f MB\n", float64(info.SizeBytes)/(1024*1024))
			fmt.Fprintf(out, "Messages:      %d\n", info.TotalMessages)
			fmt.Fprintf(out, "Channels:      %d\n", info.Conversations)
			fmt.Fprintf(out, "Attachments:   %d\n", info.TotalAttachments)
			if info.OldestMessageTime != nil {
				fmt.Fprintf(out, "Oldest:        %s\n", info.OldestMessageTime.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "Channel cap:   %d messages\n", a.cfg.Retention.MaxMessagesPerChannel)
			return nil
		},
	}
}

func (a *app) channelsCmd() *cobra.Command {
	var (
		since time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List known channels, most recently active first",
		Long: `List known channels with their message counts.

Examples:
  chatctl channels
  chatctl channels --since 24h
  chatctl channels -n 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			convs, err := st.ListConversations(ctx, limit)
			if err != nil {
				return err
			}
			cutoff := time.Time{}
			if since > 0 {
				cutoff = a.now().Add(-since)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tNAME\tMESSAGES\tLAST ACTIVITY")
			shown := 0
			for _, c := range convs {
				if c.LastActivityAt.Before(cutoff) {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ChannelID, c.DisplayName, c.MessageCount, c.LastActivityAt.Format(time.RFC3339))
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No channels found.")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "only channels active within this duration")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max channels (0 = all)")
	return cmd
}
