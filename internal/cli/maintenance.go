package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"chat-archive/internal/retention"
)

func (a *app) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recount every channel from its stored messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			n, err := st.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d channel(s).\n", n)
			return nil
		},
	}
}

func (a *app) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [channel]",
		Short: "Evict messages above the per-channel cap",
		Long: `Apply the retention cap ($MAX_MESSAGES_PER_CHANNEL). Without a channel
every channel above the cap is trimmed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			sw := retention.NewSweeper(st, a.cfg.Retention.MaxMessagesPerChannel, a.log)
			var removed int
			if len(args) == 1 {
				removed, err = sw.Sweep(ctx, args[0])
			} else {
				removed, err = sw.SweepAll(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d message(s), cap %d per channel.\n", removed, sw.Max())
			return nil
		},
	}
}
