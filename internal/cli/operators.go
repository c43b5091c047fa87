package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chat-archive/internal/auth"
)

func (a *app) operatorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operators",
		Short: "Manage who may run destructive chat commands",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.operators()
			if err != nil {
				return err
			}
			ops := svc.List()
			if len(ops) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No operators.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tADDED")
			for _, op := range ops {
				added := ""
				if !op.AddedAt.IsZero() {
					added = op.AddedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", op.ID, op.Name, added)
			}
			return w.Flush()
		},
	}

	var name string
	add := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Grant operator rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.operators()
			if err != nil {
				return err
			}
			if err := svc.Add(auth.Operator{ID: args[0], Name: name, AddedAt: a.now().UTC()}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added operator %s.\n", args[0])
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")

	remove := &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Revoke operator rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.operators()
			if err != nil {
				return err
			}
			if !svc.IsOperator(args[0]) {
				return fmt.Errorf("%s is not an operator", args[0])
			}
			if err := svc.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed operator %s.\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
