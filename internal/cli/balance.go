package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newBalanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Balance ledger commands",
	}

	cmd.AddCommand(newBalanceGrantCmd(a))
	cmd.AddCommand(newBalanceHistoryCmd(a))

	return cmd
}

func newBalanceGrantCmd(a *app) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "grant <username> <amount>",
		Short: "Credit a user's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[1])
			}
			user, err := a.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			balance, err := a.store.Grant(cmd.Context(), user.ID, amount, note)
			if err != nil {
				return err
			}
			user.Balance = balance
			user.Password = ""
			newOutput(cmd, a.output).Print(user)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "operator grant", "Reference stored with the ledger row")

	return cmd
}

func newBalanceHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <username>",
		Short: "List a user's most recent ledger rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			user, err := a.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			txns, err := a.store.RecentTransactions(cmd.Context(), user.ID, limit)
			if err != nil {
				return err
			}
			newOutput(cmd, a.output).Print(txns)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of rows")

	return cmd
}
