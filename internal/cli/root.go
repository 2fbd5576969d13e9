package cli

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/models"
	"github.com/spf13/cobra"
)

// Store is the slice of the database the admin commands touch. *database.Store implements it.
type Store interface {
	Migrate(ctx context.Context) error
	CreateUser(ctx context.Context, user *models.User, startingBalance int64) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id uuid.UUID, password string) error
	SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error
	Grant(ctx context.Context, userID uuid.UUID, amount int64, note string) (int64, error)
	RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.BalanceTransaction, error)
	Close()
}

// Opener connects to the store once a command actually runs.
type Opener func(ctx context.Context) (Store, error)

type app struct {
	open   Opener
	store  Store
	output string
}

// NewRootCmd creates the root command.
func NewRootCmd(open Opener) *cobra.Command {
	a := &app{open: open}

	rootCmd := &cobra.Command{
		Use:   "dicectl",
		Short: "Operator tool for the dice table service",
		Long: `dicectl manages the dice table database: schema migration, user accounts
and balance grants. Connection settings come from the same environment as the server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			a.store = s
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "Output format: text, json")

	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newUserCmd(a))
	rootCmd.AddCommand(newBalanceCmd(a))

	return rootCmd
}

// Execute runs the root command and closes the store it opened.
func Execute(open Opener) {
	var opened Store
	cmd := NewRootCmd(func(ctx context.Context) (Store, error) {
		s, err := open(ctx)
		opened = s
		return s, err
	})
	err := cmd.ExecuteContext(context.Background())
	if opened != nil {
		opened.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			newOutput(cmd, a.output).Message("schema up to date")
			return nil
		},
	}
}
