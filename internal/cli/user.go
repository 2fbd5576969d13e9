package cli

import (
	"fmt"

	"github.com/jason-s-yu/dicetable/internal/identity"
	"github.com/jason-s-yu/dicetable/internal/models"
	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User account commands",
	}

	cmd.AddCommand(newUserCreateCmd(a))
	cmd.AddCommand(newUserPasswdCmd(a))
	cmd.AddCommand(newUserShowCmd(a))

	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var (
		pass    string
		balance int64
		admin   bool
	)

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Register a user with an opening balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := identity.ValidateDisplayName(args[0]); err != nil {
				return err
			}
			if pass == "" {
				return fmt.Errorf("--pass is required")
			}
			if balance < 0 {
				return fmt.Errorf("--balance must not be negative")
			}

			user := &models.User{Username: args[0], Password: pass, IsAdmin: admin}
			if err := a.store.CreateUser(cmd.Context(), user, balance); err != nil {
				return err
			}
			user.Password = ""
			newOutput(cmd, a.output).Print(user)
			return nil
		},
	}

	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	cmd.Flags().Int64Var(&balance, "balance", 1000, "Opening balance")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin rights")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserPasswdCmd(a *app) *cobra.Command {
	var pass string

	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Reset a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.store.UpdateUserPassword(cmd.Context(), user.ID, pass); err != nil {
				return err
			}
			newOutput(cmd, a.output).Message("password updated for " + user.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&pass, "pass", "", "New password (required)")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserShowCmd(a *app) *cobra.Command {
	var admin string

	cmd := &cobra.Command{
		Use:   "show <username>",
		Short: "Show a user, optionally changing the admin flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch admin {
			case "":
			case "on", "off":
				if err := a.store.SetAdmin(cmd.Context(), user.ID, admin == "on"); err != nil {
					return err
				}
				user.IsAdmin = admin == "on"
			default:
				return fmt.Errorf("--admin must be on or off")
			}
			user.Password = ""
			newOutput(cmd, a.output).Print(user)
			return nil
		},
	}

	cmd.Flags().StringVar(&admin, "admin", "", "Set the admin flag: on, off")

	return cmd
}
