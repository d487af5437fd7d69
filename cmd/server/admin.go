package main

import (
	"fmt"
	"time"

	"github.com/diewo77/go-erp/auth"
	"github.com/diewo77/go-erp/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run DB migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			a.log.Info("migrations completed successfully")
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default payment mode and exit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			if err := db.Seed(conn); err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			a.log.Info("seeding completed successfully")
			return nil
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		userID uint
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an x-auth-token for API calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == 0 {
				return fmt.Errorf("--user must be greater than zero")
			}
			authn := auth.New(a.cfg.Auth.Secret, false)
			authn.TTL = ttl
			_, err := fmt.Fprintln(cmd.OutOrStdout(), authn.Issue(userID))
			return err
		},
	}
	cmd.Flags().UintVar(&userID, "user", 1, "user id carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	return cmd
}
