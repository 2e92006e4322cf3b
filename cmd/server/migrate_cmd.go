package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/agrorecords/internal/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateAction("up", "Apply all pending migrations", func(m *database.Migrator, cmd *cobra.Command) error {
			return m.Up(cmd.Context())
		}),
		migrateAction("down", "Roll back the most recent migration", func(m *database.Migrator, cmd *cobra.Command) error {
			return m.Down(cmd.Context())
		}),
		migrateAction("status", "List migrations and whether they are applied", func(m *database.Migrator, cmd *cobra.Command) error {
			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%05d  %-8s %s\n", s.Version, state, s.Source)
			}
			return nil
		}),
	)
	return cmd
}

func migrateAction(use, short string, run func(*database.Migrator, *cobra.Command) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := connectDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			m, err := database.NewMigrator(pool)
			if err != nil {
				return err
			}
			defer m.Close()
			return run(m, cmd)
		},
	}
}
