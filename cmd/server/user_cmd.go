package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/agrorecords/internal/core"
	"github.com/JonMunkholm/agrorecords/internal/database"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var role string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := core.ParseRole(role)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := connectDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			u, err := database.NewStore(pool).CreateUser(cmd.Context(), args[0], r)
			if err != nil {
				return err
			}
			return writeJSON(u)
		},
	}
	create.Flags().StringVar(&role, "role", string(core.RoleFarmer), "farmer or officer")
	cmd.AddCommand(create)
	return cmd
}
