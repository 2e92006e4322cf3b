package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/agrorecords/internal/config"
	"github.com/JonMunkholm/agrorecords/internal/core"
	"github.com/JonMunkholm/agrorecords/internal/database"
	"github.com/JonMunkholm/agrorecords/internal/logging"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	cmd := &cobra.Command{
		Use:           "agrorecords",
		Short:         "Agricultural records API server and tools",
		SilenceUsage: true,
		RunE:          serve.RunE,
	}
	cmd.AddCommand(serve, newMigrateCmd(), newIngestCmd(), newTokenCmd(), newUserCmd())
	return cmd
}

// loadConfig reads configuration and configures the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func connectDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, cfg.Database.URL, database.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return nil, err
	}
	return pool, nil
}

// serviceOptions maps configuration onto the record service.
func serviceOptions(cfg *config.Config) core.Options {
	return core.Options{
		Query: core.QueryOptions{
			DefaultPageSize: cfg.Query.DefaultPageSize,
			MaxPageSize:     cfg.Query.MaxPageSize,
			StrictSort:      cfg.Query.StrictSort,
		},
		MaxReportedErrors:    cfg.Query.MaxReportedErrors,
		MaxConcurrentIngests: cfg.Upload.MaxConcurrent,
		IngestWait:           cfg.Upload.MaxWaitTime,
	}
}

// parsePrincipal builds a principal from --user-id and --role flags.
func parsePrincipal(id int64, role string) (core.Principal, error) {
	r, err := core.ParseRole(role)
	if err != nil {
		return core.Principal{}, fmt.Errorf("invalid --role: %w", err)
	}
	if id <= 0 {
		return core.Principal{}, fmt.Errorf("invalid --user-id %d: must be positive", id)
	}
	return core.Principal{ID: id, Role: r}, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
