package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/agrorecords/internal/core"
	"github.com/JonMunkholm/agrorecords/internal/database"
	"github.com/JonMunkholm/agrorecords/internal/database/memory"
)

type ingestOutput struct {
	Command    string            `json:"command"`
	File       string            `json:"file"`
	DryRun     bool              `json:"dry_run"`
	DurationMS int64             `json:"duration_ms"`
	Result     core.IngestResult `json:"result"`
	Message    string            `json:"message,omitempty"`
	Errors     []string          `json:"errors,omitempty"`
}

// newIngestOutput describes a finished batch. A rejected batch carries the
// user-facing message and, for validation failures, the reported rows.
func newIngestOutput(file string, dryRun bool, elapsed time.Duration, res core.IngestResult, err error) ingestOutput {
	out := ingestOutput{
		Command:    "ingest",
		File:       file,
		DryRun:     dryRun,
		DurationMS: elapsed.Milliseconds(),
		Result:     res,
	}
	if err == nil {
		return out
	}

	out.Message = core.FormatUserError(err)
	out.Errors = []string{err.Error()}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		out.Errors = verr.Messages()
	}
	return out
}

func newIngestCmd() *cobra.Command {
	var (
		userID int64
		role   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file.csv>",
		Short: "Load a CSV file as one all-or-nothing batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePrincipal(userID, role)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var store core.Store
			if dryRun {
				store = memory.New()
			} else {
				pool, err := connectDB(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer pool.Close()
				store = database.NewStore(pool)
			}

			service := core.NewService(store, serviceOptions(cfg), nil)
			start := time.Now()
			res, ingestErr := service.Ingest(cmd.Context(), p, f)

			out := newIngestOutput(args[0], dryRun, time.Since(start), res, ingestErr)
			if err := writeJSON(out); err != nil {
				return err
			}
			if ingestErr != nil {
				return fmt.Errorf("batch rejected: %w", ingestErr)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "Owner of the ingested records (required)")
	cmd.Flags().StringVar(&role, "role", string(core.RoleOfficer), "Role of the uploading user")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate against an in-memory store; nothing is written")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
