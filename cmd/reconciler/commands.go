package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

const version = "0.2.0"

// --- Global Command Variables ---
var (
	feedRef         string
	estimationLimit int

	rootCmd = &cobra.Command{
		Use:           "reconciler",
		Short:         "Reconcile monthly property-roll exports and estimate missing values",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the operator API and, when BATCH_SCHEDULE is set, the batch scheduler",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	runBatchCmd = &cobra.Command{
		Use:   "run-batch",
		Short: "Import one roll export and reconcile it against the master table",
		RunE:  runBatch, // Defined in cmd_batch.go
	}

	estimateCmd = &cobra.Command{
		Use:   "estimate",
		Short: "Estimate values for active properties that have none",
		RunE:  runEstimate, // Defined in cmd_batch.go
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE:  runMigrate, // Defined in cmd_batch.go
	}
)

func init() {
	runBatchCmd.Flags().StringVar(&feedRef, "feed", "", "feed reference: local path, .gz path or gs://bucket/object (defaults to FEED_PATH)")

	estimateCmd.Flags().IntVar(&estimationLimit, "limit", 1000, "maximum number of properties to estimate")

	rootCmd.AddCommand(serveCmd, runBatchCmd, estimateCmd, migrateCmd)
}

// validateLimit checks the estimation limit before any connection is opened.
func validateLimit(limit int) error {
	if limit < 1 || limit > services.MaxEstimationLimit {
		return fmt.Errorf("--limit must be between 1 and %d", services.MaxEstimationLimit)
	}
	return nil
}
