package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// signalContext cancels on SIGINT or SIGTERM so long imports stop between chunks.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	ref := feedRef
	if ref == "" {
		ref = a.cfg.Feed.Path
	}
	if ref == "" {
		return fmt.Errorf("no feed given: pass --feed or set FEED_PATH")
	}

	result, runErr := a.pipeline.RunBatch(ctx, ref)
	if result != nil {
		if err := printJSON(cmd, result); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("batch failed: %w", runErr)
	}
	return nil
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	if err := validateLimit(estimationLimit); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	preds, err := a.estimation.RunBatchEstimation(ctx, estimationLimit)
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}
	if preds == nil {
		preds = []models.Prediction{}
	}
	return printJSON(cmd, map[string]interface{}{
		"accepted":    len(preds),
		"predictions": preds,
	})
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.db.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	a.log.Info("Schema applied", map[string]interface{}{
		"database": a.cfg.Database.Name,
	})
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
