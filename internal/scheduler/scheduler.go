// Package scheduler triggers reconciliation batches on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron"

	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

// Scheduler runs the configured feed through a BatchRunner on every tick.
// A tick that finds a batch already running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  services.BatchRunner
	feedRef string
	log     *logger.Logger
}

// New validates spec and returns a stopped scheduler. spec is a six-field
// cron expression with seconds first, or a descriptor such as "@monthly".
func New(runner services.BatchRunner, feedRef, spec string, log *logger.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if _, err := cron.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid batch schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		feedRef: feedRef,
		log:     log,
	}
	if err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("failed to register batch schedule: %w", err)
	}
	return s, nil
}

// Start begins firing ticks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Batch scheduler started", map[string]interface{}{
		"feed": s.feedRef,
	})
}

// Stop halts future ticks. A batch already running is left to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("Batch scheduler stopped", nil)
}

func (s *Scheduler) tick() {
	result, err := s.runner.RunBatch(context.Background(), s.feedRef)
	switch {
	case errors.Is(err, services.ErrBatchInProgress):
		s.log.Warn("Scheduled batch skipped, previous run still in progress", map[string]interface{}{
			"feed": s.feedRef,
		})
	case err != nil:
		s.log.Error("Scheduled batch failed", err, map[string]interface{}{
			"feed":     s.feedRef,
			"batch_id": result.BatchID,
		})
	default:
		s.log.Info("Scheduled batch completed", map[string]interface{}{
			"batch_id": result.BatchID,
			"total":    result.TotalRecords,
			"new":      result.NewRecords,
			"updated":  result.UpdatedRecords,
		})
	}
}
