package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
)

// Ledger errors
var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrBatchClosed   = errors.New("batch is no longer processing")
)

// BatchLedger records the lifecycle of every reconciliation run.
type BatchLedger interface {
	// Open creates a processing batch for sourceRef with a fresh id.
	Open(ctx context.Context, sourceRef string) (*models.ImportBatch, error)

	// Complete closes a processing batch with its final counters.
	// Returns ErrBatchNotFound or ErrBatchClosed when no transition is possible.
	Complete(ctx context.Context, batchID string, totals models.BatchTotals, elapsed time.Duration) error

	// Fail closes a processing batch with the row errors seen so far and the cause.
	// Returns ErrBatchNotFound or ErrBatchClosed when no transition is possible.
	Fail(ctx context.Context, batchID string, errorRecords int, cause error, elapsed time.Duration) error

	// Get returns one batch. Returns ErrBatchNotFound if it does not exist.
	Get(ctx context.Context, batchID string) (*models.ImportBatch, error)

	// List returns up to limit batches, newest first.
	// Returns ErrInvalidLimit if limit is outside 1..MaxListLimit.
	List(ctx context.Context, limit int) ([]*models.ImportBatch, error)
}

// batchLedger is the concrete implementation of BatchLedger.
type batchLedger struct {
	repo repository.BatchRepository
	log  *logger.Logger
	now  func() time.Time
}

// NewBatchLedger creates a new instance of BatchLedger.
func NewBatchLedger(repo repository.BatchRepository, log *logger.Logger) BatchLedger {
	return &batchLedger{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (l *batchLedger) Open(ctx context.Context, sourceRef string) (*models.ImportBatch, error) {
	batch := &models.ImportBatch{
		BatchID:   uuid.NewString(),
		SourceRef: sourceRef,
		Status:    models.BatchStatusProcessing,
		StartedAt: l.now(),
	}

	if err := l.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to open batch: %w", err)
	}

	l.log.WithBatchID(batch.BatchID).Info("Batch opened", map[string]interface{}{
		"source": sourceRef,
	})
	return batch, nil
}

func (l *batchLedger) Complete(ctx context.Context, batchID string, totals models.BatchTotals, elapsed time.Duration) error {
	ok, err := l.repo.CompleteBatch(ctx, batchID, totals, elapsed.Seconds(), l.now())
	if err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}
	if !ok {
		return l.transitionError(ctx, batchID)
	}

	l.log.WithBatchID(batchID).Info("Batch completed", map[string]interface{}{
		"total":    totals.TotalRecords,
		"new":      totals.NewRecords,
		"updated":  totals.UpdatedRecords,
		"errors":   totals.ErrorRecords,
		"duration": elapsed.String(),
	})
	return nil
}

func (l *batchLedger) Fail(ctx context.Context, batchID string, errorRecords int, cause error, elapsed time.Duration) error {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}

	ok, err := l.repo.FailBatch(ctx, batchID, errorRecords, message, elapsed.Seconds(), l.now())
	if err != nil {
		return fmt.Errorf("failed to record batch failure: %w", err)
	}
	if !ok {
		return l.transitionError(ctx, batchID)
	}

	l.log.WithBatchID(batchID).Error("Batch failed", cause, map[string]interface{}{
		"errors":   errorRecords,
		"duration": elapsed.String(),
	})
	return nil
}

// transitionError explains why a guarded update matched no processing row.
func (l *batchLedger) transitionError(ctx context.Context, batchID string) error {
	batch, err := l.repo.FindBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to query batch: %w", err)
	}
	if batch == nil {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return fmt.Errorf("%w: %s is %s", ErrBatchClosed, batchID, batch.Status)
}

func (l *batchLedger) Get(ctx context.Context, batchID string) (*models.ImportBatch, error) {
	batch, err := l.repo.FindBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	return batch, nil
}

func (l *batchLedger) List(ctx context.Context, limit int) ([]*models.ImportBatch, error) {
	if limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidLimit, MaxListLimit, limit)
	}
	batches, err := l.repo.ListBatches(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}
