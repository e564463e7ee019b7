package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stwalsh4118/atlas/reconciler/internal/feed"
	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/metrics"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

var tracer = otel.Tracer("github.com/stwalsh4118/atlas/reconciler/internal/services")

// Pipeline errors
var (
	ErrBatchInProgress = errors.New("a batch is already running")
	ErrNoUsableRows    = errors.New("feed produced no stageable rows")
)

// SourceOpener resolves a feed reference into a row stream and the closer
// that releases it.
type SourceOpener func(ctx context.Context, ref string) (feed.RowSource, io.Closer, error)

// FileSourceOpener opens local, gzip and gs:// feeds with the given delimiter.
func FileSourceOpener(delimiter rune) SourceOpener {
	return func(ctx context.Context, ref string) (feed.RowSource, io.Closer, error) {
		rc, err := feed.Open(ctx, ref)
		if err != nil {
			return nil, nil, err
		}
		reader, err := feed.NewReader(rc, delimiter)
		if err != nil {
			_ = rc.Close()
			return nil, nil, err
		}
		return reader, rc, nil
	}
}

// BatchRunner is the entry point schedulers and operators call.
type BatchRunner interface {
	// RunBatch reconciles one feed end to end. The result is never nil; on
	// failure it carries status failed, the counts collected so far and the
	// cause, which is also returned as the error.
	RunBatch(ctx context.Context, feedRef string) (*models.BatchResult, error)
}

// Pipeline runs ledger, staging, reconciliation and aggregation in order.
// It allows one batch at a time.
type Pipeline struct {
	ledger     BatchLedger
	loader     StagingLoader
	reconciler ChangeReconciler
	portfolios PortfolioAggregator
	open       SourceOpener
	log        *logger.Logger
	now        func() time.Time
	mu         sync.Mutex
}

// NewPipeline creates a Pipeline from its collaborators.
func NewPipeline(ledger BatchLedger, loader StagingLoader, reconciler ChangeReconciler, portfolios PortfolioAggregator, open SourceOpener, log *logger.Logger) *Pipeline {
	return &Pipeline{
		ledger:     ledger,
		loader:     loader,
		reconciler: reconciler,
		portfolios: portfolios,
		open:       open,
		log:        log,
		now:        time.Now,
	}
}

func (p *Pipeline) RunBatch(ctx context.Context, feedRef string) (*models.BatchResult, error) {
	if !p.mu.TryLock() {
		return &models.BatchResult{
			Status: models.BatchStatusFailed,
			Error:  ErrBatchInProgress.Error(),
		}, ErrBatchInProgress
	}
	defer p.mu.Unlock()

	start := p.now()
	result := &models.BatchResult{Status: models.BatchStatusProcessing}

	ctx, span := tracer.Start(ctx, "pipeline.run_batch", trace.WithAttributes(
		attribute.String("feed.ref", feedRef),
	))
	defer span.End()

	batch, err := p.ledger.Open(ctx, feedRef)
	if err != nil {
		result.Status = models.BatchStatusFailed
		result.Error = err.Error()
		result.Duration = p.now().Sub(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "open batch")
		metrics.RecordBatch(result)
		return result, fmt.Errorf("open batch: %w", err)
	}

	batchID := batch.BatchID
	result.BatchID = batchID
	span.SetAttributes(attribute.String("batch.id", batchID))
	log := p.log.WithBatchID(batchID)

	// Staging is batch-scoped scratch space and goes away whatever the outcome
	defer func() {
		if err := p.loader.Clear(context.WithoutCancel(ctx), batchID); err != nil {
			log.Warn("Failed to clear staging", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	fail := func(stage string, cause error) (*models.BatchResult, error) {
		result.Status = models.BatchStatusFailed
		result.Error = cause.Error()
		result.Duration = p.now().Sub(start)
		span.RecordError(cause)
		span.SetStatus(codes.Error, stage)

		if err := p.ledger.Fail(context.WithoutCancel(ctx), batchID, result.Errors, cause, result.Duration); err != nil {
			log.Error("Failed to record batch failure", err, nil)
		}
		metrics.RecordBatch(result)
		return result, fmt.Errorf("%s: %w", stage, cause)
	}

	log.Info("Batch started", map[string]interface{}{
		"feed": feedRef,
	})

	var stats LoadStats
	err = traced(ctx, "pipeline.stage", func(ctx context.Context) error {
		source, closer, err := p.open(ctx, feedRef)
		if err != nil {
			return fmt.Errorf("failed to open feed: %w", err)
		}
		defer func() {
			if cerr := closer.Close(); cerr != nil {
				log.Warn("Failed to close feed", map[string]interface{}{"error": cerr.Error()})
			}
		}()

		stats, err = p.loader.Load(ctx, batchID, source)
		return err
	})
	result.TotalRecords = stats.Total
	result.Errors = stats.Errors
	if err != nil {
		return fail("stage feed", err)
	}

	// An empty or fully rejected feed would otherwise deactivate every account
	if stats.Staged == 0 {
		return fail("stage feed", ErrNoUsableRows)
	}

	var rstats ReconcileStats
	err = traced(ctx, "pipeline.reconcile", func(ctx context.Context) error {
		var err error
		rstats, err = p.reconciler.Reconcile(ctx, batchID, batch.StartedAt)
		return err
	})
	if err != nil {
		return fail("reconcile", err)
	}
	result.NewRecords = rstats.New
	result.UpdatedRecords = rstats.Updated
	result.OwnerChanges = rstats.OwnerChanges
	result.ValueChanges = rstats.ValueChanges
	result.DeactivatedRecords = rstats.Deactivated

	err = traced(ctx, "pipeline.aggregate", func(ctx context.Context) error {
		n, err := p.portfolios.Rebuild(ctx)
		if err == nil {
			metrics.SetPortfolios(n)
		}
		return err
	})
	if err != nil {
		return fail("rebuild portfolios", err)
	}

	elapsed := p.now().Sub(start)
	totals := models.BatchTotals{
		TotalRecords:   stats.Total,
		NewRecords:     rstats.New,
		UpdatedRecords: rstats.Updated,
		ErrorRecords:   stats.Errors,
	}
	if err := p.ledger.Complete(ctx, batchID, totals, elapsed); err != nil {
		return fail("complete batch", err)
	}

	result.Status = models.BatchStatusCompleted
	result.Duration = elapsed
	span.SetStatus(codes.Ok, "")
	metrics.RecordBatch(result)

	return result, nil
}

// traced runs fn inside a child span and records its error on the span.
func traced(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
