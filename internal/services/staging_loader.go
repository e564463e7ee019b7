package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/stwalsh4118/atlas/reconciler/internal/feed"
	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
)

// stagingChunkSize is the number of normalized rows written per staging call.
const stagingChunkSize = 1000

// LoadStats counts the outcome of one staging load.
type LoadStats struct {
	// Total is every data row read from the feed, good or bad.
	Total  int
	Staged int
	Errors int
}

// StagingLoader streams a feed into the batch-scoped staging area.
type StagingLoader interface {
	// Load clears any staging rows left for batchID, then normalizes and stages
	// every row of source in fixed-size chunks. Rows that fail to parse or
	// normalize are counted in Errors and skipped. A staging write failure or
	// an unreadable source aborts the load.
	Load(ctx context.Context, batchID string, source feed.RowSource) (LoadStats, error)

	// Clear removes the staging rows for batchID.
	Clear(ctx context.Context, batchID string) error
}

// stagingLoader is the concrete implementation of StagingLoader.
type stagingLoader struct {
	repo repository.StagingRepository
	log  *logger.Logger
}

// NewStagingLoader creates a new instance of StagingLoader.
func NewStagingLoader(repo repository.StagingRepository, log *logger.Logger) StagingLoader {
	return &stagingLoader{
		repo: repo,
		log:  log,
	}
}

func (l *stagingLoader) Load(ctx context.Context, batchID string, source feed.RowSource) (LoadStats, error) {
	var stats LoadStats
	log := l.log.WithBatchID(batchID)

	if err := l.repo.ClearStaging(ctx, batchID); err != nil {
		return stats, fmt.Errorf("failed to reset staging: %w", err)
	}

	chunk := make([]*models.Property, 0, stagingChunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := l.repo.InsertStaged(ctx, batchID, chunk); err != nil {
			return fmt.Errorf("failed to write staging chunk: %w", err)
		}
		stats.Staged += len(chunk)
		chunk = chunk[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr *feed.RowError
			if errors.As(err, &rowErr) {
				stats.Total++
				stats.Errors++
				log.Warn("Skipping malformed feed row", map[string]interface{}{
					"line":  rowErr.Line,
					"error": rowErr.Err.Error(),
				})
				continue
			}
			return stats, fmt.Errorf("failed to read feed: %w", err)
		}

		stats.Total++
		p, err := feed.Normalize(row)
		if err != nil {
			stats.Errors++
			log.Debug("Skipping feed row", map[string]interface{}{
				"row":   stats.Total,
				"error": err.Error(),
			})
			continue
		}

		chunk = append(chunk, p)
		if len(chunk) == stagingChunkSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	log.Info("Feed staged", map[string]interface{}{
		"total":  stats.Total,
		"staged": stats.Staged,
		"errors": stats.Errors,
	})

	return stats, nil
}

func (l *stagingLoader) Clear(ctx context.Context, batchID string) error {
	if err := l.repo.ClearStaging(ctx, batchID); err != nil {
		return fmt.Errorf("failed to clear staging: %w", err)
	}
	return nil
}
