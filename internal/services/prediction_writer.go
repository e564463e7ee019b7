package services

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
)

// predictionChunkSize is the number of predictions written per repository call.
const predictionChunkSize = 500

// Investment score bands, highest first.
var investmentBands = []struct {
	min   float64
	score int
}{
	{1_000_000, 90},
	{500_000, 75},
	{250_000, 60},
	{100_000, 45},
}

const baseInvestmentScore = 30

// InvestmentScore buckets an estimated value into a coarse 30..90 score.
func InvestmentScore(estimatedValue float64) int {
	for _, band := range investmentBands {
		if estimatedValue >= band.min {
			return band.score
		}
	}
	return baseInvestmentScore
}

// PredictionWriter persists accepted estimates onto the authoritative store.
type PredictionWriter interface {
	// Write stores preds in chunks and returns how many rows changed. Rows
	// that already carry an appraised total value are never written.
	Write(ctx context.Context, preds []models.Prediction) (int, error)
}

// predictionWriter is the concrete implementation of PredictionWriter.
type predictionWriter struct {
	repo repository.PropertyRepository
	log  *logger.Logger
}

// NewPredictionWriter creates a new instance of PredictionWriter.
func NewPredictionWriter(repo repository.PropertyRepository, log *logger.Logger) PredictionWriter {
	return &predictionWriter{
		repo: repo,
		log:  log,
	}
}

func (w *predictionWriter) Write(ctx context.Context, preds []models.Prediction) (int, error) {
	written := 0
	for i := 0; i < len(preds); i += predictionChunkSize {
		j := min(i+predictionChunkSize, len(preds))
		n, err := w.repo.UpdatePredictions(ctx, preds[i:j])
		written += n
		if err != nil {
			return written, fmt.Errorf("failed to write predictions %d-%d: %w", i, j, err)
		}
	}

	w.log.Info("Predictions written", map[string]interface{}{
		"submitted": len(preds),
		"written":   written,
	})
	return written, nil
}
