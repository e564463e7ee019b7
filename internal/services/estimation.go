package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stwalsh4118/atlas/reconciler/internal/estimator"
	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/metrics"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
)

// MaxEstimationLimit bounds one batch estimation run.
const MaxEstimationLimit = 100000

// EstimationService values properties that have no appraisal.
type EstimationService interface {
	// EstimateValue estimates a single feature vector against the current
	// training set. A query that cannot be estimated returns a nil value with
	// zero confidence, not an error; errors are reserved for store failures.
	EstimateValue(ctx context.Context, features models.FeatureVector) (estimator.Estimate, error)

	// RunBatchEstimation estimates up to limit unvalued properties, keeps the
	// predictions whose confidence exceeds the configured floor, writes them
	// and returns them. Returns ErrInvalidLimit if limit is outside 1..MaxEstimationLimit.
	RunBatchEstimation(ctx context.Context, limit int) ([]models.Prediction, error)
}

// estimationService is the concrete implementation of EstimationService.
type estimationService struct {
	properties    repository.PropertyRepository
	writer        PredictionWriter
	estimator     *estimator.Estimator
	log           *logger.Logger
	minConfidence float64
}

// NewEstimationService creates a new instance of EstimationService.
// Predictions at or below minConfidence are discarded in batch mode.
func NewEstimationService(properties repository.PropertyRepository, writer PredictionWriter, est *estimator.Estimator, log *logger.Logger, minConfidence float64) EstimationService {
	return &estimationService{
		properties:    properties,
		writer:        writer,
		estimator:     est,
		log:           log,
		minConfidence: minConfidence,
	}
}

func (s *estimationService) EstimateValue(ctx context.Context, features models.FeatureVector) (estimator.Estimate, error) {
	ctx, span := tracer.Start(ctx, "estimation.estimate_value")
	defer span.End()

	training, err := s.properties.ListTrainingSamples(ctx)
	if err != nil {
		span.RecordError(err)
		return estimator.Estimate{}, fmt.Errorf("failed to load training set: %w", err)
	}

	est := s.estimator.Estimate(features, training)
	span.SetAttributes(
		attribute.Int("training.size", len(training)),
		attribute.Float64("estimate.confidence", est.Confidence),
	)

	if est.Value == nil {
		s.log.Debug("No estimate produced", map[string]interface{}{
			"training": len(training),
		})
	}
	return est, nil
}

func (s *estimationService) RunBatchEstimation(ctx context.Context, limit int) ([]models.Prediction, error) {
	if limit < 1 || limit > MaxEstimationLimit {
		return nil, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidLimit, MaxEstimationLimit, limit)
	}

	ctx, span := tracer.Start(ctx, "estimation.run_batch")
	defer span.End()

	training, err := s.properties.ListTrainingSamples(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load training set: %w", err)
	}

	targets, err := s.properties.ListUnvalued(ctx, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load unvalued properties: %w", err)
	}

	preds := []models.Prediction{}
	rejected := 0
	for _, p := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		est := s.estimator.Estimate(models.FeatureVectorFromProperty(p), training)
		if est.Value == nil || est.Confidence <= s.minConfidence {
			rejected++
			continue
		}
		preds = append(preds, models.Prediction{
			AccountNumber:   p.AccountNumber,
			EstimatedValue:  *est.Value,
			ConfidenceScore: est.Confidence,
			InvestmentScore: InvestmentScore(*est.Value),
		})
	}

	written, err := s.writer.Write(ctx, preds)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to persist predictions: %w", err)
	}

	metrics.RecordPredictions(len(preds), rejected, written)
	span.SetAttributes(
		attribute.Int("estimation.targets", len(targets)),
		attribute.Int("estimation.accepted", len(preds)),
		attribute.Int("estimation.written", written),
	)

	s.log.Info("Batch estimation finished", map[string]interface{}{
		"training": len(training),
		"targets":  len(targets),
		"accepted": len(preds),
		"rejected": rejected,
		"written":  written,
	})

	return preds, nil
}
