package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/atlas/reconciler/internal/errors"
	"github.com/stwalsh4118/atlas/reconciler/internal/estimator"
	"github.com/stwalsh4118/atlas/reconciler/internal/middleware"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

// defaultEstimationLimit is used when a batch estimation request gives no limit.
const defaultEstimationLimit = 1000

// EstimateHandler serves point and batch value estimation.
type EstimateHandler struct {
	service services.EstimationService
}

// NewEstimateHandler creates a new EstimateHandler instance.
func NewEstimateHandler(service services.EstimationService) *EstimateHandler {
	return &EstimateHandler{
		service: service,
	}
}

// BatchEstimateQuery is the query of POST /api/v1/estimates/batch.
type BatchEstimateQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100000"`
}

// EstimateResponse is the result of a point estimate. EstimatedValue is null
// when there was nothing comparable to estimate from.
type EstimateResponse struct {
	EstimatedValue *float64               `json:"estimatedValue"`
	Comparables    []estimator.Comparable `json:"comparables"`
	Confidence     float64                `json:"confidence"`
}

// BatchEstimateResponse lists the predictions that were accepted and written.
type BatchEstimateResponse struct {
	Predictions []models.Prediction `json:"predictions"`
	Count       int                 `json:"count"`
}

// Estimate handles POST /api/v1/estimates.
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var fv models.FeatureVector
	if !bindJSON(c, &fv) {
		return
	}

	est, err := h.service.EstimateValue(c.Request.Context(), fv)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to estimate value", err)
		return
	}

	c.JSON(http.StatusOK, EstimateResponse{
		EstimatedValue: est.Value,
		Confidence:     est.Confidence,
		Comparables:    est.Comparables,
	})
}

// RunBatch handles POST /api/v1/estimates/batch.
func (h *EstimateHandler) RunBatch(c *gin.Context) {
	var q BatchEstimateQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultEstimationLimit
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Batch estimation requested", map[string]interface{}{
			"limit": q.Limit,
		})
	}

	preds, err := h.service.RunBatchEstimation(c.Request.Context(), q.Limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to run batch estimation", err)
		return
	}

	c.JSON(http.StatusOK, BatchEstimateResponse{Predictions: preds, Count: len(preds)})
}
