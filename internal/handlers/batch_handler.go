package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/atlas/reconciler/internal/errors"
	"github.com/stwalsh4118/atlas/reconciler/internal/middleware"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

// BatchHandler triggers reconciliation runs and exposes the batch ledger.
type BatchHandler struct {
	runner     services.BatchRunner
	ledger     services.BatchLedger
	properties services.PropertyService
}

// NewBatchHandler creates a new BatchHandler instance.
func NewBatchHandler(runner services.BatchRunner, ledger services.BatchLedger, properties services.PropertyService) *BatchHandler {
	return &BatchHandler{
		runner:     runner,
		ledger:     ledger,
		properties: properties,
	}
}

// RunBatchRequest is the body of POST /api/v1/batches.
type RunBatchRequest struct {
	FeedRef string `json:"feedRef" binding:"required"`
}

// BatchListResponse wraps a page of ledger entries.
type BatchListResponse struct {
	Batches []*models.ImportBatch `json:"batches"`
	Count   int                   `json:"count"`
}

// ChangesResponse wraps the change events of one batch or account.
type ChangesResponse struct {
	Changes []models.ChangeEvent `json:"changes"`
	Count   int                  `json:"count"`
}

// Run handles POST /api/v1/batches.
// The batch runs to completion even if the client disconnects. A run that
// opened a ledger entry always answers 200 with its result, failed or not;
// 409 means another batch holds the pipeline.
func (h *BatchHandler) Run(c *gin.Context) {
	var req RunBatchRequest
	if !bindJSON(c, &req) {
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Batch requested", map[string]interface{}{
			"feed": req.FeedRef,
		})
	}

	result, err := h.runner.RunBatch(context.WithoutCancel(c.Request.Context()), req.FeedRef)
	if errors.Is(err, services.ErrBatchInProgress) {
		apierrors.Conflict(c, "A batch is already running")
		return
	}
	if err != nil && (result == nil || result.BatchID == "") {
		apierrors.InternalServerError(c, "Failed to start batch", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// List handles GET /api/v1/batches.
func (h *BatchHandler) List(c *gin.Context) {
	var q ListQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = services.DefaultListLimit
	}

	batches, err := h.ledger.List(c.Request.Context(), q.Limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to list batches", err)
		return
	}

	c.JSON(http.StatusOK, BatchListResponse{Batches: batches, Count: len(batches)})
}

// Get handles GET /api/v1/batches/:id.
func (h *BatchHandler) Get(c *gin.Context) {
	batch, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, batch)
}

// Changes handles GET /api/v1/batches/:id/changes.
func (h *BatchHandler) Changes(c *gin.Context) {
	batch, ok := h.lookup(c)
	if !ok {
		return
	}

	events, err := h.properties.GetBatchChanges(c.Request.Context(), batch.BatchID)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to query batch changes", err)
		return
	}

	c.JSON(http.StatusOK, ChangesResponse{Changes: events, Count: len(events)})
}

func (h *BatchHandler) lookup(c *gin.Context) (*models.ImportBatch, bool) {
	batch, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrBatchNotFound) {
			apierrors.NotFound(c, "Batch not found")
			return nil, false
		}
		apierrors.InternalServerError(c, "Failed to query batch", err)
		return nil, false
	}
	return batch, true
}
