package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/atlas/reconciler/internal/middleware"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.2.0"
	// HealthCheckTimeout is the timeout for database health checks
	HealthCheckTimeout = 2 * time.Second
)

// Pinger is the part of the database the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	db        Pinger
	ledger    services.BatchLedger
	startTime time.Time
	env       string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(db Pinger, ledger services.BatchLedger, env string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		ledger:    ledger,
		startTime: time.Now(),
		env:       env,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	LastBatch   *BatchSummary `json:"lastBatch,omitempty"`
	Version     string        `json:"version"`
	Environment string        `json:"environment"`
	Uptime      string        `json:"uptime"`
}

// BatchSummary is the short form of the most recent ledger entry.
type BatchSummary struct {
	StartedAt time.Time          `json:"startedAt"`
	BatchID   string             `json:"batchId"`
	Status    models.BatchStatus `json:"status"`
}

// Health handles GET /health endpoint.
// Liveness only; no dependency is checked.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready endpoint.
// Returns 200 OK if the database answers a ping, 503 Service Unavailable otherwise.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, ReadyResponse{Status: "ready", Database: "in-memory"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Database health check failed", err, map[string]interface{}{
				"timeout": HealthCheckTimeout.String(),
			})
		}

		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:   "not_ready",
			Database: "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status:   "ready",
		Database: "connected",
	})
}

// Info handles GET /api/v1/info endpoint.
// Returns version, environment, uptime and the most recent batch if any.
func (h *HealthHandler) Info(c *gin.Context) {
	resp := InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      formatUptime(time.Since(h.startTime)),
	}

	if h.ledger != nil {
		batches, err := h.ledger.List(c.Request.Context(), 1)
		if err == nil && len(batches) > 0 {
			resp.LastBatch = &BatchSummary{
				BatchID:   batches[0].BatchID,
				Status:    batches[0].Status,
				StartedAt: batches[0].StartedAt,
			}
		} else if err != nil {
			if log := middleware.GetLogger(c); log != nil {
				log.Warn("Failed to load last batch for info", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
