package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository/memory"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

// MockDatabase is a Pinger whose result is fixed by the test.
type MockDatabase struct {
	pingErr error
}

func (m *MockDatabase) Ping(ctx context.Context) error {
	return m.pingErr
}

// setupTestRouter creates a bare test Gin router.
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(nil, nil, "test")
	router := setupTestRouter()
	router.GET("/health", handler.Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, HealthResponse{Status: "healthy"}, response)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		db             Pinger
		expectedStatus int
		expectedBody   ReadyResponse
	}{
		{
			name:           "returns 200 when database is connected",
			db:             &MockDatabase{},
			expectedStatus: http.StatusOK,
			expectedBody:   ReadyResponse{Status: "ready", Database: "connected"},
		},
		{
			name:           "returns 503 when ping fails",
			db:             &MockDatabase{pingErr: errors.New("connection refused")},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   ReadyResponse{Status: "not_ready", Database: "disconnected"},
		},
		{
			name:           "reports in-memory store without a database",
			db:             nil,
			expectedStatus: http.StatusOK,
			expectedBody:   ReadyResponse{Status: "ready", Database: "in-memory"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.db, nil, "test")
			router := setupTestRouter()
			router.GET("/health/ready", handler.Ready)

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response ReadyResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedBody, response)
		})
	}
}

func TestHealthHandler_Info(t *testing.T) {
	t.Run("without batches", func(t *testing.T) {
		store := memory.New()
		handler := NewHealthHandler(nil, services.NewBatchLedger(store, logger.New("test")), "production")
		handler.startTime = time.Now().Add(-2 * time.Hour)
		router := setupTestRouter()
		router.GET("/api/v1/info", handler.Info)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response InfoResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, APIVersion, response.Version)
		assert.Equal(t, "production", response.Environment)
		assert.Equal(t, "2h 0m 0s", response.Uptime)
		assert.Nil(t, response.LastBatch)
	})

	t.Run("reports most recent batch", func(t *testing.T) {
		store := memory.New()
		ledger := services.NewBatchLedger(store, logger.New("test"))
		batch, err := ledger.Open(context.Background(), "roll.csv")
		require.NoError(t, err)

		handler := NewHealthHandler(nil, ledger, "test")
		router := setupTestRouter()
		router.GET("/api/v1/info", handler.Info)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))

		var response InfoResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.NotNil(t, response.LastBatch)
		assert.Equal(t, batch.BatchID, response.LastBatch.BatchID)
		assert.Equal(t, models.BatchStatusProcessing, response.LastBatch.Status)
	})
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "formats seconds only",
			duration: 45 * time.Second,
			expected: "0h 0m 45s",
		},
		{
			name:     "formats hours, minutes and seconds",
			duration: 2*time.Hour + 15*time.Minute + 45*time.Second,
			expected: "2h 15m 45s",
		},
		{
			name:     "formats days, hours, minutes and seconds",
			duration: 3*24*time.Hour + 5*time.Hour + 30*time.Minute + 15*time.Second,
			expected: "3d 5h 30m 15s",
		},
		{
			name:     "formats zero duration",
			duration: 0,
			expected: "0h 0m 0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatUptime(tt.duration))
		})
	}
}

func TestReadyResponse_JSON(t *testing.T) {
	data, err := json.Marshal(ReadyResponse{Status: "not_ready", Database: "disconnected"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"not_ready","database":"disconnected"}`, string(data))
}
