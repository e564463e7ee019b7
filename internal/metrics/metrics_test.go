package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

func TestRecordBatch(t *testing.T) {
	completedBefore := testutil.ToFloat64(batchesTotal.WithLabelValues("completed"))
	ownerBefore := testutil.ToFloat64(changeEventsTotal.WithLabelValues("owner_change"))
	newBefore := testutil.ToFloat64(recordsTotal.WithLabelValues("new"))

	RecordBatch(&models.BatchResult{
		Status:       models.BatchStatusCompleted,
		Duration:     3 * time.Second,
		TotalRecords: 10,
		NewRecords:   4,
		OwnerChanges: 2,
	})

	assert.Equal(t, completedBefore+1, testutil.ToFloat64(batchesTotal.WithLabelValues("completed")))
	assert.Equal(t, ownerBefore+2, testutil.ToFloat64(changeEventsTotal.WithLabelValues("owner_change")))
	assert.Equal(t, newBefore+4, testutil.ToFloat64(recordsTotal.WithLabelValues("new")))
}

func TestRecordBatch_NilIsIgnored(t *testing.T) {
	assert.NotPanics(t, func() { RecordBatch(nil) })
}

func TestSetPortfoliosAndPredictions(t *testing.T) {
	SetPortfolios(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(portfolios))

	before := testutil.ToFloat64(predictionsTotal.WithLabelValues("accepted"))
	RecordPredictions(5, 2, 5)
	assert.Equal(t, before+5, testutil.ToFloat64(predictionsTotal.WithLabelValues("accepted")))
}

func TestHandler_ServesCollectors(t *testing.T) {
	SetPortfolios(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "atlas_reconciler_owner_portfolios"))
}

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))

	ObserveRequest("GET", "", http.StatusNotFound, 5*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
