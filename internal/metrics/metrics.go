// Package metrics exposes Prometheus collectors for batch reconciliation and
// value estimation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

const (
	namespace = "atlas"
	subsystem = "reconciler"
)

var (
	// batchesTotal counts finished batches.
	// Labels: status (completed, failed)
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "batches_total",
		Help:      "Total reconciliation batches by final status",
	}, []string{"status"})

	// batchDuration measures wall-clock time of a batch run.
	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "batch_duration_seconds",
		Help:      "Reconciliation batch duration in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
	}, []string{"status"})

	// recordsTotal counts feed records by outcome.
	// Labels: outcome (read, error, new, updated, deactivated)
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "records_total",
		Help:      "Total feed records by reconciliation outcome",
	}, []string{"outcome"})

	// changeEventsTotal counts appended history events.
	// Labels: change_type (owner_change, value_change)
	changeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "change_events_total",
		Help:      "Total change events appended to property history",
	}, []string{"change_type"})

	// portfolios is the number of owner portfolios after the last rebuild.
	portfolios = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "owner_portfolios",
		Help:      "Owner portfolios produced by the most recent rebuild",
	})

	// predictionsTotal counts batch estimation outcomes.
	// Labels: outcome (accepted, rejected, written)
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "predictions_total",
		Help:      "Total value predictions by outcome",
	}, []string{"outcome"})

	// httpRequestsTotal counts operator API requests.
	// Labels: method, route (the registered path template), status
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// RecordBatch updates every batch-level collector from a finished run.
func RecordBatch(result *models.BatchResult) {
	if result == nil {
		return
	}
	status := string(result.Status)
	batchesTotal.WithLabelValues(status).Inc()
	batchDuration.WithLabelValues(status).Observe(result.Duration.Seconds())

	recordsTotal.WithLabelValues("read").Add(float64(result.TotalRecords))
	recordsTotal.WithLabelValues("error").Add(float64(result.Errors))
	recordsTotal.WithLabelValues("new").Add(float64(result.NewRecords))
	recordsTotal.WithLabelValues("updated").Add(float64(result.UpdatedRecords))
	recordsTotal.WithLabelValues("deactivated").Add(float64(result.DeactivatedRecords))

	changeEventsTotal.WithLabelValues(string(models.ChangeTypeOwner)).Add(float64(result.OwnerChanges))
	changeEventsTotal.WithLabelValues(string(models.ChangeTypeValue)).Add(float64(result.ValueChanges))
}

// SetPortfolios records the size of the latest portfolio rebuild.
func SetPortfolios(n int) {
	portfolios.Set(float64(n))
}

// RecordPredictions counts one batch estimation run.
func RecordPredictions(accepted, rejected, written int) {
	predictionsTotal.WithLabelValues("accepted").Add(float64(accepted))
	predictionsTotal.WithLabelValues("rejected").Add(float64(rejected))
	predictionsTotal.WithLabelValues("written").Add(float64(written))
}

// ObserveRequest records one served HTTP request. Unmatched routes should be
// passed as an empty route so arbitrary paths do not create new series.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
