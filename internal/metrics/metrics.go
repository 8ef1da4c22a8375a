// Package metrics provides Prometheus metrics for the compile client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Compile lifecycle
	compilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texforge_compiles_total",
			Help: "Total compile invocations by outcome",
		},
		[]string{"outcome"},
	)

	compileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "texforge_compile_duration_seconds",
			Help:    "Time from compile invocation to the Done state",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texforge_state_transitions_total",
			Help: "Compile state machine transitions by target state",
		},
		[]string{"state"},
	)

	compilesRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "texforge_compiles_rejected_total",
			Help: "Compile invocations rejected because one was already in flight",
		},
	)

	// Remote calls
	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "texforge_remote_request_duration_seconds",
			Help:    "Remote request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texforge_remote_requests_total",
			Help: "Total remote requests",
		},
		[]string{"operation", "status"},
	)

	// Project tree
	treeLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texforge_tree_loads_total",
			Help: "Directory loads triggered during enumeration",
		},
		[]string{"backend", "status"},
	)

	enumeratedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "texforge_enumerated_files",
			Help: "Number of files found by the last enumeration",
		},
	)

	// Settings database
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "texforge_db_query_duration_seconds",
			Help:    "Settings database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// S3 tree source
	s3OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "texforge_s3_operation_duration_seconds",
			Help:    "S3 operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	s3OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texforge_s3_operations_total",
			Help: "Total S3 operations",
		},
		[]string{"operation", "status"},
	)

	// Diagnostics
	diagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texforge_diagnostics_total",
			Help: "Parsed log entries by kind",
		},
		[]string{"kind"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordCompile records a finished compile invocation.
func RecordCompile(outcome string, duration time.Duration) {
	compilesTotal.WithLabelValues(outcome).Inc()
	compileDuration.Observe(duration.Seconds())
}

// RecordStateTransition records entry into a compile state.
func RecordStateTransition(state string) {
	stateTransitionsTotal.WithLabelValues(state).Inc()
}

// RecordCompileRejected records a compile refused by the single-flight guard.
func RecordCompileRejected() {
	compilesRejectedTotal.Inc()
}

// RecordRemoteRequest records a CLSI or file server request.
func RecordRemoteRequest(operation string, duration time.Duration, success bool) {
	remoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	remoteRequestsTotal.WithLabelValues(operation, status(success)).Inc()
}

// RecordTreeLoad records a directory load.
func RecordTreeLoad(backend string, success bool) {
	treeLoadsTotal.WithLabelValues(backend, status(success)).Inc()
}

// SetEnumeratedFiles sets the file count of the last enumeration.
func SetEnumeratedFiles(count int) {
	enumeratedFiles.Set(float64(count))
}

// RecordDiagnostics records parsed log entries.
func RecordDiagnostics(errors, warnings int) {
	diagnosticsTotal.WithLabelValues("error").Add(float64(errors))
	diagnosticsTotal.WithLabelValues("warning").Add(float64(warnings))
}

// RecordDBQuery records a settings database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordS3Operation records an S3 operation.
func RecordS3Operation(operation string, duration time.Duration, success bool) {
	s3OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	s3OperationsTotal.WithLabelValues(operation, status(success)).Inc()
}
