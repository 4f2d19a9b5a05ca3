// Package metrics registers the service's Prometheus instruments.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "pcm_survey_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	datasetsLoaded prometheus.Counter
	datasetPoints  prometheus.Histogram

	commandRequests *prometheus.CounterVec
	commandWarnings *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	chartRenderTotal   *prometheus.CounterVec
	chartRenderLatency *prometheus.HistogramVec
)

// Init registers the service metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total dataset uploads by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total upload parse errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Upload parse latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		datasetsLoaded = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "datasets_loaded_total",
				Help: "Total datasets loaded into memory",
			},
		)
		datasetPoints = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "dataset_points",
				Help:    "Point count per loaded dataset",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		)

		commandRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_requests_total",
				Help: "Total dataset commands by type and result",
			},
			[]string{"command", "result"},
		)
		commandWarnings = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_warnings_total",
				Help: "Total commands that resolved to a validation warning",
			},
			[]string{"command"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total export builds by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Export build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		chartRenderTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "chart_render_total",
				Help: "Total chart page renders by result",
			},
			[]string{"result"},
		)
		chartRenderLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "chart_render_latency_seconds",
				Help:    "Chart page render latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			datasetsLoaded,
			datasetPoints,
			commandRequests,
			commandWarnings,
			exportTotal,
			exportLatency,
			chartRenderTotal,
			chartRenderLatency,
		)
	})
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// ObserveIngest records one upload parse.
func ObserveIngest(err error, duration time.Duration) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(result(err)).Inc()
	ingestLatency.WithLabelValues(result(err)).Observe(duration.Seconds())
}

// RecordIngestError counts a parse failure by reason.
func RecordIngestError(reason string) {
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// RecordDatasetLoaded counts a loaded dataset and its size.
func RecordDatasetLoaded(points int) {
	if datasetsLoaded != nil {
		datasetsLoaded.Inc()
		datasetPoints.Observe(float64(points))
	}
}

// ObserveCommand records one command execution.
func ObserveCommand(command string, warned bool, err error) {
	if commandRequests == nil {
		return
	}
	commandRequests.WithLabelValues(command, result(err)).Inc()
	if warned {
		commandWarnings.WithLabelValues(command).Inc()
	}
}

// ObserveExport records one export build.
func ObserveExport(format string, err error, duration time.Duration) {
	if exportTotal == nil {
		return
	}
	exportTotal.WithLabelValues(format, result(err)).Inc()
	exportLatency.WithLabelValues(format, result(err)).Observe(duration.Seconds())
}

// ObserveChartRender records one chart page render.
func ObserveChartRender(err error, duration time.Duration) {
	if chartRenderTotal == nil {
		return
	}
	chartRenderTotal.WithLabelValues(result(err)).Inc()
	chartRenderLatency.WithLabelValues(result(err)).Observe(duration.Seconds())
}
