// Package metrics defines the Prometheus collectors of the service.
//
// HTTP:
//   - meditempo_http_requests_total{method,route,status}
//   - meditempo_http_request_duration_seconds{method,route}
//   - meditempo_http_requests_in_flight
//   - meditempo_rate_limiter_buckets
//
// Catalog:
//   - meditempo_catalog_records, meditempo_catalog_bytes
//   - meditempo_imports_total{source,outcome}
//   - meditempo_import_records_total{result}
//   - meditempo_dosage_calculations_total{safe}
//
// Collectors are registered with the default registry at init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "meditempo"

// Import sources and outcomes used as label values
const (
	SourceUpload   = "upload"
	SourceDir      = "directory"
	SourceURL      = "url"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current in-flight requests",
		},
	)

	RateLimiterBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limiter_buckets",
			Help:      "Rate limiter buckets held in memory (one per client IP)",
		},
	)

	CatalogRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_records",
			Help:      "Medication records in the catalog",
		},
	)

	CatalogBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_bytes",
			Help:      "Serialized size of the catalog",
		},
	)

	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "CSV imports by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	ImportRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_records_total",
			Help:      "Imported rows by result: added, skipped (duplicate id) or rejected (invalid)",
		},
		[]string{"result"},
	)

	DosageCalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dosage_calculations_total",
			Help:      "Dosage calculations by safety verdict",
		},
		[]string{"safe"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestTotals,
		HTTPRequestDuration,
		HTTPRequestInFlight,
		RateLimiterBuckets,
		CatalogRecords,
		CatalogBytes,
		ImportsTotal,
		ImportRecordsTotal,
		DosageCalculationsTotal,
	)
}

// RecordImport counts one finished import and its row outcomes
func RecordImport(source string, added, skipped, rejected int) {
	ImportsTotal.WithLabelValues(source, OutcomeSuccess).Inc()
	ImportRecordsTotal.WithLabelValues("added").Add(float64(added))
	ImportRecordsTotal.WithLabelValues("skipped").Add(float64(skipped))
	ImportRecordsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// RecordImportFailure counts an import that added nothing
func RecordImportFailure(source string) {
	ImportsTotal.WithLabelValues(source, OutcomeFailure).Inc()
}
