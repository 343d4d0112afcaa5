package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	DirectoryRequestsTotal    metric.Int64Counter
	ClusteringDurationSeconds metric.Float64Histogram
	EnrichmentShopsTotal      metric.Int64Counter
	EnrichmentErrorsTotal     metric.Int64Counter
	DbQueryErrorsTotal        metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments from the global meter provider.
// Safe to call more than once.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("bookshop-directory")
		var err error
		m := &AppMetrics{}

		m.DirectoryRequestsTotal, err = meter.Int64Counter(
			"directory_requests_total",
			metric.WithDescription("Total number of directory marker requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create directory_requests_total: %v", err)
		}

		m.ClusteringDurationSeconds, err = meter.Float64Histogram(
			"clustering_duration_seconds",
			metric.WithDescription("Time spent building a cluster index"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create clustering_duration_seconds: %v", err)
		}

		m.EnrichmentShopsTotal, err = meter.Int64Counter(
			"enrichment_shops_total",
			metric.WithDescription("Bookshops processed by the enrichment pipeline"),
			metric.WithUnit("{shop}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create enrichment_shops_total: %v", err)
		}

		m.EnrichmentErrorsTotal, err = meter.Int64Counter(
			"enrichment_errors_total",
			metric.WithDescription("Enrichment lookups that failed after retries"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create enrichment_errors_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Maybe returns the instruments or nil when metrics are not configured,
// so library code and tests can skip recording.
func Maybe() *AppMetrics {
	return appMetrics
}
