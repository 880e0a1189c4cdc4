package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	// IngestListingsTotal counts external listings by source and outcome
	IngestListingsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_listings_total",
			Help:      "Total number of external listings processed, by source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: inserted|skipped|failed
	)

	// IngestPassesTotal counts ingestion passes per source
	IngestPassesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_passes_total",
			Help:      "Total number of ingestion passes, by source",
		},
		[]string{"source"},
	)
)

// IngestRecorder feeds per-source ingestion counts into the registry.
type IngestRecorder struct{}

func (IngestRecorder) ObserveIngest(source string, fetched, inserted, skipped, failed int) {
	IngestPassesTotal.WithLabelValues(source).Inc()
	IngestListingsTotal.WithLabelValues(source, "inserted").Add(float64(inserted))
	IngestListingsTotal.WithLabelValues(source, "skipped").Add(float64(skipped))
	IngestListingsTotal.WithLabelValues(source, "failed").Add(float64(failed))
}
