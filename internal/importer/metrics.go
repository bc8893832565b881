package importer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"

type metrics struct {
	pagesFetched       metric.Int64Counter
	recordsPersisted   metric.Int64Counter
	recordsFailed      metric.Int64Counter
	enrichmentFailures metric.Int64Counter
	walkerDuration     metric.Float64Histogram
}

// newMetrics builds the importer instruments on the global meter provider. Instrument
// creation errors leave a no-op instrument in place, so they are ignored.
func newMetrics() *metrics {
	meter := otel.Meter(meterName)

	pages, _ := meter.Int64Counter("collector.pages_fetched",
		metric.WithDescription("Pages fetched from a source"))
	persisted, _ := meter.Int64Counter("collector.records_persisted",
		metric.WithDescription("Records upserted"))
	failed, _ := meter.Int64Counter("collector.records_failed",
		metric.WithDescription("Records skipped because their upsert failed"))
	enrichment, _ := meter.Int64Counter("collector.enrichment_failures",
		metric.WithDescription("Enricher calls that gave up"))
	duration, _ := meter.Float64Histogram("collector.walker_duration",
		metric.WithDescription("Wall time of one walker run"),
		metric.WithUnit("s"))

	return &metrics{
		pagesFetched:       pages,
		recordsPersisted:   persisted,
		recordsFailed:      failed,
		enrichmentFailures: enrichment,
		walkerDuration:     duration,
	}
}

func walkerAttrs(groupKey string, importType string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("group_key", groupKey),
		attribute.String("import_type", importType),
	)
}

func (m *metrics) recordPage(ctx context.Context, attrs metric.MeasurementOption, pr PageReport) {
	m.pagesFetched.Add(ctx, 1, attrs)
	m.recordsPersisted.Add(ctx, int64(pr.Persisted), attrs)
	m.recordsFailed.Add(ctx, int64(len(pr.PersistFailures)), attrs)
	m.enrichmentFailures.Add(ctx, int64(len(pr.EnrichmentFailures)), attrs)
}

func (m *metrics) recordWalker(ctx context.Context, attrs metric.MeasurementOption, state State, d time.Duration) {
	m.walkerDuration.Record(ctx, d.Seconds(), attrs, metric.WithAttributes(attribute.String("state", string(state))))
}
