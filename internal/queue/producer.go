package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
)

// defaultMaxLen caps the stream; consumers only care about recent runs.
const defaultMaxLen = 1000

// Producer publishes run events to a Redis stream.
type Producer interface {
	PublishRun(ctx context.Context, report *importer.RunReport) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) PublishRun(ctx context.Context, report *importer.RunReport) error {
	ev := EventFromReport(report)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: eventValues(ev),
	}).Result()
	if err != nil {
		return fmt.Errorf("publishing run event: %w", err)
	}

	p.logger.InfoContext(ctx, "published run event",
		"stream", p.stream,
		"entry_id", id,
		"run_id", ev.RunID,
		"watermark_advanced", ev.WatermarkAdvanced)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
