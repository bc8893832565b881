package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisReader reads back recent run events, newest first.
type RedisReader struct {
	client *redis.Client
	stream string
}

func NewRedisReader(client *redis.Client, stream string) *RedisReader {
	return &RedisReader{client: client, stream: stream}
}

func (r *RedisReader) Recent(ctx context.Context, count int64) ([]RunEvent, error) {
	msgs, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("reading run events (stream=%s): %w", r.stream, err)
	}

	events := make([]RunEvent, 0, len(msgs))
	for _, msg := range msgs {
		ev, err := ParseRunEvent(msg)
		if err != nil {
			slog.WarnContext(ctx, "skipping unparsable run event",
				"error", err,
				"entry_id", msg.ID,
				"stream", r.stream)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
