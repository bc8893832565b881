package queue

import (
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
)

// RunEvent announces a finished collector run.
type RunEvent struct {
	ID                string // stream entry id, empty before publishing
	RunID             string
	Since             time.Time
	StartedAt         time.Time
	CompletedAt       time.Time
	Walkers           int
	FailedWalkers     int
	Persisted         int
	WatermarkAdvanced bool
	TraceID           string
}

func EventFromReport(r *importer.RunReport) RunEvent {
	ev := RunEvent{
		RunID:             r.RunID,
		Since:             r.Since,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		Walkers:           len(r.Walkers),
		FailedWalkers:     len(r.Failed()),
		WatermarkAdvanced: r.WatermarkAdvanced,
	}
	for _, w := range r.Walkers {
		ev.Persisted += w.Persisted()
	}
	return ev
}

func eventValues(ev RunEvent) map[string]any {
	values := map[string]any{
		"run_id":             ev.RunID,
		"since":              ev.Since.UTC().Format(time.RFC3339Nano),
		"started_at":         ev.StartedAt.UTC().Format(time.RFC3339Nano),
		"completed_at":       ev.CompletedAt.UTC().Format(time.RFC3339Nano),
		"walkers":            ev.Walkers,
		"failed_walkers":     ev.FailedWalkers,
		"persisted":          ev.Persisted,
		"watermark_advanced": strconv.FormatBool(ev.WatermarkAdvanced),
	}
	if ev.TraceID != "" {
		values["trace_id"] = ev.TraceID
	}
	return values
}

func ParseRunEvent(msg redis.XMessage) (RunEvent, error) {
	runID, err := parseString(msg.Values, "run_id")
	if err != nil {
		return RunEvent{}, err
	}
	since, err := parseTime(msg.Values, "since")
	if err != nil {
		return RunEvent{}, err
	}
	startedAt, err := parseTime(msg.Values, "started_at")
	if err != nil {
		return RunEvent{}, err
	}
	completedAt, err := parseTime(msg.Values, "completed_at")
	if err != nil {
		return RunEvent{}, err
	}
	walkers, err := parseOptionalInt(msg.Values, "walkers")
	if err != nil {
		return RunEvent{}, err
	}
	failed, err := parseOptionalInt(msg.Values, "failed_walkers")
	if err != nil {
		return RunEvent{}, err
	}
	persisted, err := parseOptionalInt(msg.Values, "persisted")
	if err != nil {
		return RunEvent{}, err
	}
	advanced, err := parseOptionalBool(msg.Values, "watermark_advanced")
	if err != nil {
		return RunEvent{}, err
	}
	traceID, _ := parseOptionalString(msg.Values, "trace_id")

	return RunEvent{
		ID:                msg.ID,
		RunID:             runID,
		Since:             since,
		StartedAt:         startedAt,
		CompletedAt:       completedAt,
		Walkers:           walkers,
		FailedWalkers:     failed,
		Persisted:         persisted,
		WatermarkAdvanced: advanced,
		TraceID:           traceID,
	}, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseTime(values map[string]any, key string) (time.Time, error) {
	str, err := parseString(values, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", key, err)
	}
	return t, nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalBool(values map[string]any, key string) (bool, error) {
	raw, ok := values[key]
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(fmt.Sprint(raw))
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}
