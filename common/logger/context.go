package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with a context that carries them.
// A walker sets GroupKey, ImportType and ImportID once and every store, source and
// enrichment log line below it inherits them.
type LogFields struct {
	RunID      *string // collector run correlation id
	GroupKey   *string // GitLab group full path
	ImportType *string // projects, issues, merge_requests, linked_issues
	ImportID   *int64  // import_progress lineage id
	Component  string  // e.g. "collector.importer.walker"
}

// WithLogFields merges fields into ctx, newer non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, incoming LogFields) LogFields {
	result := existing

	if incoming.RunID != nil {
		result.RunID = incoming.RunID
	}
	if incoming.GroupKey != nil {
		result.GroupKey = incoming.GroupKey
	}
	if incoming.ImportType != nil {
		result.ImportType = incoming.ImportType
	}
	if incoming.ImportID != nil {
		result.ImportID = incoming.ImportID
	}
	if incoming.Component != "" {
		result.Component = incoming.Component
	}

	return result
}

// Ptr is a helper for inline LogFields: logger.LogFields{GroupKey: logger.Ptr(g)}.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate cuts s to maxLen bytes, appending "..." when it was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
