package dto

import (
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/queue"
)

type ListImportsRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=in_progress completed failed"`
	Limit  int32  `form:"limit" binding:"omitempty,min=1,max=500"`
}

type ListFailuresRequest struct {
	Limit int32 `form:"limit" binding:"omitempty,min=1,max=500"`
}

type ListRunEventsRequest struct {
	Count int64 `form:"count" binding:"omitempty,min=1,max=100"`
}

type ImportResponse struct {
	ID             int64      `json:"id,string"`
	GroupKey       string     `json:"group_key"`
	ImportType     string     `json:"import_type"`
	Status         string     `json:"status"`
	WatermarkSince time.Time  `json:"watermark_since"`
	LastCursor     *string    `json:"last_cursor"`
	TotalProcessed int        `json:"total_processed"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
}

func ToImportResponse(p model.ImportProgress) ImportResponse {
	return ImportResponse{
		ID:             p.ID,
		GroupKey:       p.GroupKey,
		ImportType:     string(p.ImportType),
		Status:         string(p.Status),
		WatermarkSince: p.WatermarkSince,
		LastCursor:     p.LastCursor,
		TotalProcessed: p.TotalProcessed,
		StartedAt:      p.StartedAt,
		LastActivityAt: p.LastActivityAt,
		CompletedAt:    p.CompletedAt,
		ErrorMessage:   p.ErrorMessage,
	}
}

type ImportsResponse struct {
	Imports []ImportResponse `json:"imports"`
}

func ToImportsResponse(rows []model.ImportProgress) ImportsResponse {
	out := ImportsResponse{Imports: make([]ImportResponse, 0, len(rows))}
	for _, row := range rows {
		out.Imports = append(out.Imports, ToImportResponse(row))
	}
	return out
}

// LatestRunResponse carries the watermark the next run will start from.
type LatestRunResponse struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	NextSince   time.Time `json:"next_since"`
}

func ToLatestRunResponse(run *model.CollectorRun) LatestRunResponse {
	return LatestRunResponse{
		ID:          run.ID,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		NextSince:   run.CompletedAt,
	}
}

type FailureResponse struct {
	GroupKey       string    `json:"group_key"`
	ImportType     string    `json:"import_type"`
	NaturalKey     string    `json:"natural_key"`
	WatermarkSince time.Time `json:"watermark_since"`
	ErrorMessage   string    `json:"error_message"`
	Attempts       int       `json:"attempts"`
	FirstFailedAt  time.Time `json:"first_failed_at"`
	LastFailedAt   time.Time `json:"last_failed_at"`
}

type FailuresResponse struct {
	Failures []FailureResponse `json:"failures"`
}

func ToFailuresResponse(rows []model.ImportFailure) FailuresResponse {
	out := FailuresResponse{Failures: make([]FailureResponse, 0, len(rows))}
	for _, f := range rows {
		out.Failures = append(out.Failures, FailureResponse{
			GroupKey:       f.GroupKey,
			ImportType:     string(f.ImportType),
			NaturalKey:     f.NaturalKey,
			WatermarkSince: f.WatermarkSince,
			ErrorMessage:   f.ErrorMessage,
			Attempts:       f.Attempts,
			FirstFailedAt:  f.FirstFailedAt,
			LastFailedAt:   f.LastFailedAt,
		})
	}
	return out
}

type RunEventResponse struct {
	EntryID           string    `json:"entry_id"`
	RunID             string    `json:"run_id"`
	Since             time.Time `json:"since"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
	Walkers           int       `json:"walkers"`
	FailedWalkers     int       `json:"failed_walkers"`
	Persisted         int       `json:"persisted"`
	WatermarkAdvanced bool      `json:"watermark_advanced"`
	TraceID           string    `json:"trace_id,omitempty"`
}

type RunEventsResponse struct {
	Events []RunEventResponse `json:"events"`
}

func ToRunEventsResponse(events []queue.RunEvent) RunEventsResponse {
	out := RunEventsResponse{Events: make([]RunEventResponse, 0, len(events))}
	for _, ev := range events {
		out.Events = append(out.Events, RunEventResponse{
			EntryID:           ev.ID,
			RunID:             ev.RunID,
			Since:             ev.Since,
			StartedAt:         ev.StartedAt,
			CompletedAt:       ev.CompletedAt,
			Walkers:           ev.Walkers,
			FailedWalkers:     ev.FailedWalkers,
			Persisted:         ev.Persisted,
			WatermarkAdvanced: ev.WatermarkAdvanced,
			TraceID:           ev.TraceID,
		})
	}
	return out
}
