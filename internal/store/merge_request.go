package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type mergeRequestStore struct {
	queries *sqlc.Queries
}

func newMergeRequestStore(queries *sqlc.Queries) MergeRequestStore {
	return &mergeRequestStore{queries: queries}
}

func (s *mergeRequestStore) Upsert(ctx context.Context, mr model.MergeRequest) error {
	approvedBy, err := jsonb(mr.ApprovedBy)
	if err != nil {
		return err
	}
	labels, err := jsonb(mr.Labels)
	if err != nil {
		return err
	}
	var diffStats []byte
	if mr.DiffStatsSummary != nil {
		if diffStats, err = json.Marshal(mr.DiffStatsSummary); err != nil {
			return fmt.Errorf("marshaling diff stats: %w", err)
		}
	}

	row := sqlc.MergeRequest{
		MrID:             mr.ID,
		MrIid:            mr.IID,
		MrTitle:          mr.Title,
		MrDescription:    mr.Description,
		MrWebUrl:         mr.WebURL,
		ProjectID:        mr.ProjectID,
		ProjectName:      mr.ProjectName,
		ProjectPath:      mr.ProjectPath,
		CreatedAt:        timestamptz(mr.CreatedAt),
		UpdatedAt:        timestamptz(mr.UpdatedAt),
		MergedAt:         nullTimestamptz(mr.MergedAt),
		CreatedBy:        mr.CreatedBy,
		MergedBy:         mr.MergedBy,
		Approved:         mr.Approved,
		ApprovedBy:       approvedBy,
		DiffStatsSummary: diffStats,
		Labels:           labels,
	}
	if mr.AI != nil {
		row.MrAiTitle = nonEmpty(mr.AI.Title)
		row.MrAiSummary = nonEmpty(mr.AI.Summary)
		row.MrAiModel = nonEmpty(mr.AI.Model)
		row.MrAiCategory = nonEmpty(mr.AI.Category)
	}

	return s.queries.UpsertMergeRequest(ctx, row)
}

func (s *mergeRequestStore) Get(ctx context.Context, id string) (*model.MergeRequest, error) {
	row, err := s.queries.GetMergeRequest(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMergeRequestModel(row)
}

func toMergeRequestModel(row sqlc.MergeRequest) (*model.MergeRequest, error) {
	approvedBy, err := fromJSONB[string](row.ApprovedBy)
	if err != nil {
		return nil, err
	}
	labels, err := fromJSONB[string](row.Labels)
	if err != nil {
		return nil, err
	}
	var diffStats *model.DiffStatsSummary
	if len(row.DiffStatsSummary) > 0 {
		diffStats = &model.DiffStatsSummary{}
		if err := json.Unmarshal(row.DiffStatsSummary, diffStats); err != nil {
			return nil, fmt.Errorf("unmarshaling diff stats: %w", err)
		}
	}

	mr := &model.MergeRequest{
		ID:               row.MrID,
		IID:              row.MrIid,
		Title:            row.MrTitle,
		Description:      row.MrDescription,
		WebURL:           row.MrWebUrl,
		ProjectID:        row.ProjectID,
		ProjectName:      row.ProjectName,
		ProjectPath:      row.ProjectPath,
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
		MergedAt:         timePtr(row.MergedAt),
		CreatedBy:        row.CreatedBy,
		MergedBy:         row.MergedBy,
		Approved:         row.Approved,
		ApprovedBy:       approvedBy,
		DiffStatsSummary: diffStats,
		Labels:           labels,
	}
	if row.MrAiTitle != nil || row.MrAiSummary != nil || row.MrAiModel != nil || row.MrAiCategory != nil {
		mr.AI = &model.MergeRequestAI{
			Title:    deref(row.MrAiTitle),
			Summary:  deref(row.MrAiSummary),
			Model:    deref(row.MrAiModel),
			Category: deref(row.MrAiCategory),
		}
	}
	return mr, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
