package enrichment

import (
	"context"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

// Enricher attaches derived fields to merge requests inside an import walk.
type Enricher struct {
	service *Service
}

func NewEnricher(service *Service) *Enricher {
	return &Enricher{service: service}
}

func (e *Enricher) Name() string {
	return "merge_request_summary"
}

func (e *Enricher) Enrich(ctx context.Context, mr model.MergeRequest) (model.MergeRequest, error) {
	derived, err := e.service.Derive(ctx, mr)
	if err != nil {
		return mr, err
	}
	mr.AI = derived
	return mr, nil
}
