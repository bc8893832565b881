package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

const (
	defaultLinkedIssuePageSize = 50
	defaultLinkedIssueLookback = 7 * 24 * time.Hour
)

// LinkedIssue is an external issue key referenced by a merge request. Issue is nil when
// the tracker does not know the key.
type LinkedIssue struct {
	Key   string
	Issue *model.ExternalIssue
}

// LinkedIssueSource pages the external issue keys of a group that have no external issue
// row yet and resolves each page through the tracker. The cursor is the last key of the
// page; keys are walked in ascending order.
type LinkedIssueSource struct {
	links    store.ClosedIssueStore
	tracker  IssueResolver
	pageSize int
	lookback time.Duration
}

func NewLinkedIssueSource(links store.ClosedIssueStore, tracker IssueResolver, pageSize int, lookback time.Duration) *LinkedIssueSource {
	if pageSize <= 0 {
		pageSize = defaultLinkedIssuePageSize
	}
	if lookback <= 0 {
		lookback = defaultLinkedIssueLookback
	}
	return &LinkedIssueSource{links: links, tracker: tracker, pageSize: pageSize, lookback: lookback}
}

func (s *LinkedIssueSource) Fetch(ctx context.Context, groupKey string, since time.Time, cursor *string) (importer.Page[LinkedIssue], error) {
	// One extra key tells whether another page follows.
	keys, err := s.links.ListUnresolvedExternal(ctx, groupKey, since.Add(-s.lookback), cursor, int32(s.pageSize+1))
	if err != nil {
		return importer.Page[LinkedIssue]{}, importer.Persistence("listing unresolved linked issues", err)
	}

	hasMore := len(keys) > s.pageSize
	if hasMore {
		keys = keys[:s.pageSize]
	}

	items := make([]LinkedIssue, 0, len(keys))
	for _, key := range keys {
		issue, err := s.tracker.ExternalIssue(ctx, key)
		switch {
		case err == nil:
			items = append(items, LinkedIssue{Key: key, Issue: &issue})
		case importer.IsKind(err, importer.KindNotFound):
			slog.InfoContext(ctx, "linked issue unknown to tracker", "key", key)
			items = append(items, LinkedIssue{Key: key})
		default:
			return importer.Page[LinkedIssue]{}, err
		}
	}

	page := importer.Page[LinkedIssue]{Items: items, HasMore: hasMore}
	if len(keys) > 0 {
		last := keys[len(keys)-1]
		page.NextCursor = &last
	}
	return page, nil
}

// LinkedIssueToExternal rejects keys the tracker could not resolve.
func LinkedIssueToExternal(l LinkedIssue) (model.ExternalIssue, error) {
	if l.Issue == nil {
		return model.ExternalIssue{}, fmt.Errorf("linked issue %s: %w", l.Key, errUnknownKey)
	}
	return *l.Issue, nil
}

var errUnknownKey = errors.New("unknown to issue tracker")
