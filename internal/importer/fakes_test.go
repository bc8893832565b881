package importer_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

type rawItem struct {
	ID        string
	UpdatedAt time.Time
	MergedAt  *time.Time
	Malformed bool
}

type record struct {
	ID       string
	MergedAt *time.Time
	Summary  string
}

func transform(r rawItem) (record, error) {
	if r.Malformed {
		return record{}, fmt.Errorf("item %s: missing createdAt", r.ID)
	}
	return record{ID: r.ID, MergedAt: r.MergedAt}, nil
}

func recordKey(r record) string { return r.ID }

func mergedSince(r record, since time.Time) bool {
	return r.MergedAt != nil && !r.MergedAt.Before(since)
}

// pagedSource serves fixed pages per group with cursors "p1", "p2", ...
type pagedSource struct {
	mu      sync.Mutex
	pages   map[string][][]rawItem
	failAt  map[string]map[int]error // group -> page index -> error, consumed on use
	cursors map[string][]*string
	// filterSince drops items updated before since, like the remote API does.
	filterSince bool
}

func newPagedSource() *pagedSource {
	return &pagedSource{
		pages:   map[string][][]rawItem{},
		failAt:  map[string]map[int]error{},
		cursors: map[string][]*string{},
	}
}

func (s *pagedSource) failOnce(group string, page int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt[group] == nil {
		s.failAt[group] = map[int]error{}
	}
	s.failAt[group][page] = err
}

func (s *pagedSource) Fetch(_ context.Context, group string, since time.Time, cursor *string) (importer.Page[rawItem], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[group] = append(s.cursors[group], cursor)

	idx := 0
	if cursor != nil {
		n, err := strconv.Atoi(strings.TrimPrefix(*cursor, "p"))
		if err != nil {
			return importer.Page[rawItem]{}, importer.DataShape("fetch", err)
		}
		idx = n
	}
	if err, ok := s.failAt[group][idx]; ok {
		delete(s.failAt[group], idx)
		return importer.Page[rawItem]{}, err
	}

	pages := s.pages[group]
	if idx >= len(pages) {
		return importer.Page[rawItem]{}, nil
	}
	items := pages[idx]
	if s.filterSince {
		var kept []rawItem
		for _, it := range items {
			if !it.UpdatedAt.Before(since) {
				kept = append(kept, it)
			}
		}
		items = kept
	}

	next := fmt.Sprintf("p%d", idx+1)
	return importer.Page[rawItem]{
		Items:      items,
		NextCursor: &next,
		HasMore:    idx+1 < len(pages),
	}, nil
}

func (s *pagedSource) cursorsFor(group string) []*string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*string(nil), s.cursors[group]...)
}

type memSink struct {
	mu      sync.Mutex
	rows    map[string]record
	upserts int
	failKey map[string]bool
}

func newMemSink() *memSink {
	return &memSink{rows: map[string]record{}, failKey: map[string]bool{}}
}

func (s *memSink) Upsert(_ context.Context, r record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKey[r.ID] {
		return errors.New("deadlock detected")
	}
	s.upserts++
	s.rows[r.ID] = r
	return nil
}

func (s *memSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type summaryEnricher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *summaryEnricher) Name() string { return "summary" }

func (e *summaryEnricher) Enrich(_ context.Context, r record) (record, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return r, e.err
	}
	r.Summary = "summary of " + r.ID
	return r, nil
}

type memProgress struct {
	mu             sync.Mutex
	rows           map[int64]*model.ImportProgress
	nextID         int64
	failCheckpoint error
	failOpen       error
}

func newMemProgress() *memProgress {
	return &memProgress{rows: map[int64]*model.ImportProgress{}}
}

func (m *memProgress) Open(_ context.Context, group string, t model.ImportType, since time.Time) (*model.ImportProgress, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOpen != nil {
		return nil, false, m.failOpen
	}
	for _, p := range m.rows {
		if p.GroupKey == group && p.ImportType == t &&
			(p.Status == model.ImportStatusInProgress || p.Status == model.ImportStatusFailed) {
			p.Status = model.ImportStatusInProgress
			p.ErrorMessage = nil
			cp := *p
			return &cp, true, nil
		}
	}
	m.nextID++
	p := &model.ImportProgress{
		ID:             m.nextID,
		GroupKey:       group,
		ImportType:     t,
		WatermarkSince: since,
		Status:         model.ImportStatusInProgress,
		StartedAt:      time.Now(),
	}
	m.rows[p.ID] = p
	cp := *p
	return &cp, false, nil
}

func (m *memProgress) Checkpoint(_ context.Context, id int64, cursor *string, processed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCheckpoint != nil {
		return m.failCheckpoint
	}
	p := m.rows[id]
	if p.Status != model.ImportStatusInProgress {
		return store.ErrLineageClosed
	}
	if cursor != nil {
		c := *cursor
		p.LastCursor = &c
	}
	p.TotalProcessed += processed
	return nil
}

func (m *memProgress) Complete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].Status = model.ImportStatusCompleted
	return nil
}

func (m *memProgress) Fail(_ context.Context, id int64, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].Status = model.ImportStatusFailed
	m.rows[id].ErrorMessage = &msg
	return nil
}

func (m *memProgress) get(group string, t model.ImportType) *model.ImportProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.ImportProgress
	for _, p := range m.rows {
		if p.GroupKey == group && p.ImportType == t && (latest == nil || p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	return &cp
}

type memRuns struct {
	mu        sync.Mutex
	runs      []model.CollectorRun
	appendErr error
}

func (m *memRuns) Latest(context.Context) (*model.CollectorRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil, store.ErrNotFound
	}
	r := m.runs[len(m.runs)-1]
	return &r, nil
}

func (m *memRuns) Append(_ context.Context, startedAt, completedAt time.Time) (*model.CollectorRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	r := model.CollectorRun{ID: int64(len(m.runs) + 1), StartedAt: startedAt, CompletedAt: completedAt}
	m.runs = append(m.runs, r)
	return &r, nil
}

func (m *memRuns) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

type memFailures struct {
	mu        sync.Mutex
	open      map[string]model.ImportFailure
	recordErr error
}

func newMemFailures() *memFailures {
	return &memFailures{open: map[string]model.ImportFailure{}}
}

func (m *memFailures) Record(_ context.Context, f model.ImportFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	f.LastFailedAt = time.Now()
	m.open[f.GroupKey+"/"+string(f.ImportType)+"/"+f.NaturalKey] = f
	return nil
}

func (m *memFailures) Resolve(_ context.Context, group string, t model.ImportType, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.open, group+"/"+string(t)+"/"+k)
	}
	return nil
}

func (m *memFailures) OldestOpenSince(_ context.Context, retainedAfter time.Time) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *time.Time
	for _, f := range m.open {
		if f.LastFailedAt.Before(retainedAfter) {
			continue
		}
		if oldest == nil || f.WatermarkSince.Before(*oldest) {
			w := f.WatermarkSince
			oldest = &w
		}
	}
	return oldest, nil
}

func (m *memFailures) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, f := range m.open {
		keys = append(keys, f.NaturalKey)
	}
	return keys
}

// panicRunner panics on every run.
type panicRunner struct{}

func (panicRunner) ImportType() model.ImportType { return model.ImportTypeProjects }

func (panicRunner) Run(context.Context, string, time.Time) importer.WalkerReport {
	panic("boom")
}

type recordingPublisher struct {
	mu      sync.Mutex
	reports []*importer.RunReport
}

func (p *recordingPublisher) PublishRun(_ context.Context, r *importer.RunReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
	return nil
}

func items(prefix string, n int, updatedAt time.Time) []rawItem {
	out := make([]rawItem, 0, n)
	for i := 0; i < n; i++ {
		merged := updatedAt
		out = append(out, rawItem{ID: fmt.Sprintf("%s-%d", prefix, i), UpdatedAt: updatedAt, MergedAt: &merged})
	}
	return out
}
