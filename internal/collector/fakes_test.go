package collector_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

type fakeGitLab struct {
	mu            sync.Mutex
	projects      []*gitlab.ProjectNode
	issues        []*gitlab.IssueNode
	mergeRequests []*gitlab.MergeRequestNode
	closes        map[string][]gitlab.ClosedIssue
	closesErr     error
	sinces        []time.Time
}

func (f *fakeGitLab) FetchProjects(_ context.Context, _ string, _ time.Time, _ *string) (importer.Page[*gitlab.ProjectNode], error) {
	return importer.Page[*gitlab.ProjectNode]{Items: f.projects}, nil
}

func (f *fakeGitLab) FetchIssues(_ context.Context, _ string, _ time.Time, _ *string) (importer.Page[*gitlab.IssueNode], error) {
	return importer.Page[*gitlab.IssueNode]{Items: f.issues}, nil
}

func (f *fakeGitLab) FetchMergeRequests(_ context.Context, _ string, since time.Time, _ *string) (importer.Page[*gitlab.MergeRequestNode], error) {
	f.mu.Lock()
	f.sinces = append(f.sinces, since)
	f.mu.Unlock()
	return importer.Page[*gitlab.MergeRequestNode]{Items: f.mergeRequests}, nil
}

func (f *fakeGitLab) ClosesIssues(_ context.Context, projectID, mrIID string) ([]gitlab.ClosedIssue, error) {
	if f.closesErr != nil {
		return nil, f.closesErr
	}
	return f.closes[projectID+"!"+mrIID], nil
}

type fakeTracker struct {
	mu     sync.Mutex
	issues map[string]model.ExternalIssue
	errs   map[string]error
	asked  []string
}

func (f *fakeTracker) ExternalIssue(_ context.Context, key string) (model.ExternalIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, key)
	if err, ok := f.errs[key]; ok {
		return model.ExternalIssue{}, err
	}
	issue, ok := f.issues[key]
	if !ok {
		return model.ExternalIssue{}, importer.NotFound("get jira issue", errors.New("404"))
	}
	return issue, nil
}

// memDB stands in for the record stores and the transaction runner.
type memDB struct {
	mu             sync.Mutex
	projects       map[string]model.Project
	issues         map[string]model.Issue
	mergeRequests  map[string]model.MergeRequest
	links          map[string]model.ClosedIssueOnMerge
	linkCreatedAt  map[string]time.Time
	externalIssues map[string]model.ExternalIssue
	failLinkUpsert error
	lastSince      time.Time
}

func newMemDB() *memDB {
	return &memDB{
		projects:       map[string]model.Project{},
		issues:         map[string]model.Issue{},
		mergeRequests:  map[string]model.MergeRequest{},
		links:          map[string]model.ClosedIssueOnMerge{},
		linkCreatedAt:  map[string]time.Time{},
		externalIssues: map[string]model.ExternalIssue{},
	}
}

type projectStore struct{ db *memDB }

func (s projectStore) Upsert(_ context.Context, p model.Project) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.projects[p.ID] = p
	return nil
}

type issueStore struct{ db *memDB }

func (s issueStore) Upsert(_ context.Context, i model.Issue) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.issues[i.ID] = i
	return nil
}

type mergeRequestStore struct {
	staged map[string]model.MergeRequest
}

func (s mergeRequestStore) Upsert(_ context.Context, mr model.MergeRequest) error {
	s.staged[mr.ID] = mr
	return nil
}

func (s mergeRequestStore) Get(_ context.Context, id string) (*model.MergeRequest, error) {
	mr, ok := s.staged[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &mr, nil
}

type closedIssueStore struct {
	db     *memDB
	staged map[string]model.ClosedIssueOnMerge
}

func (s closedIssueStore) Upsert(_ context.Context, link model.ClosedIssueOnMerge) error {
	if s.db.failLinkUpsert != nil {
		return s.db.failLinkUpsert
	}
	s.staged[link.MergeRequestID+"|"+link.IssueID] = link
	return nil
}

// ListUnresolvedExternal mirrors the SQL: external keys of the group created at or after
// since, without an external issue row, after the cursor, ordered.
func (s closedIssueStore) ListUnresolvedExternal(_ context.Context, groupKey string, since time.Time, after *string, limit int32) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.lastSince = since
	resolved := map[string]bool{}
	for _, e := range s.db.externalIssues {
		resolved[e.DisplayID] = true
	}
	seen := map[string]bool{}
	var keys []string
	for k, l := range s.db.links {
		if l.GroupKey != groupKey || !l.External() || resolved[l.IssueID] || seen[l.IssueID] {
			continue
		}
		if s.db.linkCreatedAt[k].Before(since) {
			continue
		}
		if after != nil && strings.Compare(l.IssueID, *after) <= 0 {
			continue
		}
		seen[l.IssueID] = true
		keys = append(keys, l.IssueID)
	}
	sort.Strings(keys)
	if len(keys) > int(limit) {
		keys = keys[:limit]
	}
	return keys, nil
}

func (db *memDB) addLink(groupKey, mrID, key string, createdAt time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	k := mrID + "|" + key
	db.links[k] = model.ClosedIssueOnMerge{MergeRequestID: mrID, IssueID: key, GroupKey: groupKey}
	db.linkCreatedAt[k] = createdAt
}

type externalIssueStore struct{ db *memDB }

func (s externalIssueStore) Upsert(_ context.Context, issue model.ExternalIssue) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.externalIssues[issue.IssueTracker+"|"+issue.ID] = issue
	return nil
}

type txProvider struct {
	mrs   mergeRequestStore
	links closedIssueStore
}

func (p txProvider) MergeRequests() store.MergeRequestStore { return p.mrs }
func (p txProvider) ClosedIssues() store.ClosedIssueStore   { return p.links }

// WithTx stages writes and applies them only when fn succeeds.
func (db *memDB) WithTx(_ context.Context, fn func(stores store.StoreProvider) error) error {
	p := txProvider{
		mrs:   mergeRequestStore{staged: map[string]model.MergeRequest{}},
		links: closedIssueStore{db: db, staged: map[string]model.ClosedIssueOnMerge{}},
	}
	if err := fn(p); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for k, v := range p.mrs.staged {
		db.mergeRequests[k] = v
	}
	for k, v := range p.links.staged {
		db.links[k] = v
		db.linkCreatedAt[k] = time.Now()
	}
	return nil
}

type memProgress struct {
	mu     sync.Mutex
	rows   map[int64]*model.ImportProgress
	nextID int64
}

func newMemProgress() *memProgress {
	return &memProgress{rows: map[int64]*model.ImportProgress{}}
}

func (m *memProgress) Open(_ context.Context, group string, t model.ImportType, since time.Time) (*model.ImportProgress, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.GroupKey == group && p.ImportType == t && p.Status != model.ImportStatusCompleted {
			p.Status = model.ImportStatusInProgress
			cp := *p
			return &cp, true, nil
		}
	}
	m.nextID++
	p := &model.ImportProgress{ID: m.nextID, GroupKey: group, ImportType: t, WatermarkSince: since, Status: model.ImportStatusInProgress}
	m.rows[p.ID] = p
	cp := *p
	return &cp, false, nil
}

func (m *memProgress) Checkpoint(_ context.Context, id int64, cursor *string, processed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cursor != nil {
		c := *cursor
		m.rows[id].LastCursor = &c
	}
	m.rows[id].TotalProcessed += processed
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

type failingEnricher struct{}

func (failingEnricher) Name() string { return "summary" }

func (failingEnricher) Enrich(_ context.Context, mr model.MergeRequest) (model.MergeRequest, error) {
	return mr, errors.New("model unavailable")
}

func ptr[V any](v V) *V {
	return &v
}

func mergeRequestNode(id, iid, mergedAt string) *gitlab.MergeRequestNode {
	n := &gitlab.MergeRequestNode{
		ID:        id,
		IID:       iid,
		Title:     "mr " + iid,
		ProjectID: 52263413,
		CreatedAt: "2020-03-02T09:00:00Z",
		UpdatedAt: "2020-03-02T09:10:00Z",
		Author:    &gitlab.User{Username: "dev1"},
	}
	if mergedAt != "" {
		n.MergedAt = &mergedAt
	}
	return n
}
