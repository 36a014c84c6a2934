package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trainproof/trainproof/internal/ai"
	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// In-memory store fakes. All of them are safe for concurrent use since
// the validation loop runs requirements in parallel.

type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[string]*model.Document)}
}

func (s *fakeDocumentStore) Create(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return apperr.ErrConflict
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *fakeDocumentStore) Get(_ context.Context, id string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *fakeDocumentStore) ListByIDs(_ context.Context, ids []string) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Document
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeDocumentStore) ListByStatus(_ context.Context, status string, limit int) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Document
	for _, doc := range s.docs {
		if doc.Status == status {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeDocumentStore) Claim(_ context.Context, id string, from ...string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if doc.Status == status {
			doc.Status = model.DocumentStatusIndexing
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeDocumentStore) MarkIndexed(_ context.Context, id string, window, overlap int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	doc.Status = model.DocumentStatusIndexed
	doc.ChunkWindow = window
	doc.ChunkOverlap = overlap
	return nil
}

func (s *fakeDocumentStore) MarkFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	doc.Status = model.DocumentStatusFailed
	return nil
}

func (s *fakeDocumentStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id].Status
}

type fakeChunkStore struct {
	mu      sync.Mutex
	rows    map[string]map[int]model.Chunk
	matches []model.ChunkMatch
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{rows: make(map[string]map[int]model.Chunk)}
}

func (s *fakeChunkStore) Upsert(_ context.Context, chunk *model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[chunk.DocumentID] == nil {
		s.rows[chunk.DocumentID] = make(map[int]model.Chunk)
	}
	s.rows[chunk.DocumentID][chunk.ChunkIndex] = *chunk
	return nil
}

func (s *fakeChunkStore) DeleteFrom(_ context.Context, documentID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx := range s.rows[documentID] {
		if idx >= index {
			delete(s.rows[documentID], idx)
		}
	}
	return nil
}

func (s *fakeChunkStore) CountByDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[documentID]), nil
}

func (s *fakeChunkStore) Query(_ context.Context, _ []float32, k int, _ float64, _ []string) ([]model.ChunkMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := s.matches
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

type fakePromptStore struct {
	mu   sync.Mutex
	rows map[string]*model.PromptTemplate
}

func newFakePromptStore() *fakePromptStore {
	return &fakePromptStore{rows: make(map[string]*model.PromptTemplate)}
}

func promptKey(taskType, requirementType, documentType string) string {
	return taskType + "|" + requirementType + "|" + documentType
}

func (s *fakePromptStore) GetDefault(_ context.Context, taskType, requirementType, documentType string) (*model.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.rows[promptKey(taskType, requirementType, documentType)]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}

func (s *fakePromptStore) Publish(_ context.Context, tpl *model.PromptTemplate) (*model.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := promptKey(tpl.TaskType, tpl.RequirementType, tpl.DocumentType)
	saved := *tpl
	saved.Version = 1
	if prev, ok := s.rows[key]; ok {
		saved.Version = prev.Version + 1
	}
	saved.IsActive = true
	saved.IsDefault = true
	s.rows[key] = &saved
	cp := saved
	return &cp, nil
}

func (s *fakePromptStore) ListVersions(_ context.Context, taskType, requirementType, documentType string) ([]model.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.rows[promptKey(taskType, requirementType, documentType)]
	if !ok {
		return nil, nil
	}
	return []model.PromptTemplate{*tpl}, nil
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*model.ValidationJob
	docs map[string][]string
	reqs map[string][]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs: make(map[string]*model.ValidationJob),
		docs: make(map[string][]string),
		reqs: make(map[string][]string),
	}
}

func (s *fakeJobStore) Create(_ context.Context, job *model.ValidationJob, documentIDs, requirementIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return apperr.ErrConflict
	}
	cp := *job
	s.jobs[job.ID] = &cp
	s.docs[job.ID] = append([]string(nil), documentIDs...)
	s.reqs[job.ID] = append([]string(nil), requirementIDs...)
	return nil
}

func (s *fakeJobStore) Get(_ context.Context, id string) (*model.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) TransitionStatus(_ context.Context, id string, from []string, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if job.Status == status {
			job.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeJobStore) UpdateCounters(_ context.Context, id string, total, succeeded, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	job.Total = total
	job.Succeeded = succeeded
	job.Failed = failed
	return nil
}

func (s *fakeJobStore) ListDocumentIDs(_ context.Context, jobID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.docs[jobID]...), nil
}

func (s *fakeJobStore) ListRequirementIDs(_ context.Context, jobID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reqs[jobID]...), nil
}

func (s *fakeJobStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id].Status
}

type fakeResultStore struct {
	mu   sync.Mutex
	rows map[string]*model.ValidationResult
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{rows: make(map[string]*model.ValidationResult)}
}

func resultKey(jobID, requirementID string) string {
	return jobID + "|" + requirementID
}

func (s *fakeResultStore) InitPending(_ context.Context, jobID string, requirementIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reqID := range requirementIDs {
		key := resultKey(jobID, reqID)
		if _, ok := s.rows[key]; ok {
			continue
		}
		s.rows[key] = &model.ValidationResult{
			JobID:         jobID,
			RequirementID: reqID,
			Status:        model.ResultStatusPending,
		}
	}
	return nil
}

func (s *fakeResultStore) Save(_ context.Context, result *model.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := resultKey(result.JobID, result.RequirementID)
	if _, ok := s.rows[key]; !ok {
		return apperr.ErrNotFound
	}
	cp := *result
	cp.Mtime = time.Now().UnixMilli()
	s.rows[key] = &cp
	return nil
}

func (s *fakeResultStore) Get(_ context.Context, jobID, requirementID string) (*model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[resultKey(jobID, requirementID)]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *fakeResultStore) ListByJob(_ context.Context, jobID string) ([]model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ValidationResult
	for _, row := range s.rows {
		if row.JobID == jobID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequirementID < out[j].RequirementID })
	return out, nil
}

func (s *fakeResultStore) Counts(_ context.Context, jobID string) (succeeded, failed, pending int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.JobID != jobID {
			continue
		}
		switch row.Status {
		case model.ResultStatusSucceeded:
			succeeded++
		case model.ResultStatusFailed:
			failed++
		default:
			pending++
		}
	}
	return succeeded, failed, pending, nil
}

type fakeRequirementStore struct {
	mu   sync.Mutex
	rows map[string]*model.Requirement
}

func newFakeRequirementStore() *fakeRequirementStore {
	return &fakeRequirementStore{rows: make(map[string]*model.Requirement)}
}

func (s *fakeRequirementStore) CreateBatch(_ context.Context, requirements []model.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range requirements {
		cp := requirements[i]
		s.rows[cp.ID] = &cp
	}
	return nil
}

func (s *fakeRequirementStore) Get(_ context.Context, id string) (*model.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *fakeRequirementStore) ListByIDs(_ context.Context, ids []string) ([]model.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Requirement
	for _, id := range ids {
		if req, ok := s.rows[id]; ok {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeRequirementStore) ListByUnit(_ context.Context, unitCode string) ([]model.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Requirement
	for _, req := range s.rows {
		if req.UnitCode == unitCode {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeGenerator answers with a fixed verdict unless fail decides
// otherwise for a given request.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	delay   time.Duration
	verdict string
	fail    func(req *ai.GenerateRequest) error
}

func (g *fakeGenerator) GenerateStructured(_ context.Context, req *ai.GenerateRequest) (*ai.StructuredResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.fail != nil {
		if err := g.fail(req); err != nil {
			return nil, err
		}
	}
	verdict := g.verdict
	if verdict == "" {
		verdict = model.VerdictMet
	}
	return &ai.StructuredResult{
		Verdict:    verdict,
		Reasoning:  "evidence reviewed",
		Confidence: 0.9,
	}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, text string, _ string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (e *fakeEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeLimiter struct {
	concurrent int
}

func (l *fakeLimiter) Acquire(context.Context) (func(), error) { return func() {}, nil }

func (l *fakeLimiter) MaxConcurrent() int {
	if l.concurrent < 1 {
		return 1
	}
	return l.concurrent
}

func seedPrompt(store *fakePromptStore, requirementType, documentType string) {
	store.rows[promptKey(TaskTypeValidation, requirementType, documentType)] = &model.PromptTemplate{
		TaskType:        TaskTypeValidation,
		RequirementType: requirementType,
		DocumentType:    documentType,
		Version:         1,
		IsActive:        true,
		IsDefault:       true,
		PromptText:      "judge {{requirement}} for unit {{unit_code}}",
		OutputSchema:    []byte(`{"type":"object"}`),
	}
}

func seedIndexedDocument(store *fakeDocumentStore, id string) {
	store.docs[id] = &model.Document{
		ID:     id,
		Name:   id,
		Text:   "evidence text for " + id,
		Status: model.DocumentStatusIndexed,
	}
}

func seedRequirements(store *fakeRequirementStore, n int, reqType string) []string {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("req-%02d", i)
		store.rows[id] = &model.Requirement{
			ID:       id,
			UnitCode: "BSBWHS411",
			Type:     reqType,
			Text:     fmt.Sprintf("requirement %02d statement", i),
		}
		ids = append(ids, id)
	}
	return ids
}
