package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trainproof/trainproof/internal/ai"
	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// TaskTypeValidation is the prompt registry task key the validation
// loop resolves templates under.
const TaskTypeValidation = "requirement_validation"

// ValidationDeps wires the validation loop. Backends carry one entry
// per configured provider; Embedder and EmbedLimiter belong to the
// deployment's embedding provider so query vectors live in the same
// space as the indexed chunks.
type ValidationDeps struct {
	Jobs         JobStore
	Results      ResultStore
	Documents    DocumentStore
	Chunks       ChunkStore
	Requirements RequirementStore
	Prompts      *PromptService
	Backends     map[string]*Backend
	Embedder     Embedder
	EmbedLimiter CallLimiter
	Tracker      *ProgressTracker

	DefaultProvider string
	DefaultStrategy string
	MaxAttempts     int
	BackoffBase     time.Duration
	TopK            int
	MinSimilarity   float64
}

// ValidationService is the orchestrating state machine: one job walks
// Pending, Indexing, Validating and ends Finalized, Failed or
// Cancelled. Requirement failures never abort siblings; job-level
// failure is reserved for conditions that prevent any requirement from
// being attempted.
type ValidationService struct {
	deps ValidationDeps
}

func NewValidationService(deps ValidationDeps) *ValidationService {
	return &ValidationService{deps: deps}
}

type CreateJobParams struct {
	Provider       string
	Strategy       string
	DocumentType   string
	DocumentIDs    []string
	RequirementIDs []string
}

// CreateJob fixes provider, strategy and document type on the job row.
// The loop never reads ambient configuration mid-run.
func (s *ValidationService) CreateJob(ctx context.Context, params CreateJobParams) (*model.ValidationJob, error) {
	if params.Provider == "" {
		params.Provider = s.deps.DefaultProvider
	}
	if params.Strategy == "" {
		params.Strategy = s.deps.DefaultStrategy
	}
	if params.DocumentType == "" {
		params.DocumentType = model.DocumentTypeBoth
	}
	if _, ok := s.deps.Backends[params.Provider]; !ok {
		return nil, fmt.Errorf("%w: provider %s", apperr.ErrUnavailable, params.Provider)
	}
	if params.Strategy != model.StrategyWholeContext && params.Strategy != model.StrategyRetrieval {
		return nil, fmt.Errorf("%w: unknown strategy %q", apperr.ErrInvalid, params.Strategy)
	}
	if len(params.DocumentIDs) == 0 {
		return nil, fmt.Errorf("%w: document set is empty", apperr.ErrInvalid)
	}
	if len(params.RequirementIDs) == 0 {
		return nil, fmt.Errorf("%w: requirement set is empty", apperr.ErrInvalid)
	}
	docs, err := s.deps.Documents.ListByIDs(ctx, params.DocumentIDs)
	if err != nil {
		return nil, err
	}
	if len(docs) != len(params.DocumentIDs) {
		return nil, fmt.Errorf("%w: unknown document in set", apperr.ErrNotFound)
	}
	reqs, err := s.deps.Requirements.ListByIDs(ctx, params.RequirementIDs)
	if err != nil {
		return nil, err
	}
	if len(reqs) != len(params.RequirementIDs) {
		return nil, fmt.Errorf("%w: unknown requirement in set", apperr.ErrNotFound)
	}
	now := time.Now().UnixMilli()
	job := &model.ValidationJob{
		ID:           newID(),
		Provider:     params.Provider,
		Strategy:     params.Strategy,
		DocumentType: params.DocumentType,
		Status:       model.JobStatusPending,
		Total:        len(params.RequirementIDs),
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.deps.Jobs.Create(ctx, job, params.DocumentIDs, params.RequirementIDs); err != nil {
		return nil, err
	}
	return job, nil
}

// StartValidation checks the indexing barrier, seeds per-requirement
// pending rows and launches the loop. Rejection leaves a pending job
// pending when indexing merely has not finished yet; conditions that
// can never recover (failed document, empty requirement set) fail the
// job.
func (s *ValidationService) StartValidation(ctx context.Context, jobID string) error {
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusPending {
		return fmt.Errorf("%w: job is %s", apperr.ErrConflict, job.Status)
	}
	reqIDs, err := s.deps.Jobs.ListRequirementIDs(ctx, jobID)
	if err != nil {
		return err
	}
	if len(reqIDs) == 0 {
		s.failJob(ctx, jobID)
		return fmt.Errorf("%w: empty requirement set", apperr.ErrJobPrerequisite)
	}
	docIDs, err := s.deps.Jobs.ListDocumentIDs(ctx, jobID)
	if err != nil {
		return err
	}
	docs, err := s.deps.Documents.ListByIDs(ctx, docIDs)
	if err != nil {
		return err
	}
	if len(docs) != len(docIDs) {
		s.failJob(ctx, jobID)
		return fmt.Errorf("%w: document missing", apperr.ErrJobPrerequisite)
	}
	for i := range docs {
		switch docs[i].Status {
		case model.DocumentStatusIndexed:
		case model.DocumentStatusFailed:
			s.failJob(ctx, jobID)
			return fmt.Errorf("%w: document %s failed indexing", apperr.ErrIndexingFailure, docs[i].ID)
		default:
			return fmt.Errorf("%w: document %s not indexed yet", apperr.ErrJobPrerequisite, docs[i].ID)
		}
	}
	backend, err := s.backend(job.Provider)
	if err != nil {
		s.failJob(ctx, jobID)
		return err
	}
	reqs, err := s.deps.Requirements.ListByIDs(ctx, reqIDs)
	if err != nil {
		return err
	}

	ok, err := s.deps.Jobs.TransitionStatus(ctx, jobID,
		[]string{model.JobStatusPending}, model.JobStatusIndexing)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job already started", apperr.ErrConflict)
	}
	if err := s.deps.Results.InitPending(ctx, jobID, reqIDs); err != nil {
		return err
	}
	if _, err := s.deps.Jobs.TransitionStatus(ctx, jobID,
		[]string{model.JobStatusIndexing}, model.JobStatusValidating); err != nil {
		return err
	}
	s.deps.Tracker.StartJob(jobID, len(reqs), model.JobStatusValidating)
	go s.run(context.Background(), job, backend, docs, reqs)
	return nil
}

// run drives the per-requirement sub-loop with bounded concurrency up
// to the provider's in-flight budget. Cancellation is checked between
// requirement submissions, never mid-call.
func (s *ValidationService) run(ctx context.Context, job *model.ValidationJob, backend *Backend,
	docs []model.Document, reqs []model.Requirement) {
	limit := backend.Limiter.MaxConcurrent()
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range reqs {
		if s.deps.Tracker.CancelRequested(job.ID) {
			break
		}
		req := reqs[i]
		g.Go(func() error {
			s.processRequirement(ctx, job, backend, docs, &req)
			return nil
		})
	}
	_ = g.Wait()

	final := model.JobStatusFinalized
	if s.deps.Tracker.CancelRequested(job.ID) {
		final = model.JobStatusCancelled
	}
	if _, err := s.deps.Jobs.TransitionStatus(ctx, job.ID,
		[]string{model.JobStatusValidating}, final); err != nil {
		logutil.GetLogger(ctx).Error("finalize job failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
	// The row is terminal now. Drop the tracker entry so status reads
	// come from the persisted rows, which later revalidations update.
	s.deps.Tracker.Forget(job.ID)
	logutil.GetLogger(ctx).Info("validation job finished",
		zap.String("job_id", job.ID), zap.String("status", final))
}

func (s *ValidationService) processRequirement(ctx context.Context, job *model.ValidationJob,
	backend *Backend, docs []model.Document, req *model.Requirement) {
	result := s.validateRequirement(ctx, job, backend, docs, req)
	if err := s.deps.Results.Save(ctx, result); err != nil {
		logutil.GetLogger(ctx).Error("persist result failed",
			zap.String("job_id", job.ID), zap.String("requirement_id", req.ID), zap.Error(err))
	}
	s.deps.Tracker.RecordResult(job.ID, result.Status == model.ResultStatusSucceeded)
	if snap, ok := s.deps.Tracker.Snapshot(job.ID); ok {
		if err := s.deps.Jobs.UpdateCounters(ctx, job.ID, snap.Total, snap.Succeeded, snap.Failed); err != nil {
			logutil.GetLogger(ctx).Warn("update job counters failed",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// validateRequirement runs steps 1-4 of the sub-loop and always returns
// a terminal result. Transient and rate-limit failures retry with
// exponential backoff up to the attempt ceiling; everything else fails
// the requirement immediately.
func (s *ValidationService) validateRequirement(ctx context.Context, job *model.ValidationJob,
	backend *Backend, docs []model.Document, req *model.Requirement) *model.ValidationResult {
	result := &model.ValidationResult{
		JobID:         job.ID,
		RequirementID: req.ID,
		Status:        model.ResultStatusFailed,
	}
	tpl, err := s.deps.Prompts.Resolve(ctx, TaskTypeValidation, req.Type, job.DocumentType)
	if err != nil {
		result.ErrorKind = apperr.Kind(err)
		result.ErrorMessage = err.Error()
		return result
	}
	contextText, err := s.buildContext(ctx, job, docs, req)
	if err != nil {
		result.ErrorKind = apperr.Kind(err)
		result.ErrorMessage = err.Error()
		return result
	}
	genReq := &ai.GenerateRequest{
		SystemInstruction: tpl.SystemInstruction,
		Prompt:            Render(tpl, req),
		Context:           contextText,
		Schema:            tpl.OutputSchema,
		Config:            tpl.GenerationConfig,
	}
	maxAttempts := s.deps.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.AttemptCount = attempt
		out, err := s.generateOnce(ctx, backend, genReq)
		if err == nil {
			result.Status = model.ResultStatusSucceeded
			result.Verdict = out.Verdict
			result.Reasoning = out.Reasoning
			result.Citations = out.Citations
			result.Confidence = out.Confidence
			return result
		}
		lastErr = err
		if !apperr.IsRetryable(err) || attempt == maxAttempts {
			break
		}
		if err := sleepBackoff(ctx, s.deps.BackoffBase, attempt); err != nil {
			lastErr = err
			break
		}
	}
	result.ErrorKind = apperr.Kind(lastErr)
	result.ErrorMessage = lastErr.Error()
	return result
}

func (s *ValidationService) generateOnce(ctx context.Context, backend *Backend, req *ai.GenerateRequest) (*ai.StructuredResult, error) {
	release, err := backend.Limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return backend.Generator.GenerateStructured(ctx, req)
}

// buildContext assembles the evidence for one requirement according to
// the job's strategy. An empty retrieval is stated explicitly so the
// model still renders a terminal verdict instead of erroring out.
func (s *ValidationService) buildContext(ctx context.Context, job *model.ValidationJob,
	docs []model.Document, req *model.Requirement) (string, error) {
	if job.Strategy == model.StrategyWholeContext {
		var b strings.Builder
		for i := range docs {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "[document %s: %s]\n", docs[i].ID, docs[i].Name)
			b.WriteString(docs[i].Text)
		}
		return b.String(), nil
	}
	emb, err := embedWithRetry(ctx, s.deps.Embedder, s.deps.EmbedLimiter,
		req.Text, ai.TaskTypeQuery, s.deps.MaxAttempts, s.deps.BackoffBase)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(docs))
	for i := range docs {
		ids = append(ids, docs[i].ID)
	}
	matches, err := s.deps.Chunks.Query(ctx, emb, s.deps.TopK, s.deps.MinSimilarity, ids)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No supporting evidence was found in the supplied documents.", nil
	}
	var b strings.Builder
	for i := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[document %s chunk %d, similarity %.3f]\n",
			matches[i].DocumentID, matches[i].ChunkIndex, matches[i].Similarity)
		b.WriteString(matches[i].Text)
	}
	return b.String(), nil
}

// CancelJob requests cancellation. A live loop stops issuing new model
// calls between requirements and already-issued calls complete and
// persist; without a live loop the status flips directly.
func (s *ValidationService) CancelJob(ctx context.Context, jobID string) error {
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case model.JobStatusPending:
		ok, err := s.deps.Jobs.TransitionStatus(ctx, jobID,
			[]string{model.JobStatusPending}, model.JobStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: job moved on", apperr.ErrConflict)
		}
		return nil
	case model.JobStatusIndexing, model.JobStatusValidating:
		if s.deps.Tracker.RequestCancel(jobID) {
			return nil
		}
		// No loop in this process holds the job (e.g. after a restart).
		ok, err := s.deps.Jobs.TransitionStatus(ctx, jobID,
			[]string{model.JobStatusIndexing, model.JobStatusValidating}, model.JobStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: job moved on", apperr.ErrConflict)
		}
		return nil
	default:
		return fmt.Errorf("%w: job is %s", apperr.ErrConflict, job.Status)
	}
}

// Status returns a consistent snapshot: the tracker while the job runs
// here, the persisted rows otherwise.
func (s *ValidationService) Status(ctx context.Context, jobID string) (*model.JobStatusSnapshot, error) {
	if snap, ok := s.deps.Tracker.Snapshot(jobID); ok {
		return &snap, nil
	}
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	succeeded, failed, _, err := s.deps.Results.Counts(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &model.JobStatusSnapshot{
		Status:    job.Status,
		Total:     job.Total,
		Succeeded: succeeded,
		Failed:    failed,
		Pending:   job.Total - succeeded - failed,
	}, nil
}

// Results lists the persisted per-requirement outcomes once the job is
// terminal.
func (s *ValidationService) Results(ctx context.Context, jobID string) ([]model.ValidationResult, error) {
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case model.JobStatusFinalized, model.JobStatusCancelled, model.JobStatusFailed:
		return s.deps.Results.ListByJob(ctx, jobID)
	}
	return nil, fmt.Errorf("%w: job is %s", apperr.ErrJobPrerequisite, job.Status)
}

// RevalidateRequirement re-runs the sub-loop for one requirement of a
// finalized job. Only that result row changes; the job status and every
// sibling row stay untouched.
func (s *ValidationService) RevalidateRequirement(ctx context.Context, jobID, requirementID string) (*model.ValidationResult, error) {
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusFinalized {
		return nil, fmt.Errorf("%w: job is %s", apperr.ErrJobNotFinalized, job.Status)
	}
	// The result row doubles as the membership check.
	if _, err := s.deps.Results.Get(ctx, jobID, requirementID); err != nil {
		return nil, err
	}
	req, err := s.deps.Requirements.Get(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	docIDs, err := s.deps.Jobs.ListDocumentIDs(ctx, jobID)
	if err != nil {
		return nil, err
	}
	docs, err := s.deps.Documents.ListByIDs(ctx, docIDs)
	if err != nil {
		return nil, err
	}
	backend, err := s.backend(job.Provider)
	if err != nil {
		return nil, err
	}
	result := s.validateRequirement(ctx, job, backend, docs, req)
	if err := s.deps.Results.Save(ctx, result); err != nil {
		return nil, err
	}
	succeeded, failed, pending, err := s.deps.Results.Counts(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Jobs.UpdateCounters(ctx, jobID, succeeded+failed+pending, succeeded, failed); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ValidationService) backend(provider string) (*Backend, error) {
	backend, ok := s.deps.Backends[provider]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s", apperr.ErrUnavailable, provider)
	}
	return backend, nil
}

func (s *ValidationService) failJob(ctx context.Context, jobID string) {
	if _, err := s.deps.Jobs.TransitionStatus(ctx, jobID,
		[]string{model.JobStatusPending, model.JobStatusIndexing}, model.JobStatusFailed); err != nil {
		logutil.GetLogger(ctx).Error("mark job failed",
			zap.String("job_id", jobID), zap.Error(err))
	}
}
