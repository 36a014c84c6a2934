package service

import (
	"context"

	"github.com/trainproof/trainproof/internal/ai"
	"github.com/trainproof/trainproof/internal/model"
)

// Store interfaces mirror internal/repo so the orchestration logic can
// be exercised against in-memory fakes.

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Document, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]model.Document, error)
	Claim(ctx context.Context, id string, from ...string) (bool, error)
	MarkIndexed(ctx context.Context, id string, window, overlap int) error
	MarkFailed(ctx context.Context, id string) error
}

type ChunkStore interface {
	Upsert(ctx context.Context, chunk *model.Chunk) error
	DeleteFrom(ctx context.Context, documentID string, index int) error
	CountByDocument(ctx context.Context, documentID string) (int, error)
	Query(ctx context.Context, queryEmbedding []float32, k int, minSimilarity float64, documentIDs []string) ([]model.ChunkMatch, error)
}

type PromptStore interface {
	GetDefault(ctx context.Context, taskType, requirementType, documentType string) (*model.PromptTemplate, error)
	Publish(ctx context.Context, tpl *model.PromptTemplate) (*model.PromptTemplate, error)
	ListVersions(ctx context.Context, taskType, requirementType, documentType string) ([]model.PromptTemplate, error)
}

type JobStore interface {
	Create(ctx context.Context, job *model.ValidationJob, documentIDs, requirementIDs []string) error
	Get(ctx context.Context, id string) (*model.ValidationJob, error)
	TransitionStatus(ctx context.Context, id string, from []string, to string) (bool, error)
	UpdateCounters(ctx context.Context, id string, total, succeeded, failed int) error
	ListDocumentIDs(ctx context.Context, jobID string) ([]string, error)
	ListRequirementIDs(ctx context.Context, jobID string) ([]string, error)
}

type ResultStore interface {
	InitPending(ctx context.Context, jobID string, requirementIDs []string) error
	Save(ctx context.Context, result *model.ValidationResult) error
	Get(ctx context.Context, jobID, requirementID string) (*model.ValidationResult, error)
	ListByJob(ctx context.Context, jobID string) ([]model.ValidationResult, error)
	Counts(ctx context.Context, jobID string) (succeeded, failed, pending int, err error)
}

type RequirementStore interface {
	CreateBatch(ctx context.Context, requirements []model.Requirement) error
	Get(ctx context.Context, id string) (*model.Requirement, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Requirement, error)
	ListByUnit(ctx context.Context, unitCode string) ([]model.Requirement, error)
}

// Embedder and Generator are the two adapter capabilities the loop
// consumes. ai.CachedEmbedder and ai.Runner satisfy them.

type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type Generator interface {
	GenerateStructured(ctx context.Context, req *ai.GenerateRequest) (*ai.StructuredResult, error)
}

// CallLimiter gates outbound provider calls. ratelimit.Limiter
// satisfies it; one instance per provider, shared across jobs.
type CallLimiter interface {
	Acquire(ctx context.Context) (func(), error)
	MaxConcurrent() int
}

// Backend bundles one provider's generation capability with its call
// budget. The provider a job uses is fixed at job creation.
type Backend struct {
	Generator Generator
	Limiter   CallLimiter
}
