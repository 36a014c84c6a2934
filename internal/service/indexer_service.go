package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/trainproof/trainproof/internal/ai"
	"github.com/trainproof/trainproof/internal/chunker"
	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// Trigger outcomes for the indexing surface.
const (
	IndexAccepted       = "accepted"
	IndexAlreadyIndexed = "already-indexed"
)

// IndexerService turns a document's text into an embedded chunk set.
// Indexing is idempotent per document: a hash-matched document whose
// stored chunk set was produced with the current parameters is skipped,
// and concurrent triggers converge on a single claim.
type IndexerService struct {
	documents    DocumentStore
	chunks       ChunkStore
	splitter     *chunker.Chunker
	embedder     Embedder
	limiter      CallLimiter
	embeddingDim int
	maxAttempts  int
	backoffBase  time.Duration
}

func NewIndexerService(documents DocumentStore, chunks ChunkStore, splitter *chunker.Chunker,
	embedder Embedder, limiter CallLimiter, embeddingDim, maxAttempts int, backoffBase time.Duration) *IndexerService {
	return &IndexerService{
		documents:    documents,
		chunks:       chunks,
		splitter:     splitter,
		embedder:     embedder,
		limiter:      limiter,
		embeddingDim: embeddingDim,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
	}
}

// StartIndexing claims the document and indexes it in the background.
// A document already indexed with the current chunk parameters reports
// already-indexed without recomputation. When another trigger holds the
// claim the call still reports accepted; both converge on one chunk set.
func (s *IndexerService) StartIndexing(ctx context.Context, documentID string) (string, error) {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.Status == model.DocumentStatusIndexed &&
		doc.ChunkWindow == s.splitter.Window() && doc.ChunkOverlap == s.splitter.Overlap() {
		return IndexAlreadyIndexed, nil
	}
	claimed, err := s.documents.Claim(ctx, documentID,
		model.DocumentStatusPending, model.DocumentStatusFailed, model.DocumentStatusIndexed)
	if err != nil {
		return "", err
	}
	if !claimed {
		return IndexAccepted, nil
	}
	go func() {
		if err := s.index(context.Background(), doc); err != nil {
			logutil.GetLogger(context.Background()).Error("document indexing failed",
				zap.String("document_id", doc.ID), zap.Error(err))
		}
	}()
	return IndexAccepted, nil
}

// Sweep indexes pending documents in batches. Run from the scheduler so
// documents uploaded without an explicit trigger still get indexed.
func (s *IndexerService) Sweep(ctx context.Context, batch int) error {
	docs, err := s.documents.ListByStatus(ctx, model.DocumentStatusPending, batch)
	if err != nil {
		return err
	}
	for i := range docs {
		claimed, err := s.documents.Claim(ctx, docs[i].ID, model.DocumentStatusPending)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}
		if err := s.index(ctx, &docs[i]); err != nil {
			logutil.GetLogger(ctx).Warn("sweep indexing failed",
				zap.String("document_id", docs[i].ID), zap.Error(err))
		}
	}
	return nil
}

// index writes the full chunk set by keyed upsert, then trims any stale
// tail beyond the new chunk count, so a re-index with changed
// parameters leaves no leftovers.
func (s *IndexerService) index(ctx context.Context, doc *model.Document) error {
	chunks := s.splitter.Chunk(doc.ID, doc.Text)
	for i := range chunks {
		emb, err := embedWithRetry(ctx, s.embedder, s.limiter,
			chunks[i].Text, ai.TaskTypeDocument, s.maxAttempts, s.backoffBase)
		if err != nil {
			return s.fail(ctx, doc.ID, fmt.Errorf("%w: embed chunk %d: %v",
				apperr.ErrIndexingFailure, chunks[i].ChunkIndex, err))
		}
		// The chunk column is fixed-width; a provider returning another
		// dimensionality would corrupt the retrieval space.
		if s.embeddingDim > 0 && len(emb) != s.embeddingDim {
			return s.fail(ctx, doc.ID, fmt.Errorf("%w: chunk %d embedding has %d dimensions, store expects %d",
				apperr.ErrIndexingFailure, chunks[i].ChunkIndex, len(emb), s.embeddingDim))
		}
		chunks[i].Embedding = emb
		if err := s.chunks.Upsert(ctx, &chunks[i]); err != nil {
			return s.fail(ctx, doc.ID, fmt.Errorf("%w: persist chunk %d: %v",
				apperr.ErrIndexingFailure, chunks[i].ChunkIndex, err))
		}
	}
	if err := s.chunks.DeleteFrom(ctx, doc.ID, len(chunks)); err != nil {
		return s.fail(ctx, doc.ID, fmt.Errorf("%w: trim stale chunks: %v", apperr.ErrIndexingFailure, err))
	}
	if err := s.documents.MarkIndexed(ctx, doc.ID, s.splitter.Window(), s.splitter.Overlap()); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("document indexed",
		zap.String("document_id", doc.ID), zap.Int("chunks", len(chunks)))
	return nil
}

func (s *IndexerService) fail(ctx context.Context, documentID string, cause error) error {
	if err := s.documents.MarkFailed(ctx, documentID); err != nil {
		logutil.GetLogger(ctx).Error("mark document failed",
			zap.String("document_id", documentID), zap.Error(err))
	}
	return cause
}
