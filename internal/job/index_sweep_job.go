package job

import (
	"context"

	"github.com/trainproof/trainproof/internal/service"
)

// IndexSweepJob picks up documents that were uploaded but never
// explicitly triggered for indexing.
type IndexSweepJob struct {
	indexer *service.IndexerService
	batch   int
}

func NewIndexSweepJob(indexer *service.IndexerService, batch int) *IndexSweepJob {
	return &IndexSweepJob{indexer: indexer, batch: batch}
}

func (j *IndexSweepJob) Name() string {
	return "index_sweep"
}

func (j *IndexSweepJob) Run(ctx context.Context) error {
	batch := j.batch
	if batch <= 0 {
		batch = 10
	}
	return j.indexer.Sweep(ctx, batch)
}
