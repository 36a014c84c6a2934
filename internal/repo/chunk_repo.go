package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/trainproof/trainproof/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Upsert is keyed on (document_id, chunk_index); re-indexing the same
// document overwrites in place, so concurrent indexers converge.
func (r *ChunkRepo) Upsert(ctx context.Context, chunk *model.Chunk) error {
	const query = `
		INSERT INTO document_chunks (document_id, chunk_index, text, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		chunk.DocumentID,
		chunk.ChunkIndex,
		chunk.Text,
		pgvector.NewVector(chunk.Embedding),
		time.Now().UnixMilli(),
	)
	return err
}

// DeleteFrom removes chunk rows at or beyond index. Called after
// re-indexing with changed parameters produced a shorter chunk set.
func (r *ChunkRepo) DeleteFrom(ctx context.Context, documentID string, index int) error {
	const query = `DELETE FROM document_chunks WHERE document_id = $1 AND chunk_index >= $2`
	_, err := r.db.ExecContext(ctx, query, documentID, index)
	return err
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, documentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Query returns the k nearest chunks by cosine similarity within the
// document scope, best first, excluding anything below minSimilarity.
// Ties break by ascending chunk index so rankings are stable. An empty
// result means no supporting evidence cleared the floor; it is not an
// error.
func (r *ChunkRepo) Query(ctx context.Context, queryEmbedding []float32, k int, minSimilarity float64, documentIDs []string) ([]model.ChunkMatch, error) {
	if len(documentIDs) == 0 || k <= 0 {
		return nil, nil
	}
	const query = `
		SELECT document_id, chunk_index, text, 1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE document_id = ANY($2) AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1 ASC, chunk_index ASC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query,
		pgvector.NewVector(queryEmbedding), pq.Array(documentIDs), minSimilarity, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []model.ChunkMatch
	for rows.Next() {
		var m model.ChunkMatch
		if err := rows.Scan(&m.DocumentID, &m.ChunkIndex, &m.Text, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
