package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"

	"github.com/trainproof/trainproof/internal/model"
	"github.com/trainproof/trainproof/internal/pkg/dbutil"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = "id, name, text, text_key, hash, status, chunk_window, chunk_overlap, ctime, mtime"

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	const query = `
		INSERT INTO documents (id, name, text, text_key, hash, status, chunk_window, chunk_overlap, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.Name, doc.Text, doc.TextKey, doc.Hash, doc.Status,
		doc.ChunkWindow, doc.ChunkOverlap, doc.Ctime, doc.Mtime,
	)
	if err != nil && dbutil.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", id)
	return scanDocument(row)
}

func (r *DocumentRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ANY($1) ORDER BY id", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// ListByStatus feeds the background index sweep.
func (r *DocumentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]model.Document, error) {
	where := map[string]interface{}{
		"status":   status,
		"_orderby": "ctime asc",
		"_limit":   []uint{uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("documents",
		where, []string{documentColumns})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Claim moves a document into indexing if its current status is one of
// from. Returns false when another trigger holds the claim, making
// concurrent StartIndexing calls converge on exactly one chunk set
// write.
func (r *DocumentRepo) Claim(ctx context.Context, id string, from ...string) (bool, error) {
	const query = `
		UPDATE documents SET status = $1, mtime = $2
		WHERE id = $3 AND status = ANY($4)
	`
	res, err := r.db.ExecContext(ctx, query,
		model.DocumentStatusIndexing, time.Now().UnixMilli(),
		id, pq.Array(from))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *DocumentRepo) MarkIndexed(ctx context.Context, id string, window, overlap int) error {
	const query = `
		UPDATE documents SET status = $1, chunk_window = $2, chunk_overlap = $3, mtime = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		model.DocumentStatusIndexed, window, overlap, time.Now().UnixMilli(), id)
	return err
}

func (r *DocumentRepo) MarkFailed(ctx context.Context, id string) error {
	const query = `UPDATE documents SET status = $1, mtime = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query,
		model.DocumentStatusFailed, time.Now().UnixMilli(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	err := row.Scan(&doc.ID, &doc.Name, &doc.Text, &doc.TextKey, &doc.Hash, &doc.Status,
		&doc.ChunkWindow, &doc.ChunkOverlap, &doc.Ctime, &doc.Mtime)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
