package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/trainproof/trainproof/internal/model"
	"github.com/trainproof/trainproof/internal/pkg/dbutil"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

// Create persists the job and its document/requirement set references
// in one transaction.
func (r *JobRepo) Create(ctx context.Context, job *model.ValidationJob, documentIDs, requirementIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO validation_jobs (id, provider, strategy, document_type, status, total, succeeded, failed, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $7)
	`, job.ID, job.Provider, job.Strategy, job.DocumentType, job.Status, job.Total, job.Ctime)
	if err != nil {
		if dbutil.IsUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	for _, docID := range documentIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_documents (job_id, document_id) VALUES ($1, $2)`, job.ID, docID); err != nil {
			return err
		}
	}
	for _, reqID := range requirementIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_requirements (job_id, requirement_id) VALUES ($1, $2)`, job.ID, reqID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *JobRepo) Get(ctx context.Context, id string) (*model.ValidationJob, error) {
	const query = `
		SELECT id, provider, strategy, document_type, status, total, succeeded, failed, ctime, mtime
		FROM validation_jobs WHERE id = $1
	`
	var job model.ValidationJob
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.Provider, &job.Strategy, &job.DocumentType, &job.Status,
		&job.Total, &job.Succeeded, &job.Failed, &job.Ctime, &job.Mtime)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// TransitionStatus performs a compare-and-set on the lifecycle status,
// which keeps transitions monotonic even with concurrent triggers.
func (r *JobRepo) TransitionStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	const query = `
		UPDATE validation_jobs SET status = $1, mtime = $2
		WHERE id = $3 AND status = ANY($4)
	`
	res, err := r.db.ExecContext(ctx, query, to, time.Now().UnixMilli(), id, pq.Array(from))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *JobRepo) UpdateCounters(ctx context.Context, id string, total, succeeded, failed int) error {
	const query = `
		UPDATE validation_jobs SET total = $1, succeeded = $2, failed = $3, mtime = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, total, succeeded, failed, time.Now().UnixMilli(), id)
	return err
}

func (r *JobRepo) ListDocumentIDs(ctx context.Context, jobID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT document_id FROM job_documents WHERE job_id = $1 ORDER BY document_id`, jobID)
}

func (r *JobRepo) ListRequirementIDs(ctx context.Context, jobID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT requirement_id FROM job_requirements WHERE job_id = $1 ORDER BY requirement_id`, jobID)
}

func (r *JobRepo) listIDs(ctx context.Context, query, jobID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
