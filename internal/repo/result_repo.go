package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

type ResultRepo struct {
	db *sql.DB
}

func NewResultRepo(db *sql.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// InitPending seeds one pending row per requirement at validation
// start. Existing rows are left untouched so a re-run never clobbers
// completed work.
func (r *ResultRepo) InitPending(ctx context.Context, jobID string, requirementIDs []string) error {
	const query = `
		INSERT INTO validation_results (job_id, requirement_id, status, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, requirement_id) DO NOTHING
	`
	now := time.Now().UnixMilli()
	for _, reqID := range requirementIDs {
		if _, err := r.db.ExecContext(ctx, query, jobID, reqID, model.ResultStatusPending, now); err != nil {
			return err
		}
	}
	return nil
}

// Save overwrites the single (job, requirement) row with the outcome.
// Sibling rows are never touched.
func (r *ResultRepo) Save(ctx context.Context, result *model.ValidationResult) error {
	citations := result.Citations
	if citations == nil {
		citations = []model.Citation{}
	}
	blob, err := json.Marshal(citations)
	if err != nil {
		return err
	}
	const query = `
		UPDATE validation_results SET
			verdict = $1, reasoning = $2, citations = $3, confidence = $4,
			attempt_count = $5, status = $6, error_kind = $7, error_message = $8, mtime = $9
		WHERE job_id = $10 AND requirement_id = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		result.Verdict, result.Reasoning, blob, result.Confidence,
		result.AttemptCount, result.Status, result.ErrorKind, result.ErrorMessage,
		time.Now().UnixMilli(), result.JobID, result.RequirementID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *ResultRepo) Get(ctx context.Context, jobID, requirementID string) (*model.ValidationResult, error) {
	const query = `
		SELECT job_id, requirement_id, verdict, reasoning, citations, confidence,
			attempt_count, status, error_kind, error_message, mtime
		FROM validation_results
		WHERE job_id = $1 AND requirement_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, jobID, requirementID)
	return scanResult(row)
}

func (r *ResultRepo) ListByJob(ctx context.Context, jobID string) ([]model.ValidationResult, error) {
	const query = `
		SELECT job_id, requirement_id, verdict, reasoning, citations, confidence,
			attempt_count, status, error_kind, error_message, mtime
		FROM validation_results
		WHERE job_id = $1
		ORDER BY requirement_id
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.ValidationResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *result)
	}
	return items, rows.Err()
}

// Counts returns the per-status tally used to rebuild progress
// snapshots after a restart.
func (r *ResultRepo) Counts(ctx context.Context, jobID string) (succeeded, failed, pending int, err error) {
	const query = `
		SELECT status, COUNT(*) FROM validation_results WHERE job_id = $1 GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return 0, 0, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, 0, err
		}
		switch status {
		case model.ResultStatusSucceeded:
			succeeded = count
		case model.ResultStatusFailed:
			failed = count
		default:
			pending += count
		}
	}
	return succeeded, failed, pending, rows.Err()
}

func scanResult(row rowScanner) (*model.ValidationResult, error) {
	var result model.ValidationResult
	var citations []byte
	err := row.Scan(&result.JobID, &result.RequirementID, &result.Verdict, &result.Reasoning,
		&citations, &result.Confidence, &result.AttemptCount, &result.Status,
		&result.ErrorKind, &result.ErrorMessage, &result.Mtime)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(citations, &result.Citations); err != nil {
		return nil, err
	}
	return &result, nil
}
