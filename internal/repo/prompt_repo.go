package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// PromptRepo is the versioned template registry. Rows are append-only:
// publishing a new version flips the previous default off and inserts
// the new row in one transaction, so "at most one active default per
// key" holds transactionally (and is backed by a partial unique index).
type PromptRepo struct {
	db *sql.DB
}

func NewPromptRepo(db *sql.DB) *PromptRepo {
	return &PromptRepo{db: db}
}

const promptColumns = `id, task_type, requirement_type, document_type, version,
	is_active, is_default, system_instruction, prompt_text, output_schema, generation_config, ctime`

// GetDefault returns the single active default template for the exact
// key, or ErrNotFound. Fallback across keys is the caller's concern.
func (r *PromptRepo) GetDefault(ctx context.Context, taskType, requirementType, documentType string) (*model.PromptTemplate, error) {
	query := `
		SELECT ` + promptColumns + `
		FROM prompts
		WHERE task_type = $1 AND requirement_type = $2 AND document_type = $3
			AND is_active AND is_default
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, taskType, requirementType, documentType)
	return scanPrompt(row)
}

// Publish inserts a new version for the key and demotes the previous
// default in the same transaction. The stored rows are never mutated
// beyond the default flag, preserving full history.
func (r *PromptRepo) Publish(ctx context.Context, tpl *model.PromptTemplate) (*model.PromptTemplate, error) {
	genConfig, err := json.Marshal(tpl.GenerationConfig)
	if err != nil {
		return nil, err
	}
	if len(tpl.OutputSchema) == 0 {
		return nil, fmt.Errorf("%w: output schema is required", apperr.ErrInvalid)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM prompts
		WHERE task_type = $1 AND requirement_type = $2 AND document_type = $3
	`, tpl.TaskType, tpl.RequirementType, tpl.DocumentType).Scan(&version)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE prompts SET is_default = FALSE
		WHERE task_type = $1 AND requirement_type = $2 AND document_type = $3
			AND is_active AND is_default
	`, tpl.TaskType, tpl.RequirementType, tpl.DocumentType)
	if err != nil {
		return nil, err
	}

	saved := *tpl
	saved.Version = version
	saved.IsActive = true
	saved.IsDefault = true
	saved.Ctime = time.Now().UnixMilli()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO prompts (task_type, requirement_type, document_type, version,
			is_active, is_default, system_instruction, prompt_text, output_schema, generation_config, ctime)
		VALUES ($1, $2, $3, $4, TRUE, TRUE, $5, $6, $7, $8, $9)
		RETURNING id
	`, saved.TaskType, saved.RequirementType, saved.DocumentType, saved.Version,
		saved.SystemInstruction, saved.PromptText, []byte(saved.OutputSchema), genConfig, saved.Ctime,
	).Scan(&saved.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListVersions returns the full history for a key, newest first.
func (r *PromptRepo) ListVersions(ctx context.Context, taskType, requirementType, documentType string) ([]model.PromptTemplate, error) {
	query := `
		SELECT ` + promptColumns + `
		FROM prompts
		WHERE task_type = $1 AND requirement_type = $2 AND document_type = $3
		ORDER BY version DESC
	`
	rows, err := r.db.QueryContext(ctx, query, taskType, requirementType, documentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.PromptTemplate
	for rows.Next() {
		tpl, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *tpl)
	}
	return items, rows.Err()
}

func scanPrompt(row rowScanner) (*model.PromptTemplate, error) {
	var tpl model.PromptTemplate
	var schema, genConfig []byte
	err := row.Scan(&tpl.ID, &tpl.TaskType, &tpl.RequirementType, &tpl.DocumentType, &tpl.Version,
		&tpl.IsActive, &tpl.IsDefault, &tpl.SystemInstruction, &tpl.PromptText, &schema, &genConfig, &tpl.Ctime)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tpl.OutputSchema = json.RawMessage(schema)
	if err := json.Unmarshal(genConfig, &tpl.GenerationConfig); err != nil {
		return nil, fmt.Errorf("decode generation config: %w", err)
	}
	return &tpl, nil
}
