package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"

	"github.com/trainproof/trainproof/internal/model"
	"github.com/trainproof/trainproof/internal/pkg/dbutil"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

type RequirementRepo struct {
	db *sql.DB
}

func NewRequirementRepo(db *sql.DB) *RequirementRepo {
	return &RequirementRepo{db: db}
}

func (r *RequirementRepo) CreateBatch(ctx context.Context, requirements []model.Requirement) error {
	if len(requirements) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(requirements))
	for _, req := range requirements {
		data = append(data, map[string]interface{}{
			"id":        req.ID,
			"unit_code": req.UnitCode,
			"type":      req.Type,
			"text":      req.Text,
			"ctime":     req.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("requirements", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *RequirementRepo) Get(ctx context.Context, id string) (*model.Requirement, error) {
	const query = `SELECT id, unit_code, type, text, ctime FROM requirements WHERE id = $1`
	var req model.Requirement
	err := r.db.QueryRowContext(ctx, query, id).Scan(&req.ID, &req.UnitCode, &req.Type, &req.Text, &req.Ctime)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequirementRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Requirement, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, unit_code, type, text, ctime FROM requirements WHERE id = ANY($1) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Requirement
	for rows.Next() {
		var req model.Requirement
		if err := rows.Scan(&req.ID, &req.UnitCode, &req.Type, &req.Text, &req.Ctime); err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

func (r *RequirementRepo) ListByUnit(ctx context.Context, unitCode string) ([]model.Requirement, error) {
	const query = `SELECT id, unit_code, type, text, ctime FROM requirements WHERE unit_code = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, unitCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Requirement
	for rows.Next() {
		var req model.Requirement
		if err := rows.Scan(&req.ID, &req.UnitCode, &req.Type, &req.Text, &req.Ctime); err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}
