package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// RequirementService loads requirement reference data. Requirements are
// immutable once stored.
type RequirementService struct {
	requirements RequirementStore
}

func NewRequirementService(requirements RequirementStore) *RequirementService {
	return &RequirementService{requirements: requirements}
}

type RequirementInput struct {
	UnitCode string `json:"unit_code"`
	Type     string `json:"type"`
	Text     string `json:"text"`
}

func (s *RequirementService) CreateBatch(ctx context.Context, items []RequirementInput) ([]model.Requirement, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no requirements supplied", apperr.ErrInvalid)
	}
	now := time.Now().UnixMilli()
	created := make([]model.Requirement, 0, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.UnitCode) == "" {
			return nil, fmt.Errorf("%w: requirement %d missing unit_code", apperr.ErrInvalid, i)
		}
		if !model.IsRequirementType(item.Type) {
			return nil, fmt.Errorf("%w: requirement %d has unknown type %q", apperr.ErrInvalid, i, item.Type)
		}
		if strings.TrimSpace(item.Text) == "" {
			return nil, fmt.Errorf("%w: requirement %d missing text", apperr.ErrInvalid, i)
		}
		created = append(created, model.Requirement{
			ID:       newID(),
			UnitCode: item.UnitCode,
			Type:     item.Type,
			Text:     item.Text,
			Ctime:    now,
		})
	}
	if err := s.requirements.CreateBatch(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *RequirementService) ListByUnit(ctx context.Context, unitCode string) ([]model.Requirement, error) {
	if strings.TrimSpace(unitCode) == "" {
		return nil, fmt.Errorf("%w: unit_code is required", apperr.ErrInvalid)
	}
	return s.requirements.ListByUnit(ctx, unitCode)
}
