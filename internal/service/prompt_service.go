package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// PromptService fronts the versioned template registry. Resolution
// falls back from the exact key to the wildcard key for the task; a
// miss on both is fatal only for the requirement being processed.
type PromptService struct {
	prompts PromptStore
}

func NewPromptService(prompts PromptStore) *PromptService {
	return &PromptService{prompts: prompts}
}

func (s *PromptService) Resolve(ctx context.Context, taskType, requirementType, documentType string) (*model.PromptTemplate, error) {
	tpl, err := s.prompts.GetDefault(ctx, taskType, requirementType, documentType)
	if err == nil {
		return tpl, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}
	tpl, err = s.prompts.GetDefault(ctx, taskType, model.RequirementTypeAll, model.DocumentTypeBoth)
	if err == nil {
		return tpl, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: task=%s requirement_type=%s document_type=%s",
		apperr.ErrMissingPrompt, taskType, requirementType, documentType)
}

// Publish validates and inserts a new template version. The previous
// default for the key is flipped off in the same transaction by the
// store, so history is preserved and at most one default exists per key.
func (s *PromptService) Publish(ctx context.Context, tpl *model.PromptTemplate) (*model.PromptTemplate, error) {
	if strings.TrimSpace(tpl.TaskType) == "" {
		return nil, fmt.Errorf("%w: task_type is required", apperr.ErrInvalid)
	}
	if tpl.RequirementType != model.RequirementTypeAll && !model.IsRequirementType(tpl.RequirementType) {
		return nil, fmt.Errorf("%w: unknown requirement_type %q", apperr.ErrInvalid, tpl.RequirementType)
	}
	if strings.TrimSpace(tpl.DocumentType) == "" {
		tpl.DocumentType = model.DocumentTypeBoth
	}
	if strings.TrimSpace(tpl.PromptText) == "" {
		return nil, fmt.Errorf("%w: prompt_text is required", apperr.ErrInvalid)
	}
	if !json.Valid(tpl.OutputSchema) {
		return nil, fmt.Errorf("%w: output_schema is not valid JSON", apperr.ErrInvalid)
	}
	return s.prompts.Publish(ctx, tpl)
}

func (s *PromptService) ListVersions(ctx context.Context, taskType, requirementType, documentType string) ([]model.PromptTemplate, error) {
	return s.prompts.ListVersions(ctx, taskType, requirementType, documentType)
}

// Render fills the template's named placeholders from the requirement.
func Render(tpl *model.PromptTemplate, req *model.Requirement) string {
	replacer := strings.NewReplacer(
		"{{requirement}}", req.Text,
		"{{requirement_type}}", req.Type,
		"{{unit_code}}", req.UnitCode,
	)
	return replacer.Replace(tpl.PromptText)
}
