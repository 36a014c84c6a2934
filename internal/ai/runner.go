package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// Runner binds one provider to its configured models and call deadline
// and enforces the uniform adapter contract: every structured output is
// schema-validated, with one corrective re-prompt before the failure
// surfaces as a schema validation error.
type Runner struct {
	provider      IProvider
	generateModel string
	embedModel    string
	timeout       time.Duration
}

func NewRunner(provider IProvider, generateModel, embedModel string, timeout time.Duration) *Runner {
	return &Runner{
		provider:      provider,
		generateModel: generateModel,
		embedModel:    embedModel,
		timeout:       timeout,
	}
}

func (r *Runner) ProviderName() string { return r.provider.Name() }
func (r *Runner) EmbedModelName() string {
	return r.embedModel
}

func (r *Runner) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()
	return r.provider.Embed(ctx, r.embedModel, text, taskType)
}

func (r *Runner) GenerateStructured(ctx context.Context, req *GenerateRequest) (*StructuredResult, error) {
	raw, err := r.generateOnce(ctx, req)
	if err != nil {
		return nil, err
	}
	violations, err := ValidateSchema(req.Schema, raw)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		// One corrective retry: re-prompt with the validation errors
		// appended, then give up.
		corrected := *req
		corrected.Prompt = fmt.Sprintf(
			"%s\n\nYour previous response was rejected because it violated the required output schema:\n- %s\nRespond again with JSON that satisfies the schema exactly.",
			req.Prompt, strings.Join(violations, "\n- "))
		raw, err = r.generateOnce(ctx, &corrected)
		if err != nil {
			return nil, err
		}
		violations, err = ValidateSchema(req.Schema, raw)
		if err != nil {
			return nil, err
		}
		if len(violations) > 0 {
			return nil, fmt.Errorf("%w: %s", apperr.ErrSchemaValidation, strings.Join(violations, "; "))
		}
	}
	return normalizeResult(raw)
}

func (r *Runner) generateOnce(ctx context.Context, req *GenerateRequest) (json.RawMessage, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()
	raw, err := r.provider.GenerateStructured(ctx, r.generateModel, req)
	if err != nil {
		return nil, err
	}
	return stripFences(raw), nil
}

func (r *Runner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return ctx, func() {}
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(raw json.RawMessage) json.RawMessage {
	clean := strings.TrimSpace(string(raw))
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return json.RawMessage(strings.TrimSpace(clean))
}

type rawVerdict struct {
	Verdict    string        `json:"verdict"`
	Reasoning  string        `json:"reasoning"`
	Confidence float64       `json:"confidence"`
	Citations  []rawCitation `json:"citations"`
}

type rawCitation struct {
	DocumentID string `json:"document_id"`
	ChunkIndex *int   `json:"chunk_index"`
	Quote      string `json:"quote"`
}

// normalizeResult maps raw provider output into the canonical result
// shape: lowercase snake_case verdicts, confidence clamped to [0,1]
// (providers reporting percentages are rescaled), citations without a
// chunk anchor get index -1.
func normalizeResult(raw json.RawMessage) (*StructuredResult, error) {
	var parsed rawVerdict
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode output: %v", apperr.ErrSchemaValidation, err)
	}
	verdict, err := normalizeVerdict(parsed.Verdict)
	if err != nil {
		return nil, err
	}
	result := &StructuredResult{
		Verdict:    verdict,
		Reasoning:  strings.TrimSpace(parsed.Reasoning),
		Confidence: normalizeConfidence(parsed.Confidence),
		Raw:        raw,
	}
	for _, c := range parsed.Citations {
		idx := -1
		if c.ChunkIndex != nil {
			idx = *c.ChunkIndex
		}
		result.Citations = append(result.Citations, model.Citation{
			DocumentID: c.DocumentID,
			ChunkIndex: idx,
			Quote:      strings.TrimSpace(c.Quote),
		})
	}
	return result, nil
}

func normalizeVerdict(v string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(v))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "met", "partially_met", "not_met":
		return normalized, nil
	}
	return "", fmt.Errorf("%w: unknown verdict %q", apperr.ErrSchemaValidation, v)
}

func normalizeConfidence(c float64) float64 {
	if c > 1 && c <= 100 {
		c = c / 100
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
