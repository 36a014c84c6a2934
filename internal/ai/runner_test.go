package ai

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

var verdictSchema = json.RawMessage(`{
	"type": "object",
	"required": ["verdict", "reasoning", "confidence"],
	"properties": {
		"verdict": {"type": "string", "enum": ["met", "partially_met", "not_met", "Met", "Partially Met", "Not Met"]},
		"reasoning": {"type": "string"},
		"confidence": {"type": "number"},
		"citations": {"type": "array"}
	}
}`)

type fakeProvider struct {
	outputs []string
	calls   int
	prompts []string
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (f *fakeProvider) GenerateStructured(ctx context.Context, model string, req *GenerateRequest) (json.RawMessage, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	out := f.outputs[f.calls]
	if f.calls < len(f.outputs)-1 {
		f.calls++
	}
	return json.RawMessage(out), nil
}

func newTestRunner(p IProvider) *Runner {
	return NewRunner(p, "gen-model", "embed-model", time.Second)
}

func TestGenerateStructured_ValidOutput(t *testing.T) {
	provider := &fakeProvider{outputs: []string{
		`{"verdict": "met", "reasoning": "evidence on page 2", "confidence": 0.9, "citations": [{"document_id": "d1", "chunk_index": 3, "quote": "learners are observed"}]}`,
	}}
	runner := newTestRunner(provider)

	result, err := runner.GenerateStructured(context.Background(), &GenerateRequest{
		Prompt: "judge this",
		Schema: verdictSchema,
	})
	require.NoError(t, err)
	require.Equal(t, model.VerdictMet, result.Verdict)
	require.Equal(t, "evidence on page 2", result.Reasoning)
	require.InDelta(t, 0.9, result.Confidence, 1e-9)
	require.Len(t, result.Citations, 1)
	require.Equal(t, 3, result.Citations[0].ChunkIndex)
}

func TestGenerateStructured_SchemaCorrectionRetry(t *testing.T) {
	provider := &fakeProvider{outputs: []string{
		`{"reasoning": "missing verdict"}`,
		`{"verdict": "not_met", "reasoning": "no supporting evidence", "confidence": 0.7}`,
	}}
	runner := newTestRunner(provider)

	result, err := runner.GenerateStructured(context.Background(), &GenerateRequest{
		Prompt: "judge this",
		Schema: verdictSchema,
	})
	require.NoError(t, err)
	require.Equal(t, model.VerdictNotMet, result.Verdict)
	require.Len(t, provider.prompts, 2)
	require.Contains(t, provider.prompts[1], "violated the required output schema")
}

func TestGenerateStructured_ProseOutputGetsCorrectiveRetry(t *testing.T) {
	provider := &fakeProvider{outputs: []string{
		`I am unable to provide a JSON answer.`,
		`{"verdict": "met", "reasoning": "evidence located", "confidence": 0.8}`,
	}}
	runner := newTestRunner(provider)

	result, err := runner.GenerateStructured(context.Background(), &GenerateRequest{
		Prompt: "judge this",
		Schema: verdictSchema,
	})
	require.NoError(t, err)
	require.Equal(t, model.VerdictMet, result.Verdict)
	require.Len(t, provider.prompts, 2)
	require.Contains(t, provider.prompts[1], "not valid JSON")
}

func TestGenerateStructured_ProseOutputTwiceFailsAsSchemaViolation(t *testing.T) {
	provider := &fakeProvider{outputs: []string{
		`Sorry, I can only answer in free text.`,
		`Still free text.`,
	}}
	runner := newTestRunner(provider)

	_, err := runner.GenerateStructured(context.Background(), &GenerateRequest{
		Prompt: "judge this",
		Schema: verdictSchema,
	})
	require.ErrorIs(t, err, apperr.ErrSchemaValidation)
}

func TestGenerateStructured_SchemaFailureAfterRetry(t *testing.T) {
	provider := &fakeProvider{outputs: []string{
		`{"reasoning": "still missing verdict"}`,
		`{"reasoning": "still missing verdict"}`,
	}}
	runner := newTestRunner(provider)

	_, err := runner.GenerateStructured(context.Background(), &GenerateRequest{
		Prompt: "judge this",
		Schema: verdictSchema,
	})
	require.ErrorIs(t, err, apperr.ErrSchemaValidation)
}

func TestGenerateStructured_FencedOutputAccepted(t *testing.T) {
	provider := &fakeProvider{outputs: []string{
		"```json\n{\"verdict\": \"met\", \"reasoning\": \"ok\", \"confidence\": 1}\n```",
	}}
	runner := newTestRunner(provider)

	result, err := runner.GenerateStructured(context.Background(), &GenerateRequest{
		Prompt: "judge",
		Schema: verdictSchema,
	})
	require.NoError(t, err)
	require.Equal(t, model.VerdictMet, result.Verdict)
}

func TestNormalizeVerdict_ProviderSpellings(t *testing.T) {
	for input, want := range map[string]string{
		"Met":           model.VerdictMet,
		"Partially Met": model.VerdictPartiallyMet,
		"NOT-MET":       model.VerdictNotMet,
		"not_met":       model.VerdictNotMet,
	} {
		got, err := normalizeVerdict(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}
	_, err := normalizeVerdict("maybe")
	require.ErrorIs(t, err, apperr.ErrSchemaValidation)
}

func TestNormalizeConfidence_Scales(t *testing.T) {
	require.InDelta(t, 0.85, normalizeConfidence(85), 1e-9)
	require.InDelta(t, 0.5, normalizeConfidence(0.5), 1e-9)
	require.InDelta(t, 0.0, normalizeConfidence(-2), 1e-9)
	require.InDelta(t, 1.0, normalizeConfidence(150), 1e-9)
}

func TestValidateSchema_ReportsViolations(t *testing.T) {
	violations, err := ValidateSchema(verdictSchema, []byte(`{"verdict": "met"}`))
	require.NoError(t, err)
	require.NotEmpty(t, violations)

	// Non-JSON output is a violation, not a hard error.
	violations, err = ValidateSchema(verdictSchema, []byte(`the document meets the requirement`))
	require.NoError(t, err)
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "not valid JSON")

	violations, err = ValidateSchema(verdictSchema, []byte(`{"verdict": "met", "reasoning": "r", "confidence": 1}`))
	require.NoError(t, err)
	require.Empty(t, violations)
}
