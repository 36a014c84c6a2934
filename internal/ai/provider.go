package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/trainproof/trainproof/internal/model"
)

var ErrUnavailable = errors.New("ai provider not configured")

// Embedding task types, passed through to providers that distinguish
// between indexing and query embeddings.
const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

// GenerateRequest is the provider-independent structured generation
// call: instruction, rendered prompt, supporting context and the JSON
// schema the output must satisfy.
type GenerateRequest struct {
	SystemInstruction string
	Prompt            string
	Context           string
	Schema            json.RawMessage
	Config            model.GenerationConfig
}

// StructuredResult is the normalized verdict every provider adapter
// must map into, regardless of its native output shape.
type StructuredResult struct {
	Verdict    string           `json:"verdict"`
	Reasoning  string           `json:"reasoning"`
	Citations  []model.Citation `json:"citations"`
	Confidence float64          `json:"confidence"`
	Raw        json.RawMessage  `json:"raw,omitempty"`
}

// IProvider is one interchangeable model backend: an embedding
// capability and a structured generation capability. GenerateStructured
// returns the raw model output; schema validation and normalization
// happen in the Runner so every backend is held to the same contract.
type IProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
	GenerateStructured(ctx context.Context, model string, req *GenerateRequest) (json.RawMessage, error)
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai provider name is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
