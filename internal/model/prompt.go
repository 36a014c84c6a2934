package model

import "encoding/json"

const (
	// Wildcard key parts used by the fallback lookup.
	RequirementTypeAll = "all"
	DocumentTypeBoth   = "both"
)

type GenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// PromptTemplate is one immutable version of a template keyed by
// (task type, requirement type, document type). Updates never mutate a
// row; a new version is inserted and the previous default flipped off.
type PromptTemplate struct {
	ID                int64            `json:"id"`
	TaskType          string           `json:"task_type"`
	RequirementType   string           `json:"requirement_type"`
	DocumentType      string           `json:"document_type"`
	Version           int              `json:"version"`
	IsActive          bool             `json:"is_active"`
	IsDefault         bool             `json:"is_default"`
	SystemInstruction string           `json:"system_instruction"`
	PromptText        string           `json:"prompt_text"`
	OutputSchema      json.RawMessage  `json:"output_schema"`
	GenerationConfig  GenerationConfig `json:"generation_config"`
	Ctime             int64            `json:"ctime"`
}
