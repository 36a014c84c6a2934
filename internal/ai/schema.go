package ai

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateSchema checks raw model output against the template's
// declared output schema. It returns the list of violations; a nil,
// nil return means the document conforms.
func ValidateSchema(schema json.RawMessage, doc []byte) ([]string, error) {
	// A reply that is not JSON at all (prose, truncated output) is the
	// most common violation in practice. Report it as one so the
	// corrective re-prompt engages instead of failing hard.
	if !json.Valid(doc) {
		return []string{fmt.Sprintf("response is not valid JSON: %s", clipOutput(string(doc)))}, nil
	}
	schemaLoader := gojsonschema.NewBytesLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(doc)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate output schema: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}

func clipOutput(s string) string {
	const max = 120
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
