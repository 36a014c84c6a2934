package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrConflict    = errors.New("conflict")
	ErrTooMany     = errors.New("too many requests")
	ErrInternal    = errors.New("internal")
	ErrUnavailable = errors.New("provider not configured")

	// Validation pipeline taxonomy.
	ErrTransientProvider = errors.New("transient provider error")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrSchemaValidation  = errors.New("model output failed schema validation")
	ErrMissingPrompt     = errors.New("no prompt template resolved")
	ErrIndexingFailure   = errors.New("document indexing failed")
	ErrJobPrerequisite   = errors.New("job prerequisites not met")
)

// ErrJobNotFinalized narrows ErrJobPrerequisite for operations that
// only apply to finalized jobs, so the API can report it distinctly.
var ErrJobNotFinalized = fmt.Errorf("job not finalized: %w", ErrJobPrerequisite)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable reports whether the validation loop should retry the call
// with backoff. Deadline expiry on a model call is treated the same way
// as a provider hiccup.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTransientProvider) || errors.Is(err, ErrRateLimited) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Kind maps an error onto its persisted taxonomy name. Stored with each
// failed result so the failure can be diagnosed offline.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, ErrSchemaValidation):
		return "schema_validation"
	case errors.Is(err, ErrMissingPrompt):
		return "missing_prompt"
	case errors.Is(err, ErrIndexingFailure):
		return "indexing_failure"
	case errors.Is(err, ErrJobPrerequisite):
		return "job_prerequisite"
	case errors.Is(err, ErrTransientProvider), errors.Is(err, context.DeadlineExceeded):
		return "transient_provider"
	default:
		return "internal"
	}
}
