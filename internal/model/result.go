package model

const (
	VerdictMet          = "met"
	VerdictPartiallyMet = "partially_met"
	VerdictNotMet       = "not_met"
)

const (
	ResultStatusPending   = "pending"
	ResultStatusSucceeded = "succeeded"
	ResultStatusFailed    = "failed"
)

// Citation points at the evidence a verdict relies on. ChunkIndex is -1
// when the provider saw the whole document and did not anchor to a
// specific chunk.
type Citation struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Quote      string `json:"quote"`
}

// ValidationResult is the per-requirement outcome within a job. Exactly
// one row exists per (job, requirement); re-validation overwrites only
// that row.
type ValidationResult struct {
	JobID         string     `json:"job_id"`
	RequirementID string     `json:"requirement_id"`
	Verdict       string     `json:"verdict"`
	Reasoning     string     `json:"reasoning"`
	Citations     []Citation `json:"citations"`
	Confidence    float64    `json:"confidence"`
	AttemptCount  int        `json:"attempt_count"`
	Status        string     `json:"status"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	Mtime         int64      `json:"mtime"`
}

func IsVerdict(v string) bool {
	switch v {
	case VerdictMet, VerdictPartiallyMet, VerdictNotMet:
		return true
	}
	return false
}
