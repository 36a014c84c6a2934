package model

const (
	JobStatusPending    = "pending"
	JobStatusIndexing   = "indexing"
	JobStatusValidating = "validating"
	JobStatusFinalized  = "finalized"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

const (
	StrategyWholeContext = "whole_context"
	StrategyRetrieval    = "retrieval"
)

// ValidationJob is one end-to-end validation run over a document set
// against a requirement set. Provider and strategy are fixed at
// creation time and never read from ambient configuration mid-run.
type ValidationJob struct {
	ID           string `json:"id"`
	Provider     string `json:"provider"`
	Strategy     string `json:"strategy"`
	DocumentType string `json:"document_type"`
	Status       string `json:"status"`
	Total        int    `json:"total"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}

// JobStatusSnapshot is the point-in-time view handed to pollers.
// Pending is always Total - Succeeded - Failed.
type JobStatusSnapshot struct {
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Pending   int    `json:"pending"`
}
