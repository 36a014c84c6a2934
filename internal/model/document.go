package model

const (
	DocumentStatusPending  = "pending"
	DocumentStatusIndexing = "indexing"
	DocumentStatusIndexed  = "indexed"
	DocumentStatusFailed   = "failed"
)

// Document is one uploaded evidence document. Text is the extracted
// plain text; Hash is its sha256, used for idempotent re-indexing.
// TextKey references the archived original upload in the file store.
// ChunkWindow/ChunkOverlap record the chunking parameters the stored
// chunk set was produced with; a parameter change invalidates it.
type Document struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Text         string `json:"text,omitempty"`
	TextKey      string `json:"text_key"`
	Hash         string `json:"hash"`
	Status       string `json:"status"`
	ChunkWindow  int    `json:"chunk_window"`
	ChunkOverlap int    `json:"chunk_overlap"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}
