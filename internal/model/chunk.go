package model

// Chunk is a bounded span of a document's text plus its embedding,
// the unit of retrieval. ChunkIndex is 0-based and contiguous within
// a document.
type Chunk struct {
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// ChunkMatch is a retrieval hit with its cosine similarity score.
type ChunkMatch struct {
	Chunk
	Similarity float64 `json:"similarity"`
}
