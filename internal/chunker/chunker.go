package chunker

import (
	"fmt"
	"strings"

	"github.com/trainproof/trainproof/internal/model"
)

// Chunker splits extracted document text into fixed-size windows with a
// fixed overlap so adjacent chunks retain boundary context. Splitting is
// purely positional over the normalized text: the same input and the
// same parameters always yield the same chunk boundaries and count.
type Chunker struct {
	window  int
	overlap int
}

func New(window, overlap int) (*Chunker, error) {
	if window <= 0 {
		return nil, fmt.Errorf("chunk window must be positive")
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("chunk overlap must be in [0, window)")
	}
	return &Chunker{window: window, overlap: overlap}, nil
}

func (c *Chunker) Window() int  { return c.window }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk produces the ordered chunk list for a document. Chunk indexes
// are 0-based and contiguous. Markdown markup is stripped before
// windowing so boundaries do not depend on formatting noise.
func (c *Chunker) Chunk(documentID string, text string) []model.Chunk {
	normalized := Normalize(text)
	runes := []rune(normalized)
	if len(runes) == 0 {
		return nil
	}

	step := c.window - c.overlap
	var chunks []model.Chunk
	for start, idx := 0, 0; start < len(runes); start, idx = start+step, idx+1 {
		end := start + c.window
		if end > len(runes) {
			end = len(runes)
		}
		span := strings.TrimSpace(string(runes[start:end]))
		if span != "" {
			chunks = append(chunks, model.Chunk{
				DocumentID: documentID,
				ChunkIndex: idx,
				Text:       span,
			})
		}
		if end == len(runes) {
			break
		}
	}
	// Trimming may have dropped whitespace-only windows; reindex so the
	// stored set stays contiguous.
	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
	return chunks
}
