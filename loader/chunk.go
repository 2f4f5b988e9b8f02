package loader

import (
	"fmt"

	"docchat/types"
)

// Chunker cuts page text into fixed-size character windows that overlap, so a passage spanning a
// window boundary is still retrievable from at least one chunk.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if err := checkChunkConfig(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

func (c *Chunker) Split(text string) []string {
	chunks, _ := Split(text, c.size, c.overlap)
	return chunks
}

// Split returns windows of at most size runes; consecutive windows share exactly overlap runes.
// Text shorter than size comes back as a single chunk and empty text yields none.
func Split(text string, size, overlap int) ([]string, error) {
	if err := checkChunkConfig(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

func checkChunkConfig(size, overlap int) error {
	if size <= 0 || overlap < 0 || overlap >= size {
		return fmt.Errorf("size=%d overlap=%d: %w", size, overlap, types.ErrInvalidChunkConfig)
	}
	return nil
}
