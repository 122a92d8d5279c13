package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"unirag/internal/domain"
)

// Split slides a window of size characters over text, advancing by
// size-overlap each step. The last window may be shorter than size.
// Characters are runes, so multi-byte text is never cut mid-character.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks, nil
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", domain.ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || size-overlap <= 0 {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidChunkConfig, size, overlap)
	}
	return nil
}

// WindowChunker turns source documents into corpus chunks using Split.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker fails fast when the window would never advance.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(source, content string) ([]domain.Chunk, error) {
	parts, err := Split(content, c.size, c.overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, 0, len(parts))
	for seq, text := range parts {
		chunks = append(chunks, domain.Chunk{
			ID:       generateChunkID(source, seq),
			Text:     text,
			Source:   source,
			Sequence: seq,
		})
	}
	return chunks, nil
}

func generateChunkID(source string, seq int) string {
	data := fmt.Sprintf("%s#%d", source, seq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
