package text

import (
	"errors"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid splitter configuration")

// Separator priority: paragraph break, line break, sentence terminator,
// space. Raw character slicing is the last resort.
var separators = []string{"\n\n", "\n", ".", " "}

// Splitter cuts document text into chunks of at most ChunkSize bytes.
// Consecutive chunks share exactly Overlap bytes: each chunk after the
// first begins Overlap bytes before the previous chunk ends, so the
// original text can be reconstructed by dropping the first Overlap
// bytes of every chunk after the first.
type Splitter struct {
	chunkSize int
	overlap   int
}

func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("chunk size must be positive"))
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, errors.Join(ErrInvalidConfig, errors.New("overlap must be non-negative and smaller than chunk size"))
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split returns the ordered chunks of text. The final chunk may be
// shorter than the chunk size; no chunk is ever longer.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	start := 0
	for {
		if len(text)-start <= s.chunkSize {
			chunks = append(chunks, text[start:])
			return chunks
		}

		window := text[start : start+s.chunkSize]
		end := start + s.cut(window)
		chunks = append(chunks, text[start:end])
		start = end - s.overlap
	}
}

// cut picks the offset at which the current chunk ends. It prefers the
// last separator occurrence inside the window, walking the priority
// list, and falls back to a raw slice at the chunk boundary when no
// separator leaves room to advance past the carried overlap.
func (s *Splitter) cut(window string) int {
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		end := idx + len(sep)
		// The next chunk starts overlap bytes back; a cut inside the
		// overlapped region would never advance.
		if end > s.overlap {
			return end
		}
	}
	return len(window)
}
