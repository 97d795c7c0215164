package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chunk is an embedded passage bound for the vector store.
type Chunk struct {
	ID         string
	Content    string
	Vector     []float32
	Source     string
	DocumentID string
	Index      int
}

// Candidate is one retrieved chunk with the best similarity score
// observed for it.
type Candidate struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// Message is one entry of a conversation session.
type Message struct {
	Text      string    `json:"text"`
	FromAI    bool      `json:"from_ai"`
	CreatedAt time.Time `json:"created_at"`
}

// Answer is the synthesizer output: the generated text plus the ordered
// source references it drew on (empty on the general path).
type Answer struct {
	Text    string
	Sources []string
}

// Response is the contract returned to the serving layer by Ask.
type Response struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, collection string, chunks []Chunk) error
	// Search returns up to k candidates by descending similarity. A
	// collection that does not exist yet yields an empty result, not an
	// error.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]Candidate, error)
	Drop(ctx context.Context, collection string) error
}

// SessionStore is the persisted conversation log. History returns the
// most recent turns in chronological order; turns <= 0 means the full
// history.
type SessionStore interface {
	History(ctx context.Context, sessionID string, turns int) ([]Message, error)
	Append(ctx context.Context, sessionID, text string, fromAI bool) (string, error)
}

// ChunkID derives a stable id from the chunk's identity, so
// re-ingesting the same document upserts rather than duplicates.
func ChunkID(collection, source string, index int, content string) string {
	name := fmt.Sprintf("%s|%s|%d|%s", collection, source, index, content)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
