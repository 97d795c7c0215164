package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	chromemgo "github.com/philippgille/chromem-go"

	"dochat/internal/pipeline"
)

// Store is the embedded vector store backend. Collections persist
// under one directory keyed by collection id; an empty path keeps
// everything in memory, which is also what the pipeline tests use.
type Store struct {
	db *chromemgo.DB
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return &Store{db: chromemgo.NewDB()}, nil
	}
	db, err := chromemgo.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func NewMemoryStore() *Store {
	return &Store{db: chromemgo.NewDB()}
}

// noEmbed guards against chunks arriving without a vector; embedding
// belongs to the embedding provider, never to the store.
func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("chunks must arrive pre-embedded")
}

func (s *Store) Upsert(ctx context.Context, collection string, chunks []pipeline.Chunk) error {
	col, err := s.db.GetOrCreateCollection(collection, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("get or create collection %s: %w", collection, err)
	}

	docs := make([]chromemgo.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromemgo.Document{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: c.Vector,
			Metadata: map[string]string{
				"source":     c.Source,
				"docId":      c.DocumentID,
				"chunkIndex": strconv.Itoa(c.Index),
			},
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents to %s: %w", collection, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, queryVector []float32, k int) ([]pipeline.Candidate, error) {
	col := s.db.GetCollection(collection, noEmbed)
	if col == nil {
		// New owner with no documents yet.
		return nil, nil
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, queryVector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	candidates := make([]pipeline.Candidate, len(results))
	for i, r := range results {
		candidates[i] = pipeline.Candidate{
			Content: r.Content,
			Source:  r.Metadata["source"],
			Score:   r.Similarity,
		}
	}
	return candidates, nil
}

func (s *Store) Drop(ctx context.Context, collection string) error {
	if s.db.GetCollection(collection, noEmbed) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}
