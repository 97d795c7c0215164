package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

type RetrieverOptions struct {
	// Variants is the number of alternative phrasings requested from
	// the LLM.
	Variants int
	// TopK is the number of hits fetched per phrasing.
	TopK int
	// IncludeOriginal prepends the original question to the phrasings.
	IncludeOriginal bool
}

// Retriever expands a question into multiple phrasings, searches the
// collection with each, and merges the hits into one deduplicated
// candidate set.
type Retriever struct {
	embedder Embedder
	store    VectorStore
	llm      Generator
	opts     RetrieverOptions
}

func NewRetriever(e Embedder, s VectorStore, g Generator, opts RetrieverOptions) *Retriever {
	return &Retriever{embedder: e, store: s, llm: g, opts: opts}
}

// Retrieve returns the candidate set for question, ordered by
// descending score. Duplicate chunks across phrasings are merged,
// keeping the best score observed. An empty collection (new owner)
// yields an empty set, not an error.
func (r *Retriever) Retrieve(ctx context.Context, collection, question string) ([]Candidate, error) {
	queries := r.expand(ctx, question)

	seen := make(map[string]int)
	var merged []Candidate
	for _, q := range queries {
		vec, err := r.embedder.Embed(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}

		hits, err := r.store.Search(ctx, collection, vec, r.opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("search collection %s: %w", collection, err)
		}

		for _, h := range hits {
			key := h.Source + "\x00" + h.Content
			if i, ok := seen[key]; ok {
				if h.Score > merged[i].Score {
					merged[i].Score = h.Score
				}
				continue
			}
			seen[key] = len(merged)
			merged = append(merged, h)
		}
	}

	// Stable: equal scores keep first-seen order.
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged, nil
}

// expand asks the LLM for alternative phrasings. A failed expansion
// call degrades to the original question alone rather than failing the
// turn.
func (r *Retriever) expand(ctx context.Context, question string) []string {
	queries := make([]string, 0, r.opts.Variants+1)
	if r.opts.IncludeOriginal {
		queries = append(queries, question)
	}

	raw, err := r.llm.Generate(ctx, fmt.Sprintf(multiQuerySystemFmt, r.opts.Variants), question)
	if err != nil {
		slog.WarnContext(ctx, "query expansion failed, retrieving with the original question only", "error", err)
		if len(queries) == 0 {
			queries = append(queries, question)
		}
		return queries
	}

	count := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		queries = append(queries, line)
		count++
		if count == r.opts.Variants {
			break
		}
	}

	if len(queries) == 0 {
		queries = append(queries, question)
	}
	return queries
}
