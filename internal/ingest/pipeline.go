package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"dochat/internal/config"
	"dochat/internal/pipeline"
	"dochat/internal/text"
	"dochat/internal/vector"
)

// Document lifecycle states. Every ingestion run ends in SUCCESS or
// FAILURE; nothing stays PROCESSING.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFailure    = "FAILURE"
)

// Job is one ingestion request, usually decoded off the queue.
type Job struct {
	OwnerID    string
	DocumentID string
	Path       string
}

// DocumentStore records lifecycle transitions on the document row.
type DocumentStore interface {
	SetStatus(ctx context.Context, documentID, status, reason string) error
}

// Ingestor runs the load, split, embed, upsert sequence for one chunk
// profile. The per-owner profile writes each owner's collection
// incrementally; the bulk profile drops and rebuilds the shared one.
type Ingestor struct {
	loader   Loader
	splitter *text.Splitter
	embedder pipeline.Embedder
	store    pipeline.VectorStore
	docs     DocumentStore
	profile  config.ChunkProfile
}

func NewIngestor(loader Loader, embedder pipeline.Embedder, store pipeline.VectorStore, docs DocumentStore, profile config.ChunkProfile) (*Ingestor, error) {
	splitter, err := text.NewSplitter(profile.ChunkSize, profile.Overlap)
	if err != nil {
		return nil, err
	}
	return &Ingestor{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		docs:     docs,
		profile:  profile,
	}, nil
}

// Ingest processes one job. Any error, including a panic in a
// downstream provider, lands as a FAILURE transition with the reason
// recorded; the caller never needs to clean up after a crashed run.
func (ing *Ingestor) Ingest(ctx context.Context, job Job) (err error) {
	if err := ing.docs.SetStatus(ctx, job.DocumentID, StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark document %s processing: %w", job.DocumentID, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panicked: %v", r)
		}
		if err == nil {
			return
		}
		if serr := ing.docs.SetStatus(ctx, job.DocumentID, StatusFailure, err.Error()); serr != nil {
			slog.ErrorContext(ctx, "failed to record ingestion failure",
				"document_id", job.DocumentID,
				"error", serr)
		}
	}()

	raw, err := ing.loader.Load(job.Path)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("document %s has no extractable text", job.DocumentID)
	}

	parts := ing.splitter.Split(raw)
	vectors, err := ing.embedder.EmbedBatch(ctx, parts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(parts), err)
	}
	if len(vectors) != len(parts) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(parts), len(vectors))
	}

	collection := vector.CollectionName(ing.profile.Scope(), job.OwnerID)
	if ing.profile.Rebuild {
		if err := ing.store.Drop(ctx, collection); err != nil {
			return fmt.Errorf("drop collection %s: %w", collection, err)
		}
	}

	source := filepath.Base(job.Path)
	chunks := make([]pipeline.Chunk, len(parts))
	for i, content := range parts {
		chunks[i] = pipeline.Chunk{
			ID:         pipeline.ChunkID(collection, source, i, content),
			Content:    content,
			Vector:     vectors[i],
			Source:     source,
			DocumentID: job.DocumentID,
			Index:      i,
		}
	}

	if err := ing.store.Upsert(ctx, collection, chunks); err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}

	if err := ing.docs.SetStatus(ctx, job.DocumentID, StatusSuccess, ""); err != nil {
		return fmt.Errorf("mark document %s success: %w", job.DocumentID, err)
	}

	slog.InfoContext(ctx, "document ingested",
		"document_id", job.DocumentID,
		"collection", collection,
		"chunks", len(chunks))
	return nil
}
