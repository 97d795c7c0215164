package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"dochat/internal/ingest"
	"dochat/internal/middleware"
)

type Ingestor interface {
	Ingest(ctx context.Context, job ingest.Job) error
}

type IngestConsumer struct {
	ingestor Ingestor
}

func NewIngestConsumer(ingestor Ingestor) *IngestConsumer {
	return &IngestConsumer{ingestor: ingestor}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	job := ingest.Job{
		OwnerID:    payload.OwnerID,
		DocumentID: payload.DocumentID,
		Path:       payload.Path,
	}

	// Bound the whole job so a hung embedding call cannot stall the
	// consumer channel.
	jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	// The ingestor records FAILURE on the document row itself, so a
	// failed job is not requeued; the owner re-ingests explicitly.
	if err := h.ingestor.Ingest(jobCtx, job); err != nil {
		slog.ErrorContext(ctx, "ingestion failed",
			"document_id", payload.DocumentID,
			"owner_id", payload.OwnerID,
			"error", err)
		return nil
	}

	slog.InfoContext(ctx, "ingest task completed", "document_id", payload.DocumentID)
	return nil
}
