package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"dochat/internal/ingest"
	"dochat/internal/middleware"
	"dochat/internal/worker"
)

var ErrForbidden = errors.New("document belongs to another owner")

type Document struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	Filename     string `json:"filename"`
	Path         string `json:"-"`
	Status       string `json:"status"`
	StatusReason string `json:"status_reason,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Document, error)
	SetStatus(ctx context.Context, documentID, status, reason string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  EventPublisher
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

// Create registers an uploaded file and queues its ingestion. The
// document row is the source of truth for progress; the queue only
// carries the work order.
func (s *Service) Create(ctx context.Context, ownerID, filename, path string) (*Document, error) {
	doc := &Document{
		OwnerID:  ownerID,
		Filename: filename,
		Path:     path,
		Status:   ingest.StatusPending,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, doc); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest.task event", "error", err, "document_id", doc.ID)
		if serr := s.repo.SetStatus(ctx, doc.ID, ingest.StatusFailure, "failed to enqueue ingestion"); serr != nil {
			slog.ErrorContext(ctx, "failed to record enqueue failure", "error", serr, "document_id", doc.ID)
		}
		doc.Status = ingest.StatusFailure
		doc.StatusReason = "failed to enqueue ingestion"
		return doc, nil
	}

	slog.InfoContext(ctx, "published ingest.task event", "document_id", doc.ID, "filename", filename)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]Document, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Reingest re-queues an existing document, typically after a FAILURE.
func (s *Service) Reingest(ctx context.Context, ownerID, id string) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	if err := s.repo.SetStatus(ctx, doc.ID, ingest.StatusPending, ""); err != nil {
		return nil, err
	}
	doc.Status = ingest.StatusPending
	doc.StatusReason = ""

	if err := s.enqueue(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) enqueue(ctx context.Context, doc *Document) error {
	payload, _ := json.Marshal(worker.IngestTaskPayload{
		OwnerID:       doc.OwnerID,
		DocumentID:    doc.ID,
		Path:          doc.Path,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	return s.pub.Publish(worker.TopicIngestTask, payload)
}
