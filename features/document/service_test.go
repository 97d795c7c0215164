package document_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dochat/features/document"
	"dochat/internal/ingest"
	"dochat/internal/worker"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	if args.Error(0) == nil {
		doc.ID = "doc-1"
	}
	return args.Error(0)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockRepo) ListByOwner(ctx context.Context, ownerID string) ([]document.Document, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.Document), args.Error(1)
}

func (m *MockRepo) SetStatus(ctx context.Context, documentID, status, reason string) error {
	args := m.Called(ctx, documentID, status, reason)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestService_CreateQueuesIngestion(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)
	svc := document.NewService(repo, pub)

	repo.On("Save", mock.Anything, mock.MatchedBy(func(d *document.Document) bool {
		return d.OwnerID == "42" && d.Status == ingest.StatusPending
	})).Return(nil)
	pub.On("Publish", worker.TopicIngestTask, mock.MatchedBy(func(body []byte) bool {
		var p worker.IngestTaskPayload
		return json.Unmarshal(body, &p) == nil && p.OwnerID == "42" && p.DocumentID == "doc-1" && p.Path == "/uploads/x_guide.pdf"
	})).Return(nil)

	doc, err := svc.Create(context.Background(), "42", "guide.pdf", "/uploads/x_guide.pdf")
	require.NoError(t, err)
	assert.Equal(t, ingest.StatusPending, doc.Status)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_CreatePublishFailureMarksDocument(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)
	svc := document.NewService(repo, pub)

	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", worker.TopicIngestTask, mock.Anything).Return(errors.New("nsqd unreachable"))
	repo.On("SetStatus", mock.Anything, "doc-1", ingest.StatusFailure, "failed to enqueue ingestion").Return(nil)

	doc, err := svc.Create(context.Background(), "42", "guide.pdf", "/uploads/x_guide.pdf")
	require.NoError(t, err)
	assert.Equal(t, ingest.StatusFailure, doc.Status)
	repo.AssertExpectations(t)
}

func TestService_GetRejectsForeignOwner(t *testing.T) {
	repo := new(MockRepo)
	svc := document.NewService(repo, new(MockPublisher))

	repo.On("Get", mock.Anything, "doc-1").Return(&document.Document{ID: "doc-1", OwnerID: "7"}, nil)

	_, err := svc.Get(context.Background(), "42", "doc-1")
	assert.ErrorIs(t, err, document.ErrForbidden)
}

func TestService_ReingestResetsAndQueues(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)
	svc := document.NewService(repo, pub)

	repo.On("Get", mock.Anything, "doc-1").Return(&document.Document{
		ID: "doc-1", OwnerID: "42", Path: "/uploads/x_guide.pdf",
		Status: ingest.StatusFailure, StatusReason: "embedding failed",
	}, nil)
	repo.On("SetStatus", mock.Anything, "doc-1", ingest.StatusPending, "").Return(nil)
	pub.On("Publish", worker.TopicIngestTask, mock.Anything).Return(nil)

	doc, err := svc.Reingest(context.Background(), "42", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, ingest.StatusPending, doc.Status)
	assert.Empty(t, doc.StatusReason)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_ReingestUnknownDocument(t *testing.T) {
	repo := new(MockRepo)
	svc := document.NewService(repo, new(MockPublisher))

	repo.On("Get", mock.Anything, "nope").Return(nil, sql.ErrNoRows)

	_, err := svc.Reingest(context.Background(), "42", "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
