package chat_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dochat/features/chat"
	"dochat/internal/pipeline"
	"dochat/internal/worker"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) CreateSession(ctx context.Context, ownerID, title string) (*chat.Session, error) {
	args := m.Called(ctx, ownerID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Session), args.Error(1)
}

func (m *MockRepo) GetSession(ctx context.Context, id string) (*chat.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Session), args.Error(1)
}

func (m *MockRepo) ListSessions(ctx context.Context, ownerID string) ([]chat.Session, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.Session), args.Error(1)
}

func (m *MockRepo) History(ctx context.Context, sessionID string, turns int) ([]pipeline.Message, error) {
	args := m.Called(ctx, sessionID, turns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pipeline.Message), args.Error(1)
}

func (m *MockRepo) CountHumanMessages(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

type MockAsker struct {
	mock.Mock
}

func (m *MockAsker) Ask(ctx context.Context, ownerID, sessionID, question string) pipeline.Response {
	args := m.Called(ctx, ownerID, sessionID, question)
	return args.Get(0).(pipeline.Response)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestService_SendFirstMessagePublishesTitle(t *testing.T) {
	repo := new(MockRepo)
	asker := new(MockAsker)
	pub := new(MockPublisher)
	svc := chat.NewService(repo, asker, pub)

	repo.On("GetSession", mock.Anything, "sess-1").Return(&chat.Session{ID: "sess-1", OwnerID: "42"}, nil)
	repo.On("CountHumanMessages", mock.Anything, "sess-1").Return(0, nil)
	asker.On("Ask", mock.Anything, "42", "sess-1", "What is Go?").
		Return(pipeline.Response{Answer: "A language.", Sources: []string{}})
	pub.On("Publish", worker.TopicChatTitle, mock.MatchedBy(func(body []byte) bool {
		var p worker.ChatTitlePayload
		return json.Unmarshal(body, &p) == nil && p.SessionID == "sess-1" && p.Message == "What is Go?"
	})).Return(nil)

	resp, err := svc.Send(context.Background(), "42", "sess-1", "What is Go?")
	require.NoError(t, err)
	assert.Equal(t, "A language.", resp.Answer)
	repo.AssertExpectations(t)
	asker.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_SendLaterMessageSkipsTitle(t *testing.T) {
	repo := new(MockRepo)
	asker := new(MockAsker)
	pub := new(MockPublisher)
	svc := chat.NewService(repo, asker, pub)

	repo.On("GetSession", mock.Anything, "sess-1").Return(&chat.Session{ID: "sess-1", OwnerID: "42"}, nil)
	repo.On("CountHumanMessages", mock.Anything, "sess-1").Return(3, nil)
	asker.On("Ask", mock.Anything, "42", "sess-1", "And generics?").
		Return(pipeline.Response{Answer: "Since 1.18.", Sources: []string{}})

	_, err := svc.Send(context.Background(), "42", "sess-1", "And generics?")
	require.NoError(t, err)
	pub.AssertNotCalled(t, "Publish")
}

func TestService_SendRejectsForeignSession(t *testing.T) {
	repo := new(MockRepo)
	asker := new(MockAsker)
	pub := new(MockPublisher)
	svc := chat.NewService(repo, asker, pub)

	repo.On("GetSession", mock.Anything, "sess-1").Return(&chat.Session{ID: "sess-1", OwnerID: "7"}, nil)

	_, err := svc.Send(context.Background(), "42", "sess-1", "let me in")
	assert.ErrorIs(t, err, chat.ErrForbidden)
	asker.AssertNotCalled(t, "Ask")
}

func TestService_SendUnknownSession(t *testing.T) {
	repo := new(MockRepo)
	svc := chat.NewService(repo, new(MockAsker), new(MockPublisher))

	repo.On("GetSession", mock.Anything, "nope").Return(nil, sql.ErrNoRows)

	_, err := svc.Send(context.Background(), "42", "nope", "hello")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestService_GetSessionRejectsForeignOwner(t *testing.T) {
	repo := new(MockRepo)
	svc := chat.NewService(repo, new(MockAsker), new(MockPublisher))

	repo.On("GetSession", mock.Anything, "sess-1").Return(&chat.Session{ID: "sess-1", OwnerID: "7"}, nil)

	_, _, err := svc.GetSession(context.Background(), "42", "sess-1")
	assert.ErrorIs(t, err, chat.ErrForbidden)
	repo.AssertNotCalled(t, "History")
}

func TestService_CreateSessionDefaultsTitle(t *testing.T) {
	repo := new(MockRepo)
	svc := chat.NewService(repo, new(MockAsker), new(MockPublisher))

	repo.On("CreateSession", mock.Anything, "42", "New chat").
		Return(&chat.Session{ID: "sess-1", OwnerID: "42", Title: "New chat"}, nil)

	sess, err := svc.CreateSession(context.Background(), "42", "")
	require.NoError(t, err)
	assert.Equal(t, "New chat", sess.Title)
	repo.AssertExpectations(t)
}
