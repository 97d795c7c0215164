package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"dochat/internal/middleware"
	"dochat/internal/pipeline"
	"dochat/internal/worker"
)

var ErrForbidden = errors.New("session belongs to another owner")

type Session struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

type Repository interface {
	CreateSession(ctx context.Context, ownerID, title string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, ownerID string) ([]Session, error)
	History(ctx context.Context, sessionID string, turns int) ([]pipeline.Message, error)
	CountHumanMessages(ctx context.Context, sessionID string) (int, error)
}

// Asker is the question-answering pipeline boundary.
type Asker interface {
	Ask(ctx context.Context, ownerID, sessionID, question string) pipeline.Response
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo  Repository
	asker Asker
	pub   EventPublisher
}

func NewService(repo Repository, asker Asker, pub EventPublisher) *Service {
	return &Service{repo: repo, asker: asker, pub: pub}
}

func (s *Service) CreateSession(ctx context.Context, ownerID, title string) (*Session, error) {
	if title == "" {
		title = "New chat"
	}
	return s.repo.CreateSession(ctx, ownerID, title)
}

func (s *Service) ListSessions(ctx context.Context, ownerID string) ([]Session, error) {
	return s.repo.ListSessions(ctx, ownerID)
}

// GetSession returns the session plus its full transcript, rejecting
// owners who don't hold the session.
func (s *Service) GetSession(ctx context.Context, ownerID, sessionID string) (*Session, []pipeline.Message, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.OwnerID != ownerID {
		return nil, nil, ErrForbidden
	}

	history, err := s.repo.History(ctx, sessionID, 0)
	if err != nil {
		return nil, nil, err
	}
	return sess, history, nil
}

// Send runs one question through the pipeline. The first human message
// of a session also requests a generated title, off the request path.
func (s *Service) Send(ctx context.Context, ownerID, sessionID, question string) (pipeline.Response, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return pipeline.Response{}, err
	}
	if sess.OwnerID != ownerID {
		return pipeline.Response{}, ErrForbidden
	}

	prior, err := s.repo.CountHumanMessages(ctx, sessionID)
	if err != nil {
		slog.WarnContext(ctx, "failed to count messages, skipping title generation", "error", err, "session_id", sessionID)
		prior = -1
	}

	resp := s.asker.Ask(ctx, ownerID, sessionID, question)

	if prior == 0 {
		payload, _ := json.Marshal(worker.ChatTitlePayload{
			SessionID:     sessionID,
			Message:       question,
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
		if err := s.pub.Publish(worker.TopicChatTitle, payload); err != nil {
			slog.ErrorContext(ctx, "failed to publish chat.title event", "error", err, "session_id", sessionID)
		}
	}

	return resp, nil
}
