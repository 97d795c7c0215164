package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nsqio/go-nsq"

	"dochat/internal/middleware"
	"dochat/internal/pipeline"
)

const titleSystem = `Generate a short title, five words at most, for a conversation that begins with the following message. Return only the title, without quotes.`

type TitleWriter interface {
	UpdateTitle(ctx context.Context, sessionID, title string) error
}

// TitleConsumer names a session from its first human message.
type TitleConsumer struct {
	llm    pipeline.Generator
	writer TitleWriter
}

func NewTitleConsumer(llm pipeline.Generator, writer TitleWriter) *TitleConsumer {
	return &TitleConsumer{llm: llm, writer: writer}
}

func (h *TitleConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload ChatTitlePayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	title, err := h.llm.Generate(ctx, titleSystem, payload.Message)
	if err != nil {
		slog.ErrorContext(ctx, "title generation failed", "error", err, "session_id", payload.SessionID)
		return err // Retry
	}

	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if title == "" {
		slog.WarnContext(ctx, "empty title generated, keeping the default", "session_id", payload.SessionID)
		return nil
	}

	if err := h.writer.UpdateTitle(ctx, payload.SessionID, title); err != nil {
		slog.ErrorContext(ctx, "failed to store session title", "error", err, "session_id", payload.SessionID)
		return err // Retry
	}

	slog.InfoContext(ctx, "session titled", "session_id", payload.SessionID, "title", title)
	return nil
}
