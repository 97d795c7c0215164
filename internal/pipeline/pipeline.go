package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"dochat/internal/vector"
)

// DegradedAnswer is the fixed response returned when a turn fails
// internally. Ask never propagates an error past its boundary.
const DegradedAnswer = "I'm sorry, an internal error occurred. Please try again."

type Options struct {
	// HistoryWindow bounds the turns loaded per question; <= 0 loads
	// the full history.
	HistoryWindow int
	// Scope selects per-owner or shared collections.
	Scope vector.Scope
}

// Pipeline sequences one question through retrieval, routing,
// rewriting and synthesis, and owns the session log writes for the
// turn.
type Pipeline struct {
	retriever *Retriever
	router    *Router
	rewriter  *Rewriter
	synth     *Synthesizer
	sessions  SessionStore
	opts      Options
}

func New(retriever *Retriever, router *Router, rewriter *Rewriter, synth *Synthesizer, sessions SessionStore, opts Options) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		router:    router,
		rewriter:  rewriter,
		synth:     synth,
		sessions:  sessions,
		opts:      opts,
	}
}

// Ask answers one question for a session. The user's message is
// persisted before any model call so a failed turn is never lost; the
// assistant's message is persisted only once an answer exists.
func (p *Pipeline) Ask(ctx context.Context, ownerID, sessionID, question string) Response {
	// History is read before the append so it never contains the
	// question being asked.
	history, err := p.sessions.History(ctx, sessionID, p.opts.HistoryWindow)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load session history", "error", err, "session_id", sessionID)
		return Response{Answer: DegradedAnswer, Sources: []string{}}
	}

	if _, err := p.sessions.Append(ctx, sessionID, question, false); err != nil {
		slog.ErrorContext(ctx, "failed to persist user message", "error", err, "session_id", sessionID)
		return Response{Answer: DegradedAnswer, Sources: []string{}}
	}

	collection := vector.CollectionName(p.opts.Scope, ownerID)
	answer, err := p.answer(ctx, collection, question, history)
	if err != nil {
		slog.ErrorContext(ctx, "turn failed, returning degraded answer", "error", err, "session_id", sessionID)
		return Response{Answer: DegradedAnswer, Sources: []string{}}
	}

	if _, err := p.sessions.Append(ctx, sessionID, answer.Text, true); err != nil {
		// The answer still goes out; the log is just missing the reply.
		slog.ErrorContext(ctx, "failed to persist assistant message", "error", err, "session_id", sessionID)
	}

	return Response{Answer: answer.Text, Sources: answer.Sources}
}

func (p *Pipeline) answer(ctx context.Context, collection, question string, history []Message) (Answer, error) {
	candidates, err := p.retriever.Retrieve(ctx, collection, question)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve candidates: %w", err)
	}

	route := p.router.Route(ctx, question, candidates)
	slog.InfoContext(ctx, "question routed", "route", route.String(), "candidates", len(candidates))

	if route == RouteGeneral {
		return p.synth.Synthesize(ctx, question, history, nil)
	}

	standalone, err := p.rewriter.Rewrite(ctx, question, history)
	if err != nil {
		slog.WarnContext(ctx, "condense failed, using the original question", "error", err)
		standalone = question
	}

	// The grounded context is re-retrieved with the standalone
	// question; the pre-route candidate set served routing only.
	fresh, err := p.retriever.Retrieve(ctx, collection, standalone)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve with standalone question: %w", err)
	}

	return p.synth.Synthesize(ctx, standalone, history, fresh)
}
