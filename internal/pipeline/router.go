package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Route is the classification of one question.
type Route int

const (
	// RouteGeneral answers from general knowledge; the default
	// whenever classification is ambiguous or fails.
	RouteGeneral Route = iota
	// RouteGrounded restricts the answer to retrieved document context.
	RouteGrounded
)

func (r Route) String() string {
	if r == RouteGrounded {
		return "grounded"
	}
	return "general"
}

// groundedMarker is the label the classifier must emit for the
// grounded path. Matching is a case-sensitive substring check.
const groundedMarker = "RAG"

// ParseRoute maps raw classifier output onto a Route. Anything that
// does not contain the grounded marker, malformed output included,
// defaults to General.
func ParseRoute(raw string) Route {
	if strings.Contains(raw, groundedMarker) {
		return RouteGrounded
	}
	return RouteGeneral
}

// Router classifies a question as document-grounded or general given
// the retrieved candidate set.
type Router struct {
	llm Generator
	// budget bounds the candidate text presented to the classifier, in
	// bytes; overflow is truncated, never an error.
	budget int
}

func NewRouter(g Generator, contextBudget int) *Router {
	return &Router{llm: g, budget: contextBudget}
}

func (r *Router) Route(ctx context.Context, question string, candidates []Candidate) Route {
	// Nothing retrieved means nothing to judge relevance against.
	if len(candidates) == 0 {
		return RouteGeneral
	}

	contextText := joinCandidates(candidates, r.budget)
	out, err := r.llm.Generate(ctx, routerSystem, fmt.Sprintf(routerPromptFmt, contextText, question))
	if err != nil {
		slog.WarnContext(ctx, "route classification failed, defaulting to general", "error", err)
		return RouteGeneral
	}
	return ParseRoute(out)
}

// joinCandidates concatenates candidate contents, truncated to at most
// budget bytes when budget is positive. The cut never splits a rune.
func joinCandidates(candidates []Candidate, budget int) string {
	var sb strings.Builder
	for i, c := range candidates {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Content)
	}
	s := sb.String()
	if budget > 0 && len(s) > budget {
		cut := budget
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut]
	}
	return s
}
