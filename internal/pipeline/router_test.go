package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"dochat/internal/pipeline"
)

func TestParseRoute(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want pipeline.Route
	}{
		{"exact grounded label", "RAG", pipeline.RouteGrounded},
		{"label embedded in prose", "The classification is RAG.", pipeline.RouteGrounded},
		{"general label", "General", pipeline.RouteGeneral},
		{"lowercase is not the label", "rag", pipeline.RouteGeneral},
		{"malformed output", "I cannot classify this", pipeline.RouteGeneral},
		{"empty output", "", pipeline.RouteGeneral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pipeline.ParseRoute(tc.raw))
		})
	}
}

func TestRouter_EmptyCandidatesShortCircuit(t *testing.T) {
	llm := newFakeLLM()
	r := pipeline.NewRouter(llm, 8000)

	got := r.Route(context.Background(), "hello there", nil)

	assert.Equal(t, pipeline.RouteGeneral, got)
	assert.False(t, llm.called("route"), "no classifier call without candidates")
}

func TestRouter_GroundedClassification(t *testing.T) {
	llm := newFakeLLM()
	llm.route = "RAG"
	r := pipeline.NewRouter(llm, 8000)

	got := r.Route(context.Background(), "what does the manual say?", []pipeline.Candidate{
		{Content: "manual text", Source: "manual.pdf", Score: 0.9},
	})

	assert.Equal(t, pipeline.RouteGrounded, got)
	assert.Contains(t, llm.prompts["route"], "manual text")
	assert.Contains(t, llm.prompts["route"], "what does the manual say?")
}

func TestRouter_ClassifierFailureDefaultsToGeneral(t *testing.T) {
	llm := newFakeLLM()
	llm.fail["route"] = errors.New("model overloaded")
	r := pipeline.NewRouter(llm, 8000)

	got := r.Route(context.Background(), "question", []pipeline.Candidate{
		{Content: "chunk", Source: "a.pdf", Score: 0.9},
	})

	assert.Equal(t, pipeline.RouteGeneral, got)
}

func TestRouter_ContextBudgetTruncates(t *testing.T) {
	llm := newFakeLLM()
	llm.route = "General"
	r := pipeline.NewRouter(llm, 10)

	long := "this candidate text is far longer than ten bytes"
	r.Route(context.Background(), "q", []pipeline.Candidate{{Content: long, Source: "a.pdf"}})

	assert.Contains(t, llm.prompts["route"], long[:10])
	assert.NotContains(t, llm.prompts["route"], long)
}

func TestRouter_ContextBudgetKeepsRuneBoundary(t *testing.T) {
	llm := newFakeLLM()
	llm.route = "General"
	// "é" spans bytes 2-3, so a 3-byte budget lands mid-rune.
	r := pipeline.NewRouter(llm, 3)

	r.Route(context.Background(), "q", []pipeline.Candidate{{Content: "axé résumé", Source: "a.pdf"}})

	assert.True(t, utf8.ValidString(llm.prompts["route"]))
	assert.Contains(t, llm.prompts["route"], "ax")
}

func TestRouteString(t *testing.T) {
	assert.Equal(t, "grounded", pipeline.RouteGrounded.String())
	assert.Equal(t, "general", pipeline.RouteGeneral.String())
}
