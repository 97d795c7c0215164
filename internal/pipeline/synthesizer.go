package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// Synthesizer produces the final answer. The grounded and general
// paths share one signature: a nil or empty candidate set selects the
// general path.
type Synthesizer struct {
	llm Generator
}

func NewSynthesizer(g Generator) *Synthesizer {
	return &Synthesizer{llm: g}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question string, history []Message, candidates []Candidate) (Answer, error) {
	if len(candidates) == 0 {
		return s.general(ctx, question, history)
	}
	return s.grounded(ctx, question, history, candidates)
}

// grounded answers from the provided context only and attributes the
// answer to the candidates' sources, ordered by first appearance.
func (s *Synthesizer) grounded(ctx context.Context, question string, history []Message, candidates []Candidate) (Answer, error) {
	system := fmt.Sprintf(groundedSystemFmt, joinCandidates(candidates, 0))

	var sb strings.Builder
	sb.WriteString(formatHistory(history))
	sb.WriteString("Human: ")
	sb.WriteString(question)

	out, err := s.llm.Generate(ctx, system, sb.String())
	if err != nil {
		return Answer{}, fmt.Errorf("%w: grounded answer: %v", ErrGeneration, err)
	}

	return Answer{Text: strings.TrimSpace(out), Sources: sourceList(candidates)}, nil
}

func (s *Synthesizer) general(ctx context.Context, question string, history []Message) (Answer, error) {
	var sb strings.Builder
	sb.WriteString(formatHistory(history))
	sb.WriteString("Human: ")
	sb.WriteString(question)

	out, err := s.llm.Generate(ctx, generalSystem, sb.String())
	if err != nil {
		return Answer{}, fmt.Errorf("%w: general answer: %v", ErrGeneration, err)
	}

	return Answer{Text: strings.TrimSpace(out), Sources: []string{}}, nil
}

// sourceList returns each distinct source once, in candidate order.
func sourceList(candidates []Candidate) []string {
	seen := make(map[string]bool)
	sources := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Source == "" || seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		sources = append(sources, c.Source)
	}
	return sources
}
