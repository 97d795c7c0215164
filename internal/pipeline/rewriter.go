package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrGeneration = errors.New("llm generation failed")

// Rewriter condenses a follow-up question plus recent history into a
// standalone question for the grounded path.
type Rewriter struct {
	llm Generator
}

func NewRewriter(g Generator) *Rewriter {
	return &Rewriter{llm: g}
}

// Rewrite resolves references to earlier turns. With no history the
// question is already standalone and no LLM call is made.
func (rw *Rewriter) Rewrite(ctx context.Context, question string, history []Message) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	var sb strings.Builder
	sb.WriteString(formatHistory(history))
	sb.WriteString("Follow up question: ")
	sb.WriteString(question)

	out, err := rw.llm.Generate(ctx, condenseSystem, sb.String())
	if err != nil {
		return "", fmt.Errorf("%w: condense question: %v", ErrGeneration, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return question, nil
	}
	return out, nil
}

// formatHistory renders turns as a transcript, oldest first.
func formatHistory(history []Message) string {
	var sb strings.Builder
	for _, m := range history {
		if m.FromAI {
			sb.WriteString("AI: ")
		} else {
			sb.WriteString("Human: ")
		}
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
