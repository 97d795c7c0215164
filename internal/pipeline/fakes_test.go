package pipeline_test

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"dochat/internal/pipeline"
)

// fakeLLM answers by prompt kind, recognized from the system
// instruction. Each kind can be scripted to fail independently.
type fakeLLM struct {
	mu      sync.Mutex
	calls   []string
	prompts map[string]string

	expansion string
	route     string
	rewrite   string
	grounded  string
	general   string

	fail map[string]error
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		prompts:  map[string]string{},
		route:    "General",
		grounded: "grounded answer",
		general:  "general answer",
		fail:     map[string]error{},
	}
}

func kindOf(system string) string {
	switch {
	case strings.Contains(system, "different versions"):
		return "expand"
	case strings.Contains(system, "routing"):
		return "route"
	case strings.Contains(system, "standalone question"):
		return "rewrite"
	case strings.Contains(system, "ONLY on the provided context"):
		return "grounded"
	default:
		return "general"
	}
}

func (f *fakeLLM) Generate(_ context.Context, system, prompt string) (string, error) {
	kind := kindOf(system)

	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.prompts[kind] = prompt
	f.mu.Unlock()

	if err := f.fail[kind]; err != nil {
		return "", err
	}
	switch kind {
	case "expand":
		return f.expansion, nil
	case "route":
		return f.route, nil
	case "rewrite":
		return f.rewrite, nil
	case "grounded":
		return f.grounded, nil
	default:
		return f.general, nil
	}
}

func (f *fakeLLM) called(kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == kind {
			return true
		}
	}
	return false
}

// wordEmbedder maps text onto a unit vector of hashed word buckets, so
// texts sharing words land close together.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 16)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,?!")))
		vec[h.Sum32()%16]++
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (e wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// fakeStore serves a fixed hit list for every search and counts calls.
type fakeStore struct {
	mu       sync.Mutex
	hits     []pipeline.Candidate
	searches int
	err      error
}

func (s *fakeStore) Upsert(context.Context, string, []pipeline.Chunk) error { return nil }

func (s *fakeStore) Search(context.Context, string, []float32, int) ([]pipeline.Candidate, error) {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *fakeStore) Drop(context.Context, string) error { return nil }

// memSessions is an in-memory session log with scriptable failures.
type memSessions struct {
	mu          sync.Mutex
	logs        map[string][]pipeline.Message
	historyErr  error
	appendErr   error
	appendCalls int
}

func newMemSessions() *memSessions {
	return &memSessions{logs: map[string][]pipeline.Message{}}
}

func (m *memSessions) History(_ context.Context, sessionID string, turns int) ([]pipeline.Message, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.logs[sessionID]
	if turns > 0 && len(log) > turns*2 {
		log = log[len(log)-turns*2:]
	}
	out := make([]pipeline.Message, len(log))
	copy(out, log)
	return out, nil
}

func (m *memSessions) Append(_ context.Context, sessionID, text string, fromAI bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if m.appendErr != nil {
		return "", m.appendErr
	}
	m.logs[sessionID] = append(m.logs[sessionID], pipeline.Message{Text: text, FromAI: fromAI, CreatedAt: time.Now()})
	return "1", nil
}
