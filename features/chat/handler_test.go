package chat_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dochat/features/chat"
	"dochat/internal/pipeline"
)

func newTestMux(h *chat.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", h.CreateSession)
	mux.HandleFunc("GET /sessions", h.ListSessions)
	mux.HandleFunc("GET /sessions/{id}", h.GetSession)
	mux.HandleFunc("POST /sessions/{id}/messages", h.SendMessage)
	return mux
}

func TestHandler_SendMessage(t *testing.T) {
	repo := new(MockRepo)
	asker := new(MockAsker)
	pub := new(MockPublisher)
	h := chat.NewHandler(chat.NewService(repo, asker, pub))

	repo.On("GetSession", mock.Anything, "sess-1").Return(&chat.Session{ID: "sess-1", OwnerID: "42"}, nil)
	repo.On("CountHumanMessages", mock.Anything, "sess-1").Return(2, nil)
	asker.On("Ask", mock.Anything, "42", "sess-1", "What is Go?").
		Return(pipeline.Response{Answer: "A language.", Sources: []string{"guide.pdf"}})

	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", strings.NewReader(`{"message":"What is Go?"}`))
	req.Header.Set("X-Owner-ID", "42")
	rec := httptest.NewRecorder()

	newTestMux(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A language.")
	assert.Contains(t, rec.Body.String(), "guide.pdf")
}

func TestHandler_SendMessageRequiresOwner(t *testing.T) {
	h := chat.NewHandler(chat.NewService(new(MockRepo), new(MockAsker), new(MockPublisher)))

	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()

	newTestMux(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Owner-ID")
}

func TestHandler_SendMessageRequiresBody(t *testing.T) {
	h := chat.NewHandler(chat.NewService(new(MockRepo), new(MockAsker), new(MockPublisher)))

	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", strings.NewReader(`{"message":"   "}`))
	req.Header.Set("X-Owner-ID", "42")
	rec := httptest.NewRecorder()

	newTestMux(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_SendMessageForeignSession(t *testing.T) {
	repo := new(MockRepo)
	h := chat.NewHandler(chat.NewService(repo, new(MockAsker), new(MockPublisher)))

	repo.On("GetSession", mock.Anything, "sess-1").Return(&chat.Session{ID: "sess-1", OwnerID: "7"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("X-Owner-ID", "42")
	rec := httptest.NewRecorder()

	newTestMux(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_CreateSession(t *testing.T) {
	repo := new(MockRepo)
	h := chat.NewHandler(chat.NewService(repo, new(MockAsker), new(MockPublisher)))

	repo.On("CreateSession", mock.Anything, "42", "New chat").
		Return(&chat.Session{ID: "sess-1", OwnerID: "42", Title: "New chat"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{}`))
	req.Header.Set("X-Owner-ID", "42")
	rec := httptest.NewRecorder()

	newTestMux(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "sess-1")
}

func TestHandler_ListSessionsEmpty(t *testing.T) {
	repo := new(MockRepo)
	h := chat.NewHandler(chat.NewService(repo, new(MockAsker), new(MockPublisher)))

	repo.On("ListSessions", mock.Anything, "42").Return([]chat.Session(nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("X-Owner-ID", "42")
	rec := httptest.NewRecorder()

	newTestMux(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}
