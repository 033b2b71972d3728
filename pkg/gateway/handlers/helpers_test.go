package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/gateway/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// queueExtractor pops one prepared field map per patient message.
type queueExtractor struct {
	mu    sync.Mutex
	queue []intake.FieldMap
}

func (q *queueExtractor) Extract(ctx context.Context, text string, section intake.Section) (intake.FieldMap, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return intake.FieldMap{}, nil
	}
	fields := q.queue[0]
	q.queue = q.queue[1:]
	return fields, nil
}

type stubResponder struct{}

func (stubResponder) Respond(ctx context.Context, userText string, section intake.Section, record intake.Record, history []intake.Turn) (string, error) {
	return "noted", nil
}

type failingResponder struct{}

func (failingResponder) Respond(ctx context.Context, userText string, section intake.Section, record intake.Record, history []intake.Turn) (string, error) {
	return "", errors.New("model unavailable")
}

// newTestRegistry builds a registry whose interviews advance through
// demographics and visit reason on the first two extractions.
func newTestRegistry(responder intake.Responder) *registry.Registry {
	extractor := &queueExtractor{queue: []intake.FieldMap{
		{"full_name": "Ada Lovelace", "date_of_birth": "1990-12-10", "phone": "555-0101"},
		{"chief_complaint": "persistent cough"},
	}}
	return registry.New(registry.Config{
		Logger: discardLogger(),
		NewInterview: func(sessionID string) *intake.Interview {
			return intake.NewInterview(intake.Config{
				SessionID: sessionID,
				Extractor: extractor,
				Responder: responder,
				Logger:    discardLogger(),
			})
		},
	})
}

type fakeRooms struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (f *fakeRooms) CreateRoom(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeRooms) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTasks struct {
	mu      sync.Mutex
	startOK bool
	started []string
	stopped []string
}

func (f *fakeTasks) Start(sessionID, roomURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, sessionID+"@"+roomURL)
	return f.startOK
}

func (f *fakeTasks) Stop(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, sessionID)
	return true
}

func (f *fakeTasks) startedSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func (f *fakeTasks) stoppedSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stopped...)
}

// newTestRouter mounts the handlers the way the server package does.
func newTestRouter(h SessionsHandler, live LiveHandler) http.Handler {
	r := chi.NewRouter()
	r.NotFound(NotFoundHandler{}.ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler{}.ServeHTTP)
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Get("/room", h.Room)
			r.Patch("/status", h.UpdateStatus)
			r.Get("/results", h.Results)
			r.Get("/greeting", h.Greeting)
			r.Post("/chat", h.Chat)
			r.Get("/live", live.ServeHTTP)
		})
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

type errorEnvelope struct {
	Error struct {
		Type      string `json:"type"`
		Message   string `json:"message"`
		Param     string `json:"param"`
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	decodeBody(t, rec, &env)
	if env.Error.Type == "" {
		t.Fatalf("response %q has no error envelope", rec.Body.String())
	}
	return env
}
