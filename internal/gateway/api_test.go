// ABOUTME: Tests for the conversation endpoint and its SSE contract
// ABOUTME: Covers prompt injection, malformed input, streaming, failures, and audit

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sureline/assist-gateway/internal/chat"
	"github.com/sureline/assist-gateway/internal/config"
	"github.com/sureline/assist-gateway/internal/dedupe"
	"github.com/sureline/assist-gateway/internal/outbox"
	"github.com/sureline/assist-gateway/internal/store"
	"github.com/sureline/assist-gateway/internal/upstream"
)

// fakeCompleter captures the forwarded history and returns a scripted stream.
type fakeCompleter struct {
	gotHistory []chat.Message
	stream     upstream.Stream
	err        error
}

func (c *fakeCompleter) Complete(_ context.Context, msgs []chat.Message) (upstream.Stream, error) {
	c.gotHistory = msgs
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

// blockingCompleter never answers until the call's context expires.
type blockingCompleter struct{}

func (c *blockingCompleter) Complete(ctx context.Context, _ []chat.Message) (upstream.Stream, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestGateway(t *testing.T, completer upstream.Completer) (*Gateway, *http.ServeMux) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cache := dedupe.New(time.Minute, 100)
	t.Cleanup(cache.Close)

	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, nil))

	gw := &Gateway{
		config: &config.Config{
			Model: config.ModelConfig{
				Model:          "assist-test-model",
				RequestTimeout: 2 * time.Second,
			},
		},
		store:     st,
		completer: completer,
		replayer:  outbox.NewReplayer(st, cache, logger),
		logger:    logger,
		dedupe:    cache,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	require.NoError(t, gw.registerAPIRoutes(mux))
	return gw, mux
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// sseEvent is one parsed Server-Sent Event.
type sseEvent struct {
	name string
	data map[string]string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = sseEvent{name: strings.TrimPrefix(line, "event: ")}
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.data))
			events = append(events, current)
		}
	}
	return events
}

func postChat(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat_InjectsSystemPrompt(t *testing.T) {
	completer := &fakeCompleter{stream: &fakeStream{fragments: []string{"Sure."}}}
	_, mux := newTestGateway(t, completer)

	rec := postChat(t, mux, `{"messages":[
		{"role":"user","content":"What do you cover?"},
		{"role":"assistant","content":"Auto, home, life, and renters."},
		{"role":"user","content":"And claims?"}
	]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, completer.gotHistory, 4)
	assert.Equal(t, chat.RoleSystem, completer.gotHistory[0].Role)
	assert.Equal(t, chat.SystemPrompt, completer.gotHistory[0].Content)
	assert.Equal(t, "What do you cover?", completer.gotHistory[1].Content)
	assert.Equal(t, "Auto, home, life, and renters.", completer.gotHistory[2].Content)
	assert.Equal(t, "And claims?", completer.gotHistory[3].Content)
}

func TestHandleChat_NoDoubleInjection(t *testing.T) {
	completer := &fakeCompleter{stream: &fakeStream{fragments: []string{"Sure."}}}
	_, mux := newTestGateway(t, completer)

	rec := postChat(t, mux, `{"messages":[
		{"role":"system","content":"You are a pirate."},
		{"role":"user","content":"Ahoy"}
	]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, completer.gotHistory, 2)
	assert.Equal(t, chat.RoleSystem, completer.gotHistory[0].Role)
	assert.Equal(t, "You are a pirate.", completer.gotHistory[0].Content)
}

func TestHandleChat_MalformedRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{broken`},
		{name: "missing messages", body: `{}`},
		{name: "messages not an array", body: `{"messages":"hello"}`},
		{name: "unknown role", body: `{"messages":[{"role":"wizard","content":"hi"}]}`},
		{name: "system not first", body: `{"messages":[{"role":"user","content":"hi"},{"role":"system","content":"x"}]}`},
	}

	completer := &fakeCompleter{stream: &fakeStream{}}
	_, mux := newTestGateway(t, completer)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, mux, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, completer.gotHistory, "nothing may reach upstream")
		})
	}
}

func TestHandleChat_StreamsFragmentsThenDone(t *testing.T) {
	completer := &fakeCompleter{stream: &fakeStream{fragments: []string{"File ", "a claim ", "online."}}}
	_, mux := newTestGateway(t, completer)

	rec := postChat(t, mux, `{"messages":[{"role":"user","content":"How do I file a claim?"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, "text", events[0].name)
	assert.Equal(t, "File ", events[0].data["text"])
	assert.Equal(t, "text", events[1].name)
	assert.Equal(t, "text", events[2].name)
	assert.Equal(t, "done", events[3].name)
	assert.Equal(t, "File a claim online.", events[3].data["full_response"])
}

func TestHandleChat_UpstreamFailure(t *testing.T) {
	completer := &fakeCompleter{err: upstream.ErrUnavailable}
	_, mux := newTestGateway(t, completer)

	rec := postChat(t, mux, `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.NotEmpty(t, events[0].data["error"])
}

func TestHandleChat_MidStreamFailure(t *testing.T) {
	completer := &fakeCompleter{stream: &fakeStream{
		fragments: []string{"partial "},
		terminal:  upstream.ErrUnavailable,
	}}
	_, mux := newTestGateway(t, completer)

	rec := postChat(t, mux, `{"messages":[{"role":"user","content":"hi"}]}`)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "text", events[0].name)
	assert.Equal(t, "error", events[1].name)

	// No done event: the client must treat this turn as failed.
	for _, ev := range events {
		assert.NotEqual(t, "done", ev.name)
	}
}

func TestHandleChat_TimeoutProducesFailure(t *testing.T) {
	gw, mux := newTestGateway(t, &blockingCompleter{})
	gw.config.Model.RequestTimeout = 50 * time.Millisecond

	start := time.Now()
	rec := postChat(t, mux, `{"messages":[{"role":"user","content":"hi"}]}`)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Contains(t, events[0].data["error"], "time budget")
}

func TestHandleChat_RecordsTurnWhenSessionGiven(t *testing.T) {
	completer := &fakeCompleter{stream: &fakeStream{fragments: []string{"Visit the ", "claims page."}}}
	gw, mux := newTestGateway(t, completer)

	rec := postChat(t, mux, `{"messages":[{"role":"user","content":"How do I file?"}],"session_id":"sess-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	turns, err := gw.store.ListTurnsBySession(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "How do I file?", turns[0].UserText)
	assert.Equal(t, "Visit the claims page.", turns[0].ReplyText)
	assert.Equal(t, "assist-test-model", turns[0].Model)
}

func TestHandleChat_NoAuditWithoutSession(t *testing.T) {
	completer := &fakeCompleter{stream: &fakeStream{fragments: []string{"ok"}}}
	gw, mux := newTestGateway(t, completer)

	postChat(t, mux, `{"messages":[{"role":"user","content":"hi"}]}`)

	turns, err := gw.store.ListTurnsBySession(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	_, mux := newTestGateway(t, &fakeCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleQuickQuestions(t *testing.T) {
	_, mux := newTestGateway(t, &fakeCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/api/quick-questions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp QuickQuestionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Questions, "What insurance do I need?")
}

func TestHealthEndpoints(t *testing.T) {
	_, mux := newTestGateway(t, &fakeCompleter{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
