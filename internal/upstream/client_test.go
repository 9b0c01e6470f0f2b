// ABOUTME: Tests for the completion service client
// ABOUTME: Uses httptest servers to verify request shape and error mapping

package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sureline/assist-gateway/internal/chat"
)

func TestClient_Complete_RequestShape(t *testing.T) {
	var got apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, apiVersion, r.Header.Get("Anthropic-Version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", "claude-sonnet-4-20250514")
	stream, err := c.Complete(context.Background(), []chat.Message{
		{Role: chat.RoleSystem, Content: "persona"},
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "hi"},
		{Role: chat.RoleUser, Content: "claims?"},
	})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next()
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, "claude-sonnet-4-20250514", got.Model)
	assert.True(t, got.Stream)
	assert.Equal(t, "persona", got.System)
	// System message moves to the system field, turns keep their order.
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "claims?", got.Messages[2].Content)
}

func TestClient_Complete_HTTPErrorMapsToUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "auth failure",
			status: http.StatusUnauthorized,
			body:   `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`,
		},
		{
			name:   "opaque failure",
			status: http.StatusBadGateway,
			body:   "bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := New(srv.URL, "key", "model")
			_, err := c.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}})
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestClient_Complete_NetworkFailure(t *testing.T) {
	c := New("http://127.0.0.1:1", "key", "model")
	_, err := c.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_Complete_TimeoutNeverYieldsLateSuccess(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := New(srv.URL, "key", "model")
	_, err := c.Complete(ctx, []chat.Message{{Role: chat.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}
