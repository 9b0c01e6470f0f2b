// ABOUTME: HTTP client for the gateway's conversation and quick-question routes
// ABOUTME: Posts the accumulated history and reads the SSE reply stream

package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sureline/assist-gateway/internal/auth"
	"github.com/sureline/assist-gateway/internal/chat"
)

// ErrTurnFailed is returned when the gateway reports a failed turn or the
// stream closes before a done event. The turn is over; the caller may
// resubmit.
var ErrTurnFailed = errors.New("turn failed")

// Client talks to the assist-gateway HTTP API. It implements the session
// Replier contract, so a conversation session can dispatch turns through it
// directly.
type Client struct {
	baseURL   string
	sessionID string
	http      *http.Client
	tokens    *auth.TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSessionID opts turns into server-side audit under the given session.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithTokenSource attaches bearer tokens from the given source.
func WithTokenSource(ts *auth.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New creates a gateway client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Messages  []chat.Message `json:"messages"`
	SessionID string         `json:"session_id,omitempty"`
}

// Reply posts the history to POST /api/chat and reads the SSE stream,
// calling onFragment for each text event. Returns the assembled reply from
// the done event. A reported error or a stream that closes without a done
// event fails the turn.
func (c *Client) Reply(ctx context.Context, history []chat.Message, onFragment func(string)) (string, error) {
	body, err := json.Marshal(chatRequest{Messages: history, SessionID: c.sessionID})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if err := c.setAuth(req); err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTurnFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrTurnFailed, readErrorBody(resp.Body, resp.StatusCode))
	}

	return readReplyStream(resp.Body, onFragment)
}

// readReplyStream consumes the SSE body until a done or error event.
func readReplyStream(body io.Reader, onFragment func(string)) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			payload := strings.TrimPrefix(line, "data: ")
			switch event {
			case "text":
				var data struct {
					Text string `json:"text"`
				}
				if err := json.Unmarshal([]byte(payload), &data); err != nil {
					return "", fmt.Errorf("%w: malformed text event", ErrTurnFailed)
				}
				if onFragment != nil {
					onFragment(data.Text)
				}

			case "done":
				var data struct {
					FullResponse string `json:"full_response"`
				}
				if err := json.Unmarshal([]byte(payload), &data); err != nil {
					return "", fmt.Errorf("%w: malformed done event", ErrTurnFailed)
				}
				return data.FullResponse, nil

			case "error":
				var data struct {
					Error string `json:"error"`
				}
				if err := json.Unmarshal([]byte(payload), &data); err != nil || data.Error == "" {
					return "", ErrTurnFailed
				}
				return "", fmt.Errorf("%w: %s", ErrTurnFailed, data.Error)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTurnFailed, err)
	}

	// Closure without a done event is a failure, never a silent success.
	return "", fmt.Errorf("%w: stream ended before completion", ErrTurnFailed)
}

// QuickQuestions fetches the fixed prompt strings for input prefill.
func (c *Client) QuickQuestions(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/quick-questions", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if err := c.setAuth(req); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching quick questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching quick questions: %s", readErrorBody(resp.Body, resp.StatusCode))
	}

	var data struct {
		Questions []string `json:"questions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding quick questions: %w", err)
	}
	return data.Questions, nil
}

// setAuth attaches the bearer token when a source is configured and holds one.
func (c *Client) setAuth(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// readErrorBody extracts the error message from a JSON error response,
// falling back to the status code.
func readErrorBody(body io.Reader, status int) string {
	var data struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&data); err == nil && data.Error != "" {
		return fmt.Sprintf("%s (status %d)", data.Error, status)
	}
	return fmt.Sprintf("status %d", status)
}
