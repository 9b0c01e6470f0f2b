// ABOUTME: HTTP client for the hosted completion service
// ABOUTME: Sends one streaming request per turn and hands back a pull-based Stream

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sureline/assist-gateway/internal/chat"
)

// Sentinel errors surfaced to the gateway's error taxonomy.
var (
	// ErrUnavailable covers auth failure, rate limiting, and network failure
	// talking to the completion service.
	ErrUnavailable = errors.New("completion service unavailable")

	// ErrStreamClosed is returned by Next after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// Completer produces a streamed assistant reply for a message history.
// The gateway depends on this interface so tests can substitute a fake.
type Completer interface {
	Complete(ctx context.Context, msgs []chat.Message) (Stream, error)
}

// Stream is a pull-based iterator over reply fragments. Next returns one
// text fragment per call and io.EOF on normal completion. Cancellation
// flows through the context passed to Complete. Close releases the
// underlying connection and is safe to call at any point.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Client implements Completer against an Anthropic-style Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxTokens overrides the default reply length budget.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// New creates a Client pinned to one model identifier. baseURL has no
// trailing slash; model must be non-empty.
func New(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		maxTokens:  defaultMaxTokens,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Complete sends the history to the completion service and returns a Stream
// of reply fragments. The caller bounds the call with its context; exceeding
// the deadline surfaces as a stream error, never a late success.
func (c *Client) Complete(ctx context.Context, msgs []chat.Message) (Stream, error) {
	system, turns := convertHistory(msgs)
	body, err := json.Marshal(apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    true,
		System:    system,
		Messages:  turns,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}

	return newStream(ctx, resp.Body), nil
}

// parseHTTPError maps a non-200 response to ErrUnavailable with detail.
func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s: %s", ErrUnavailable, apiErr.Error.Type, apiErr.Error.Message)
}
