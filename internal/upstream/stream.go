// ABOUTME: SSE parser for the completion service's streamed reply
// ABOUTME: Pull-based - each Next call reads events until a text fragment or terminal state

package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// stream parses SSE events from the HTTP response body. message_stop maps
// to io.EOF; an error event or a broken connection maps to a stream error.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	done    bool
	closed  bool
	err     error
}

var _ Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser) *stream {
	return &stream{
		body:    body,
		scanner: bufio.NewScanner(body),
		ctx:     ctx,
	}
}

// Next returns the next text fragment of the reply. It skips non-text events
// (ping, message_start, block boundaries) and returns io.EOF once the
// upstream signals message_stop.
func (s *stream) Next() (string, error) {
	switch {
	case s.closed:
		return "", ErrStreamClosed
	case s.done:
		return "", io.EOF
	case s.err != nil:
		return "", s.err
	}

	for {
		eventType, data, err := s.readSSEEvent()
		if err != nil {
			s.err = s.terminalError(err)
			return "", s.err
		}

		switch eventType {
		case "content_block_delta":
			var evt sseContentBlockDelta
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				s.err = fmt.Errorf("upstream: parsing content_block_delta: %w", err)
				return "", s.err
			}
			if evt.Delta.Type == "text_delta" && evt.Delta.Text != "" {
				return evt.Delta.Text, nil
			}

		case "message_stop":
			s.done = true
			return "", io.EOF

		case "error":
			var evt sseError
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				s.err = fmt.Errorf("upstream: parsing error event: %w", err)
				return "", s.err
			}
			s.err = fmt.Errorf("%w: %s: %s", ErrUnavailable, evt.Error.Type, evt.Error.Message)
			return "", s.err

		default:
			// ping, message_start, message_delta, block boundaries: keep reading.
		}
	}
}

// Close closes the underlying response body. Subsequent Next calls return
// ErrStreamClosed.
func (s *stream) Close() error {
	if !s.done && s.err == nil {
		s.closed = true
	}
	return s.body.Close()
}

// terminalError classifies a read failure. EOF before message_stop means the
// upstream hung up mid-reply; context errors mean the caller's budget ran
// out or the client disconnected.
func (s *stream) terminalError(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == io.EOF {
		return fmt.Errorf("%w: stream ended before completion", ErrUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// readSSEEvent reads lines until a complete SSE event is assembled,
// returning the event type and data payload.
func (s *stream) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(line, "data: "))
		}
		// Comments and unknown fields are ignored.
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", err
	}
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}
