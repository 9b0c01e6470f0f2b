// ABOUTME: Demo-mode reply source backed by the local keyword responder
// ABOUTME: Adapts it to the upstream Completer contract so the relay path is shared

package gateway

import (
	"context"
	"io"

	"github.com/sureline/assist-gateway/internal/chat"
	"github.com/sureline/assist-gateway/internal/responder"
	"github.com/sureline/assist-gateway/internal/upstream"
)

// responderCompleter answers from the local keyword responder instead of the
// hosted completion service. The reply arrives as a single fragment after
// the responder's artificial delay, through the same Stream contract the
// real client uses.
type responderCompleter struct {
	responder *responder.Responder
}

func newResponderCompleter(r *responder.Responder) *responderCompleter {
	return &responderCompleter{responder: r}
}

func (c *responderCompleter) Complete(ctx context.Context, msgs []chat.Message) (upstream.Stream, error) {
	// The responder answers the latest user message; earlier history and the
	// system prompt carry no signal for keyword matching.
	input := ""
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleUser {
			input = msgs[i].Content
			break
		}
	}

	reply, err := c.responder.Reply(ctx, input)
	if err != nil {
		return nil, err
	}
	return &cannedStream{text: reply}, nil
}

// cannedStream delivers one fragment then completes.
type cannedStream struct {
	text string
	done bool
}

func (s *cannedStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.text, nil
}

func (s *cannedStream) Close() error { return nil }
