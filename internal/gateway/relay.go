// ABOUTME: Producer/consumer relay between an upstream stream and the SSE writer
// ABOUTME: A bounded channel decouples the two; canceling the context stops the producer

package gateway

import (
	"context"
	"io"

	"github.com/sureline/assist-gateway/internal/upstream"
)

// relayBuffer bounds how far the producer can run ahead of the consumer.
const relayBuffer = 16

// relayItem is one unit on the relay channel: a text fragment, or a terminal
// error. io.EOF marks normal completion.
type relayItem struct {
	text string
	err  error
}

// relay starts a producer goroutine that pulls fragments from the stream and
// feeds them through a bounded channel. The producer stops when the stream
// ends or the context is canceled, so a disconnected consumer never leaves
// it pulling into the void. The channel is closed after the terminal item.
func relay(ctx context.Context, stream upstream.Stream) <-chan relayItem {
	items := make(chan relayItem, relayBuffer)

	go func() {
		defer close(items)
		defer func() { _ = stream.Close() }()

		for {
			text, err := stream.Next()
			if err != nil {
				select {
				case items <- relayItem{err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case items <- relayItem{text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return items
}

// drainRelay consumes the relay until a terminal item, invoking onText for
// each fragment. Returns nil on normal completion (io.EOF), the context
// error if the consumer side was canceled first, or the stream's error.
func drainRelay(ctx context.Context, items <-chan relayItem, onText func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-items:
			if !ok {
				return ctx.Err()
			}
			if item.err != nil {
				if item.err == io.EOF {
					return nil
				}
				return item.err
			}
			onText(item.text)
		}
	}
}
