// ABOUTME: Client-side conversation session, one turn at a time
// ABOUTME: Owns the append-only message log and serializes submits against it

package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sureline/assist-gateway/internal/chat"
)

// Session errors
var (
	ErrEmptyInput   = errors.New("input is empty")
	ErrTurnInFlight = errors.New("a turn is already awaiting its reply")
)

// State of the session between operations.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting-reply"
)

// Replier produces the assistant's reply for the accumulated history.
// Implementations may call onFragment with partial text as it arrives;
// onFragment may be nil. The returned string is the complete reply.
type Replier interface {
	Reply(ctx context.Context, history []chat.Message, onFragment func(string)) (string, error)
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, history []chat.Message, onFragment func(string)) (string, error)

// Reply implements Replier.
func (f ReplierFunc) Reply(ctx context.Context, history []chat.Message, onFragment func(string)) (string, error) {
	return f(ctx, history, onFragment)
}

// Session holds the ordered message log for one conversation and drives the
// idle to awaiting-reply to idle cycle. Exactly one turn may be outstanding;
// a submit while a reply is pending is rejected rather than interleaved.
// The log is in-memory only and lives as long as the session.
type Session struct {
	mu      sync.Mutex
	state   State
	log     *chat.Transcript
	replier Replier
}

// Option configures a Session.
type Option func(*Session)

// WithGreeting seeds the log with an opening assistant message.
func WithGreeting(text string) Option {
	return func(s *Session) {
		s.log = chat.NewTranscript(chat.Message{Role: chat.RoleAssistant, Content: text})
	}
}

// New creates an idle session that dispatches turns through the given replier.
func New(replier Replier, opts ...Option) *Session {
	s := &Session{
		state:   StateIdle,
		log:     chat.NewTranscript(),
		replier: replier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the message log in conversation order.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Messages()
}

// Submit runs one turn: it appends the user's message, dispatches the
// history to the replier, and appends the assistant's reply. Input is
// whitespace-stripped and must be non-empty. While the reply is pending the
// session is awaiting-reply and further submits return ErrTurnInFlight. A
// failed turn appends no assistant message and returns the session to idle
// so the user can resubmit.
func (s *Session) Submit(ctx context.Context, text string, onFragment func(string)) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyInput
	}

	s.mu.Lock()
	if s.state == StateAwaitingReply {
		s.mu.Unlock()
		return chat.Message{}, ErrTurnInFlight
	}
	s.state = StateAwaitingReply
	s.log.Append(chat.Message{Role: chat.RoleUser, Content: text})
	history := s.log.Messages()
	s.mu.Unlock()

	replyText, err := s.replier.Reply(ctx, history, onFragment)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	if err != nil {
		return chat.Message{}, err
	}

	reply := chat.Message{Role: chat.RoleAssistant, Content: replyText}
	s.log.Append(reply)
	return reply, nil
}
