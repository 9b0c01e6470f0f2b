// ABOUTME: Core conversation types - Role, Message, and the append-only Transcript
// ABOUTME: Enforces the system-message-at-position-0 invariant for outbound histories

package chat

import (
	"errors"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is the atomic unit of conversation. Messages are never mutated
// after creation; assistant replies are assembled incrementally during
// streaming and frozen before they enter a transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validation errors for inbound histories.
var (
	ErrEmptyHistory    = errors.New("message history is empty")
	ErrInvalidRole     = errors.New("invalid message role")
	ErrMisplacedSystem = errors.New("system message outside position 0")
)

// ValidateHistory checks an inbound message sequence: it must be non-empty,
// every role must be known, and a system message may only occupy position 0.
func ValidateHistory(msgs []Message) error {
	if len(msgs) == 0 {
		return ErrEmptyHistory
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return ErrInvalidRole
		}
		if m.Role == RoleSystem && i != 0 {
			return ErrMisplacedSystem
		}
	}
	return nil
}

// WithSystemPrompt returns the history with prompt prepended as a system
// message at position 0. Histories that already start with a system message
// are returned unmodified - no double injection. The original order of all
// other messages is preserved. The input slice is never mutated.
func WithSystemPrompt(msgs []Message, prompt string) []Message {
	if len(msgs) > 0 && msgs[0].Role == RoleSystem {
		return msgs
	}
	out := make([]Message, 0, len(msgs)+1)
	out = append(out, Message{Role: RoleSystem, Content: prompt})
	return append(out, msgs...)
}

// Transcript is the ordered message log for one session. It is append-only:
// insertion order is conversation order, and entries are never removed or
// rewritten within a session. Transcript is not safe for concurrent use;
// ownership belongs to a single session.
type Transcript struct {
	messages []Message
}

// NewTranscript creates a transcript seeded with the given messages,
// typically a single assistant greeting or nothing at all.
func NewTranscript(seed ...Message) *Transcript {
	t := &Transcript{}
	t.messages = append(t.messages, seed...)
	return t
}

// Append adds a message to the end of the log.
func (t *Transcript) Append(m Message) {
	t.messages = append(t.messages, m)
}

// Messages returns a copy of the log in conversation order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages in the log.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message, or false if the log is empty.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// JoinText concatenates streamed reply fragments into the final assistant
// content. Fragments arrive pre-tokenized from the upstream provider, so
// this is a plain concatenation with no separator.
func JoinText(fragments []string) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f)
	}
	return b.String()
}
