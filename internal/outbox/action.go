// ABOUTME: Typed offline actions queued by clients while disconnected
// ABOUTME: Each action kind carries an explicit payload schema decoded on replay

package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Action kinds. Replay handles every kind explicitly; an unlisted kind is an
// error, never a silent skip.
const (
	KindSubmitClaim  = "submit_claim"
	KindRequestQuote = "request_quote"
	KindCancelPolicy = "cancel_policy"
)

// Action errors
var (
	ErrMissingID    = errors.New("action missing id")
	ErrUnknownKind  = errors.New("unknown action kind")
	ErrBadPayload   = errors.New("malformed action payload")
	ErrEmptyPayload = errors.New("action missing payload")
)

// Action is one queued client action. The client assigns the ID when the
// action is queued offline, so retried uploads carry the same ID and the
// gateway can deduplicate them. Payload shape depends on Kind.
type Action struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	QueuedAt time.Time       `json:"queued_at"`
	Payload  json.RawMessage `json:"payload"`
}

// SubmitClaimPayload files a claim against an existing policy.
type SubmitClaimPayload struct {
	PolicyID    string    `json:"policy_id"`
	IncidentAt  time.Time `json:"incident_at"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
}

// RequestQuotePayload asks for a premium quote on a product.
type RequestQuotePayload struct {
	CustomerID string `json:"customer_id"`
	Product    string `json:"product"`
}

// CancelPolicyPayload cancels an existing policy.
type CancelPolicyPayload struct {
	PolicyID string `json:"policy_id"`
}

// Validate checks the envelope fields common to all kinds.
func (a *Action) Validate() error {
	if a.ID == "" {
		return ErrMissingID
	}
	switch a.Kind {
	case KindSubmitClaim, KindRequestQuote, KindCancelPolicy:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
	if len(a.Payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

// decodePayload unmarshals the raw payload into dst, mapping JSON errors to
// ErrBadPayload.
func (a *Action) decodePayload(dst any) error {
	if err := json.Unmarshal(a.Payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}
