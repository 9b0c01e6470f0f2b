// ABOUTME: Store interface and data types for assist-gateway persistence
// ABOUTME: Defines Policy, Claim, Quote, TurnRecord structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned when trying to create a record whose ID already exists
var ErrDuplicateID = errors.New("record already exists")

// Policy status constants
const (
	PolicyStatusActive    = "active"
	PolicyStatusLapsed    = "lapsed"
	PolicyStatusCancelled = "cancelled"
)

// Policy represents an insurance policy held by a customer
type Policy struct {
	ID            string
	CustomerID    string
	Product       string // "auto", "home", "life", "renters"
	Status        string
	PremiumCents  int64
	CoverageCents int64
	RenewsAt      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Claim status constants
const (
	ClaimStatusSubmitted    = "submitted"
	ClaimStatusAcknowledged = "acknowledged"
	ClaimStatusAssigned     = "assigned"
	ClaimStatusSettled      = "settled"
	ClaimStatusDenied       = "denied"
)

// Claim represents a claim filed against a policy
type Claim struct {
	ID          string
	PolicyID    string
	Status      string
	IncidentAt  time.Time
	Description string
	AmountCents int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Quote represents a premium quote produced for a prospect
type Quote struct {
	ID           string
	CustomerID   string
	Product      string
	PremiumCents int64
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// TurnRecord is an audit record of one completed conversation turn: the
// user's submitted text and the assembled assistant reply. Recorded only
// when the client opts in by sending a session ID; the chat route itself
// holds no state between turns.
type TurnRecord struct {
	ID          string
	SessionID   string
	UserText    string
	ReplyText   string
	Model       string
	CompletedAt time.Time
}

// Store defines the interface for assist-gateway persistence
type Store interface {
	// Policies
	CreatePolicy(ctx context.Context, p *Policy) error
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	ListPoliciesByCustomer(ctx context.Context, customerID string) ([]*Policy, error)
	UpdatePolicyStatus(ctx context.Context, id, status string) error

	// Claims
	CreateClaim(ctx context.Context, c *Claim) error
	GetClaim(ctx context.Context, id string) (*Claim, error)
	ListClaimsByPolicy(ctx context.Context, policyID string) ([]*Claim, error)
	UpdateClaimStatus(ctx context.Context, id, status string) error

	// Quotes
	CreateQuote(ctx context.Context, q *Quote) error
	GetQuote(ctx context.Context, id string) (*Quote, error)

	// Conversation turn audit
	SaveTurn(ctx context.Context, turn *TurnRecord) error
	ListTurnsBySession(ctx context.Context, sessionID string, limit int) ([]*TurnRecord, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
