// ABOUTME: Replays queued offline actions into the store exactly once
// ABOUTME: Uses the dedupe cache plus store uniqueness to absorb retried uploads

package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sureline/assist-gateway/internal/dedupe"
	"github.com/sureline/assist-gateway/internal/store"
)

// Replay outcome per action.
const (
	StatusApplied   = "applied"
	StatusDuplicate = "duplicate"
	StatusRejected  = "rejected"
)

// Monthly premium estimates in cents by product, used when replay creates a
// quote. Real rating happens downstream; these are the teaser figures the
// assistant quotes in conversation.
var quoteRates = map[string]int64{
	"auto":    11800,
	"home":    15600,
	"life":    4300,
	"renters": 2100,
}

// quoteValidity is how long a replayed quote stays open.
const quoteValidity = 30 * 24 * time.Hour

// Result is the per-action outcome of a replay batch. Error is a
// human-readable reason, set only when Status is StatusRejected.
type Result struct {
	ActionID string `json:"action_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Replayer applies uploaded outbox actions to the store. Duplicate uploads
// of the same action ID are absorbed twice over: the TTL cache catches
// retries within its window, and the store's ID uniqueness catches the rest.
type Replayer struct {
	store  store.Store
	cache  *dedupe.Cache
	logger *slog.Logger
}

// NewReplayer creates a replayer over the given store and dedupe cache.
func NewReplayer(st store.Store, cache *dedupe.Cache, logger *slog.Logger) *Replayer {
	return &Replayer{
		store:  st,
		cache:  cache,
		logger: logger.With("component", "outbox"),
	}
}

// Replay applies a batch of actions in order, returning one Result per
// action. A rejected action does not stop the batch; clients drop applied
// and duplicate actions from their queue and keep rejected ones for review.
func (r *Replayer) Replay(ctx context.Context, actions []Action) []Result {
	results := make([]Result, 0, len(actions))
	for i := range actions {
		results = append(results, r.replayOne(ctx, &actions[i]))
	}
	return results
}

func (r *Replayer) replayOne(ctx context.Context, action *Action) Result {
	if err := action.Validate(); err != nil {
		r.logger.Warn("rejected outbox action",
			"action_id", action.ID,
			"kind", action.Kind,
			"error", err)
		return Result{ActionID: action.ID, Status: StatusRejected, Error: err.Error()}
	}

	if r.cache.CheckAndMark(action.ID) {
		return Result{ActionID: action.ID, Status: StatusDuplicate}
	}

	var err error
	switch action.Kind {
	case KindSubmitClaim:
		err = r.applySubmitClaim(ctx, action)
	case KindRequestQuote:
		err = r.applyRequestQuote(ctx, action)
	case KindCancelPolicy:
		err = r.applyCancelPolicy(ctx, action)
	default:
		// Validate already rejected unknown kinds.
		err = fmt.Errorf("%w: %q", ErrUnknownKind, action.Kind)
	}

	if errors.Is(err, store.ErrDuplicateID) {
		return Result{ActionID: action.ID, Status: StatusDuplicate}
	}
	if err != nil {
		r.logger.Warn("failed to apply outbox action",
			"action_id", action.ID,
			"kind", action.Kind,
			"error", err)
		return Result{ActionID: action.ID, Status: StatusRejected, Error: err.Error()}
	}

	r.logger.Info("applied outbox action", "action_id", action.ID, "kind", action.Kind)
	return Result{ActionID: action.ID, Status: StatusApplied}
}

func (r *Replayer) applySubmitClaim(ctx context.Context, action *Action) error {
	var payload SubmitClaimPayload
	if err := action.decodePayload(&payload); err != nil {
		return err
	}
	if payload.PolicyID == "" {
		return fmt.Errorf("%w: policy_id is required", ErrBadPayload)
	}
	if strings.TrimSpace(payload.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrBadPayload)
	}

	// The policy must exist before a claim can be filed against it.
	if _, err := r.store.GetPolicy(ctx, payload.PolicyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: policy %q not found", ErrBadPayload, payload.PolicyID)
		}
		return err
	}

	return r.store.CreateClaim(ctx, &store.Claim{
		ID:          action.ID,
		PolicyID:    payload.PolicyID,
		Status:      store.ClaimStatusSubmitted,
		IncidentAt:  payload.IncidentAt,
		Description: payload.Description,
		AmountCents: payload.AmountCents,
	})
}

func (r *Replayer) applyRequestQuote(ctx context.Context, action *Action) error {
	var payload RequestQuotePayload
	if err := action.decodePayload(&payload); err != nil {
		return err
	}
	if payload.CustomerID == "" {
		return fmt.Errorf("%w: customer_id is required", ErrBadPayload)
	}
	rate, ok := quoteRates[payload.Product]
	if !ok {
		return fmt.Errorf("%w: unknown product %q", ErrBadPayload, payload.Product)
	}

	return r.store.CreateQuote(ctx, &store.Quote{
		ID:           action.ID,
		CustomerID:   payload.CustomerID,
		Product:      payload.Product,
		PremiumCents: rate,
		ExpiresAt:    time.Now().Add(quoteValidity),
	})
}

func (r *Replayer) applyCancelPolicy(ctx context.Context, action *Action) error {
	var payload CancelPolicyPayload
	if err := action.decodePayload(&payload); err != nil {
		return err
	}
	if payload.PolicyID == "" {
		return fmt.Errorf("%w: policy_id is required", ErrBadPayload)
	}

	err := r.store.UpdatePolicyStatus(ctx, payload.PolicyID, store.PolicyStatusCancelled)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: policy %q not found", ErrBadPayload, payload.PolicyID)
	}
	return err
}
