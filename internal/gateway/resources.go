// ABOUTME: HTTP handlers for policy, claim, quote, and turn-audit resources
// ABOUTME: Also exposes the offline outbox replay endpoint

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sureline/assist-gateway/internal/outbox"
	"github.com/sureline/assist-gateway/internal/store"
)

// CreatePolicyRequest is the JSON request body for POST /api/policies.
type CreatePolicyRequest struct {
	CustomerID    string `json:"customer_id"`
	Product       string `json:"product"`
	PremiumCents  int64  `json:"premium_cents"`
	CoverageCents int64  `json:"coverage_cents"`
	RenewsAt      string `json:"renews_at,omitempty"`
}

// PolicyResponse is the JSON shape of a policy.
type PolicyResponse struct {
	ID            string `json:"id"`
	CustomerID    string `json:"customer_id"`
	Product       string `json:"product"`
	Status        string `json:"status"`
	PremiumCents  int64  `json:"premium_cents"`
	CoverageCents int64  `json:"coverage_cents"`
	RenewsAt      string `json:"renews_at"`
	CreatedAt     string `json:"created_at"`
}

// CreateClaimRequest is the JSON request body for POST /api/claims.
type CreateClaimRequest struct {
	PolicyID    string `json:"policy_id"`
	IncidentAt  string `json:"incident_at,omitempty"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

// ClaimResponse is the JSON shape of a claim.
type ClaimResponse struct {
	ID          string `json:"id"`
	PolicyID    string `json:"policy_id"`
	Status      string `json:"status"`
	IncidentAt  string `json:"incident_at"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	CreatedAt   string `json:"created_at"`
}

// CreateQuoteRequest is the JSON request body for POST /api/quotes.
type CreateQuoteRequest struct {
	CustomerID   string `json:"customer_id"`
	Product      string `json:"product"`
	PremiumCents int64  `json:"premium_cents"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// QuoteResponse is the JSON shape of a quote.
type QuoteResponse struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	Product      string `json:"product"`
	PremiumCents int64  `json:"premium_cents"`
	ExpiresAt    string `json:"expires_at"`
	CreatedAt    string `json:"created_at"`
}

// UpdateStatusRequest is the JSON request body for status transitions.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// TurnResponse is the JSON shape of one audited conversation turn.
type TurnResponse struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	UserText    string `json:"user_text"`
	ReplyText   string `json:"reply_text"`
	Model       string `json:"model"`
	CompletedAt string `json:"completed_at"`
}

// ReplayRequest is the JSON request body for POST /api/outbox/replay.
type ReplayRequest struct {
	Actions []outbox.Action `json:"actions"`
}

// ReplayResponse is the JSON response for POST /api/outbox/replay.
type ReplayResponse struct {
	Results []outbox.Result `json:"results"`
}

var validProducts = map[string]bool{
	"auto":    true,
	"home":    true,
	"life":    true,
	"renters": true,
}

var validPolicyStatuses = map[string]bool{
	store.PolicyStatusActive:    true,
	store.PolicyStatusLapsed:    true,
	store.PolicyStatusCancelled: true,
}

var validClaimStatuses = map[string]bool{
	store.ClaimStatusSubmitted:    true,
	store.ClaimStatusAcknowledged: true,
	store.ClaimStatusAssigned:     true,
	store.ClaimStatusSettled:      true,
	store.ClaimStatusDenied:       true,
}

// handlePolicies handles POST (create) and GET (list by customer) on /api/policies.
func (g *Gateway) handlePolicies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		g.createPolicy(w, r)
	case http.MethodGet:
		g.listPolicies(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CustomerID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	if !validProducts[req.Product] {
		g.sendJSONError(w, http.StatusBadRequest, "unknown product")
		return
	}

	renewsAt, err := parseTimeField(req.RenewsAt, time.Now().AddDate(1, 0, 0))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid renews_at")
		return
	}

	policy := &store.Policy{
		ID:            uuid.NewString(),
		CustomerID:    req.CustomerID,
		Product:       req.Product,
		Status:        store.PolicyStatusActive,
		PremiumCents:  req.PremiumCents,
		CoverageCents: req.CoverageCents,
		RenewsAt:      renewsAt,
	}
	if err := g.store.CreatePolicy(r.Context(), policy); err != nil {
		g.logger.Error("failed to create policy", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stored, err := g.store.GetPolicy(r.Context(), policy.ID)
	if err != nil {
		g.logger.Error("failed to load created policy", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusCreated, policyResponse(stored))
}

func (g *Gateway) listPolicies(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "customer_id query parameter is required")
		return
	}

	policies, err := g.store.ListPoliciesByCustomer(r.Context(), customerID)
	if err != nil {
		g.logger.Error("failed to list policies", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		response = append(response, policyResponse(p))
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handlePolicyByID handles GET /api/policies/{id} and POST /api/policies/{id}/status.
func (g *Gateway) handlePolicyByID(w http.ResponseWriter, r *http.Request) {
	id, action := splitResourcePath(r.URL.Path, "/api/policies/")
	if id == "" {
		g.sendJSONError(w, http.StatusBadRequest, "policy id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		policy, err := g.store.GetPolicy(r.Context(), id)
		if err != nil {
			g.respondStoreError(w, err, "policy")
			return
		}
		g.writeJSON(w, http.StatusOK, policyResponse(policy))

	case action == "status" && r.Method == http.MethodPost:
		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !validPolicyStatuses[req.Status] {
			g.sendJSONError(w, http.StatusBadRequest, "unknown policy status")
			return
		}
		if err := g.store.UpdatePolicyStatus(r.Context(), id, req.Status); err != nil {
			g.respondStoreError(w, err, "policy")
			return
		}
		policy, err := g.store.GetPolicy(r.Context(), id)
		if err != nil {
			g.respondStoreError(w, err, "policy")
			return
		}
		g.writeJSON(w, http.StatusOK, policyResponse(policy))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleClaims handles POST (create) and GET (list by policy) on /api/claims.
func (g *Gateway) handleClaims(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		g.createClaim(w, r)
	case http.MethodGet:
		g.listClaims(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) createClaim(w http.ResponseWriter, r *http.Request) {
	var req CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PolicyID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "policy_id is required")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		g.sendJSONError(w, http.StatusBadRequest, "description is required")
		return
	}

	if _, err := g.store.GetPolicy(r.Context(), req.PolicyID); err != nil {
		g.respondStoreError(w, err, "policy")
		return
	}

	incidentAt, err := parseTimeField(req.IncidentAt, time.Now())
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid incident_at")
		return
	}

	claim := &store.Claim{
		ID:          uuid.NewString(),
		PolicyID:    req.PolicyID,
		Status:      store.ClaimStatusSubmitted,
		IncidentAt:  incidentAt,
		Description: req.Description,
		AmountCents: req.AmountCents,
	}
	if err := g.store.CreateClaim(r.Context(), claim); err != nil {
		g.logger.Error("failed to create claim", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stored, err := g.store.GetClaim(r.Context(), claim.ID)
	if err != nil {
		g.logger.Error("failed to load created claim", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusCreated, claimResponse(stored))
}

func (g *Gateway) listClaims(w http.ResponseWriter, r *http.Request) {
	policyID := r.URL.Query().Get("policy_id")
	if policyID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "policy_id query parameter is required")
		return
	}

	claims, err := g.store.ListClaimsByPolicy(r.Context(), policyID)
	if err != nil {
		g.logger.Error("failed to list claims", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ClaimResponse, 0, len(claims))
	for _, c := range claims {
		response = append(response, claimResponse(c))
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleClaimByID handles GET /api/claims/{id} and POST /api/claims/{id}/status.
func (g *Gateway) handleClaimByID(w http.ResponseWriter, r *http.Request) {
	id, action := splitResourcePath(r.URL.Path, "/api/claims/")
	if id == "" {
		g.sendJSONError(w, http.StatusBadRequest, "claim id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		claim, err := g.store.GetClaim(r.Context(), id)
		if err != nil {
			g.respondStoreError(w, err, "claim")
			return
		}
		g.writeJSON(w, http.StatusOK, claimResponse(claim))

	case action == "status" && r.Method == http.MethodPost:
		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !validClaimStatuses[req.Status] {
			g.sendJSONError(w, http.StatusBadRequest, "unknown claim status")
			return
		}
		if err := g.store.UpdateClaimStatus(r.Context(), id, req.Status); err != nil {
			g.respondStoreError(w, err, "claim")
			return
		}
		claim, err := g.store.GetClaim(r.Context(), id)
		if err != nil {
			g.respondStoreError(w, err, "claim")
			return
		}
		g.writeJSON(w, http.StatusOK, claimResponse(claim))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleQuotes handles POST /api/quotes.
func (g *Gateway) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req CreateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CustomerID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	if !validProducts[req.Product] {
		g.sendJSONError(w, http.StatusBadRequest, "unknown product")
		return
	}

	expiresAt, err := parseTimeField(req.ExpiresAt, time.Now().Add(30*24*time.Hour))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid expires_at")
		return
	}

	quote := &store.Quote{
		ID:           uuid.NewString(),
		CustomerID:   req.CustomerID,
		Product:      req.Product,
		PremiumCents: req.PremiumCents,
		ExpiresAt:    expiresAt,
	}
	if err := g.store.CreateQuote(r.Context(), quote); err != nil {
		g.logger.Error("failed to create quote", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stored, err := g.store.GetQuote(r.Context(), quote.ID)
	if err != nil {
		g.logger.Error("failed to load created quote", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusCreated, quoteResponse(stored))
}

// handleQuoteByID handles GET /api/quotes/{id}.
func (g *Gateway) handleQuoteByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, action := splitResourcePath(r.URL.Path, "/api/quotes/")
	if id == "" || action != "" {
		g.sendJSONError(w, http.StatusBadRequest, "quote id is required")
		return
	}

	quote, err := g.store.GetQuote(r.Context(), id)
	if err != nil {
		g.respondStoreError(w, err, "quote")
		return
	}
	g.writeJSON(w, http.StatusOK, quoteResponse(quote))
}

// handleSessionTurns handles GET /api/sessions/{id}/turns.
func (g *Gateway) handleSessionTurns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID, action := splitResourcePath(r.URL.Path, "/api/sessions/")
	if sessionID == "" || action != "turns" {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			g.sendJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	turns, err := g.store.ListTurnsBySession(r.Context(), sessionID, limit)
	if err != nil {
		g.logger.Error("failed to list turns", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]TurnResponse, 0, len(turns))
	for _, t := range turns {
		response = append(response, TurnResponse{
			ID:          t.ID,
			SessionID:   t.SessionID,
			UserText:    t.UserText,
			ReplyText:   t.ReplyText,
			Model:       t.Model,
			CompletedAt: t.CompletedAt.UTC().Format(time.RFC3339),
		})
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleOutboxReplay handles POST /api/outbox/replay requests.
func (g *Gateway) handleOutboxReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Actions) == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "actions is required")
		return
	}

	results := g.replayer.Replay(r.Context(), req.Actions)
	g.writeJSON(w, http.StatusOK, ReplayResponse{Results: results})
}

// respondStoreError maps store errors to HTTP responses.
func (g *Gateway) respondStoreError(w http.ResponseWriter, err error, kind string) {
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, kind+" not found")
		return
	}
	g.logger.Error("store error", "kind", kind, "error", err)
	g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

// splitResourcePath splits "/api/things/{id}" or "/api/things/{id}/{action}"
// into its id and action parts.
func splitResourcePath(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action
}

// parseTimeField parses an RFC3339 timestamp, returning the fallback when
// the field is empty.
func parseTimeField(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func policyResponse(p *store.Policy) PolicyResponse {
	return PolicyResponse{
		ID:            p.ID,
		CustomerID:    p.CustomerID,
		Product:       p.Product,
		Status:        p.Status,
		PremiumCents:  p.PremiumCents,
		CoverageCents: p.CoverageCents,
		RenewsAt:      p.RenewsAt.UTC().Format(time.RFC3339),
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func claimResponse(c *store.Claim) ClaimResponse {
	return ClaimResponse{
		ID:          c.ID,
		PolicyID:    c.PolicyID,
		Status:      c.Status,
		IncidentAt:  c.IncidentAt.UTC().Format(time.RFC3339),
		Description: c.Description,
		AmountCents: c.AmountCents,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func quoteResponse(q *store.Quote) QuoteResponse {
	return QuoteResponse{
		ID:           q.ID,
		CustomerID:   q.CustomerID,
		Product:      q.Product,
		PremiumCents: q.PremiumCents,
		ExpiresAt:    q.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:    q.CreatedAt.UTC().Format(time.RFC3339),
	}
}
