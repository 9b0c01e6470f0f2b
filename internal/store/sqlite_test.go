// ABOUTME: Tests for the SQLite store
// ABOUTME: Exercises CRUD round trips, status transitions, and not-found paths

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPolicy() *Policy {
	now := time.Now().UTC().Truncate(time.Second)
	return &Policy{
		ID:            uuid.New().String(),
		CustomerID:    "cust-1",
		Product:       "auto",
		Status:        PolicyStatusActive,
		PremiumCents:  12500,
		CoverageCents: 50_000_00,
		RenewsAt:      now.AddDate(1, 0, 0),
	}
}

func TestPolicyRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := testPolicy()
	require.NoError(t, s.CreatePolicy(ctx, p))

	got, err := s.GetPolicy(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.CustomerID, got.CustomerID)
	assert.Equal(t, p.Product, got.Product)
	assert.Equal(t, p.PremiumCents, got.PremiumCents)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestPolicyDuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := testPolicy()
	require.NoError(t, s.CreatePolicy(ctx, p))
	assert.ErrorIs(t, s.CreatePolicy(ctx, p), ErrDuplicateID)
}

func TestListPoliciesByCustomer(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p1 := testPolicy()
	p2 := testPolicy()
	p2.Product = "home"
	other := testPolicy()
	other.CustomerID = "cust-2"

	require.NoError(t, s.CreatePolicy(ctx, p1))
	require.NoError(t, s.CreatePolicy(ctx, p2))
	require.NoError(t, s.CreatePolicy(ctx, other))

	got, err := s.ListPoliciesByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpdatePolicyStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := testPolicy()
	require.NoError(t, s.CreatePolicy(ctx, p))
	require.NoError(t, s.UpdatePolicyStatus(ctx, p.ID, PolicyStatusCancelled))

	got, err := s.GetPolicy(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PolicyStatusCancelled, got.Status)

	assert.ErrorIs(t, s.UpdatePolicyStatus(ctx, "missing", PolicyStatusLapsed), ErrNotFound)
}

func TestClaimLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := testPolicy()
	require.NoError(t, s.CreatePolicy(ctx, p))

	now := time.Now().UTC().Truncate(time.Second)
	c := &Claim{
		ID:          uuid.New().String(),
		PolicyID:    p.ID,
		Status:      ClaimStatusSubmitted,
		IncidentAt:  now.AddDate(0, 0, -2),
		Description: "rear-end collision",
		AmountCents: 240000,
	}
	require.NoError(t, s.CreateClaim(ctx, c))

	got, err := s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "rear-end collision", got.Description)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, s.UpdateClaimStatus(ctx, c.ID, ClaimStatusAcknowledged))
	got, err = s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ClaimStatusAcknowledged, got.Status)

	claims, err := s.ListClaimsByPolicy(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestQuoteRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	q := &Quote{
		ID:           uuid.New().String(),
		CustomerID:   "cust-1",
		Product:      "renters",
		PremiumCents: 1899,
		ExpiresAt:    now.AddDate(0, 1, 0),
	}
	require.NoError(t, s.CreateQuote(ctx, q))

	got, err := s.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1899), got.PremiumCents)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetQuote(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTurnAudit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		turn := &TurnRecord{
			ID:          uuid.New().String(),
			SessionID:   "sess-1",
			UserText:    "How to file a claim?",
			ReplyText:   "File online or by phone.",
			Model:       "claude-sonnet-4-20250514",
			CompletedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.SaveTurn(ctx, turn))
	}

	turns, err := s.ListTurnsBySession(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	// Completion order preserved
	assert.True(t, turns[0].CompletedAt.Before(turns[2].CompletedAt))

	// The cap keeps the newest turns, still presented oldest first
	turns, err = s.ListTurnsBySession(ctx, "sess-1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.True(t, turns[0].CompletedAt.Equal(base.Add(time.Second)))
	assert.True(t, turns[1].CompletedAt.Equal(base.Add(2*time.Second)))
}

func TestInMemoryStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreatePolicy(context.Background(), testPolicy()))
}
