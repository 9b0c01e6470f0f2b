// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides record persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS policies (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			product TEXT NOT NULL,
			status TEXT NOT NULL,
			premium_cents INTEGER NOT NULL,
			coverage_cents INTEGER NOT NULL,
			renews_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_policies_customer
			ON policies(customer_id);

		CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			policy_id TEXT NOT NULL,
			status TEXT NOT NULL,
			incident_at DATETIME NOT NULL,
			description TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (policy_id) REFERENCES policies(id)
		);

		CREATE INDEX IF NOT EXISTS idx_claims_policy
			ON claims(policy_id);

		CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			product TEXT NOT NULL,
			premium_cents INTEGER NOT NULL,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_quotes_customer
			ON quotes(customer_id);

		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_text TEXT NOT NULL,
			reply_text TEXT NOT NULL,
			model TEXT NOT NULL,
			completed_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_turns_session
			ON turns(session_id, completed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database connection is alive
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreatePolicy inserts a new policy record, stamping CreatedAt and
// UpdatedAt at insert time
func (s *SQLiteStore) CreatePolicy(ctx context.Context, p *Policy) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (id, customer_id, product, status, premium_cents, coverage_cents, renews_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CustomerID, p.Product, p.Status, p.PremiumCents, p.CoverageCents, p.RenewsAt, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting policy: %w", err)
	}
	return nil
}

// GetPolicy retrieves a policy by ID
func (s *SQLiteStore) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	var p Policy
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, product, status, premium_cents, coverage_cents, renews_at, created_at, updated_at
		FROM policies WHERE id = ?`, id).
		Scan(&p.ID, &p.CustomerID, &p.Product, &p.Status, &p.PremiumCents, &p.CoverageCents, &p.RenewsAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying policy: %w", err)
	}
	return &p, nil
}

// ListPoliciesByCustomer returns all policies for a customer, newest first
func (s *SQLiteStore) ListPoliciesByCustomer(ctx context.Context, customerID string) ([]*Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, product, status, premium_cents, coverage_cents, renews_at, created_at, updated_at
		FROM policies WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying policies: %w", err)
	}
	defer rows.Close()

	var policies []*Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Product, &p.Status, &p.PremiumCents, &p.CoverageCents, &p.RenewsAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning policy: %w", err)
		}
		policies = append(policies, &p)
	}
	return policies, rows.Err()
}

// UpdatePolicyStatus transitions a policy to a new status
func (s *SQLiteStore) UpdatePolicyStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE policies SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating policy status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateClaim inserts a new claim record, stamping CreatedAt and
// UpdatedAt at insert time
func (s *SQLiteStore) CreateClaim(ctx context.Context, c *Claim) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO claims (id, policy_id, status, incident_at, description, amount_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PolicyID, c.Status, c.IncidentAt, c.Description, c.AmountCents, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting claim: %w", err)
	}
	return nil
}

// GetClaim retrieves a claim by ID
func (s *SQLiteStore) GetClaim(ctx context.Context, id string) (*Claim, error) {
	var c Claim
	err := s.db.QueryRowContext(ctx, `
		SELECT id, policy_id, status, incident_at, description, amount_cents, created_at, updated_at
		FROM claims WHERE id = ?`, id).
		Scan(&c.ID, &c.PolicyID, &c.Status, &c.IncidentAt, &c.Description, &c.AmountCents, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying claim: %w", err)
	}
	return &c, nil
}

// ListClaimsByPolicy returns all claims filed against a policy, newest first
func (s *SQLiteStore) ListClaimsByPolicy(ctx context.Context, policyID string) ([]*Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, policy_id, status, incident_at, description, amount_cents, created_at, updated_at
		FROM claims WHERE policy_id = ? ORDER BY created_at DESC`, policyID)
	if err != nil {
		return nil, fmt.Errorf("querying claims: %w", err)
	}
	defer rows.Close()

	var claims []*Claim
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.ID, &c.PolicyID, &c.Status, &c.IncidentAt, &c.Description, &c.AmountCents, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		claims = append(claims, &c)
	}
	return claims, rows.Err()
}

// UpdateClaimStatus transitions a claim to a new status
func (s *SQLiteStore) UpdateClaimStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE claims SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating claim status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateQuote inserts a new quote record, stamping CreatedAt at
// insert time
func (s *SQLiteStore) CreateQuote(ctx context.Context, q *Quote) error {
	q.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, customer_id, product, premium_cents, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.CustomerID, q.Product, q.PremiumCents, q.ExpiresAt, q.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting quote: %w", err)
	}
	return nil
}

// GetQuote retrieves a quote by ID
func (s *SQLiteStore) GetQuote(ctx context.Context, id string) (*Quote, error) {
	var q Quote
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, product, premium_cents, expires_at, created_at
		FROM quotes WHERE id = ?`, id).
		Scan(&q.ID, &q.CustomerID, &q.Product, &q.PremiumCents, &q.ExpiresAt, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying quote: %w", err)
	}
	return &q, nil
}

// SaveTurn records a completed conversation turn for audit
func (s *SQLiteStore) SaveTurn(ctx context.Context, turn *TurnRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, user_text, reply_text, model, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, turn.UserText, turn.ReplyText, turn.Model, turn.CompletedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}
	return nil
}

// ListTurnsBySession returns the most recent limit turns for a session,
// ordered oldest first
func (s *SQLiteStore) ListTurnsBySession(ctx context.Context, sessionID string, limit int) ([]*TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_text, reply_text, model, completed_at
		FROM turns WHERE session_id = ? ORDER BY completed_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []*TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserText, &t.ReplyText, &t.Model, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query newest-first to apply the cap, present in completion order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
