// ABOUTME: Gateway orchestrator that wires the store, upstream client, and HTTP server
// ABOUTME: Manages listeners (TCP or tsnet), route registration, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/tsnet"

	"github.com/sureline/assist-gateway/internal/auth"
	"github.com/sureline/assist-gateway/internal/config"
	"github.com/sureline/assist-gateway/internal/dedupe"
	"github.com/sureline/assist-gateway/internal/outbox"
	"github.com/sureline/assist-gateway/internal/responder"
	"github.com/sureline/assist-gateway/internal/store"
	"github.com/sureline/assist-gateway/internal/upstream"
)

// Gateway orchestrates the assist-gateway server components: the SQLite
// store, the upstream completion client (or local responder in demo mode),
// the outbox replayer, and the HTTP server that exposes them.
type Gateway struct {
	config      *config.Config
	store       store.Store
	completer   upstream.Completer
	replayer    *outbox.Replayer
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// dedupe absorbs retried outbox uploads
	dedupe *dedupe.Cache
}

// initStore creates a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("ASSIST_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initCompleter picks the reply source: the local keyword responder in demo
// mode, otherwise the hosted completion service.
func initCompleter(cfg *config.Config, logger *slog.Logger) upstream.Completer {
	if cfg.Responder.Enabled {
		delay := cfg.Responder.Delay
		if delay == 0 {
			delay = responder.DefaultDelay
		}
		logger.Info("demo mode: answering from the local responder", "delay", delay)
		return newResponderCompleter(responder.New(delay))
	}

	opts := []upstream.Option{}
	if cfg.Model.MaxTokens > 0 {
		opts = append(opts, upstream.WithMaxTokens(cfg.Model.MaxTokens))
	}
	return upstream.New(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Model, opts...)
}

// registerAPIRoutes registers API routes on the mux, wrapped in bearer auth
// when a JWT secret is configured.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) error {
	wrap := func(h http.HandlerFunc) http.Handler { return h }

	if g.config.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
		if err != nil {
			return fmt.Errorf("creating JWT verifier: %w", err)
		}
		middleware := auth.HTTPAuthMiddleware(verifier)
		wrap = func(h http.HandlerFunc) http.Handler { return middleware(h) }
		g.logger.Info("HTTP auth middleware enabled")
	} else {
		g.logger.Warn("HTTP auth disabled - no jwt_secret configured")
	}

	mux.Handle("/api/chat", wrap(g.handleChat))
	mux.Handle("/api/quick-questions", wrap(g.handleQuickQuestions))
	mux.Handle("/api/policies", wrap(g.handlePolicies))
	mux.Handle("/api/policies/", wrap(g.handlePolicyByID))
	mux.Handle("/api/claims", wrap(g.handleClaims))
	mux.Handle("/api/claims/", wrap(g.handleClaimByID))
	mux.Handle("/api/quotes", wrap(g.handleQuotes))
	mux.Handle("/api/quotes/", wrap(g.handleQuoteByID))
	mux.Handle("/api/sessions/", wrap(g.handleSessionTurns))
	mux.Handle("/api/outbox/replay", wrap(g.handleOutboxReplay))
	return nil
}

// New creates a Gateway from the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	dedupeCache := dedupe.New(24*time.Hour, 100_000)

	gw := &Gateway{
		config:    cfg,
		store:     s,
		completer: initCompleter(cfg, logger),
		replayer:  outbox.NewReplayer(s, dedupeCache, logger),
		logger:    logger.With("component", "gateway"),
		dedupe:    dedupeCache,
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	if err := gw.registerAPIRoutes(mux); err != nil {
		_ = s.Close()
		dedupeCache.Close()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// setupListeners creates the HTTP listener based on configuration.
func (g *Gateway) setupListeners(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListeners(ctx)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if sdErr := g.Shutdown(shutdownCtx); sdErr != nil {
			g.logger.Error("releasing resources after listener failure", "error", sdErr)
		}
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// resolveTailscaleStateDir returns the state directory, using a default
// under the user's home if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "assist-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener starts a tsnet node and listens on it, so the API
// is reachable over the tailnet without exposing a public port.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	var tsAddr string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	g.logger.Info("tailscale node ready", "hostname", tsCfg.Hostname, "tailscale_ip", tsAddr)

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	g.dedupe.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the store is reachable.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "store unavailable: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
