// ABOUTME: Tests for gateway construction, demo mode, auth wiring, and lifecycle
// ABOUTME: Runs the real server on a loopback listener for the lifecycle test

package gateway

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sureline/assist-gateway/internal/auth"
	"github.com/sureline/assist-gateway/internal/config"
	"github.com/sureline/assist-gateway/internal/responder"
)

func demoConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database:  config.DatabaseConfig{Path: ":memory:"},
		Model:     config.ModelConfig{RequestTimeout: 2 * time.Second},
		Responder: config.ResponderConfig{Enabled: true, Delay: time.Millisecond},
	}
}

func TestNew_DemoModeAnswersFromResponder(t *testing.T) {
	gw, err := New(demoConfig(), testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})

	mux := http.NewServeMux()
	require.NoError(t, gw.registerAPIRoutes(mux))

	rec := postChat(t, mux, `{"messages":[{"role":"user","content":"I need a CLAIM form"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "done", last.name)
	assert.Equal(t, responder.Respond("I need a CLAIM form"), last.data["full_response"])
}

func TestNew_AuthWrapsAPIRoutes(t *testing.T) {
	cfg := demoConfig()
	cfg.Auth.JWTSecret = "test-secret"

	gw, err := New(cfg, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	require.NoError(t, gw.registerAPIRoutes(mux))

	// API routes reject anonymous requests.
	req := httptest.NewRequest(http.MethodGet, "/api/quick-questions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A valid bearer token gets through.
	verifier, err := auth.NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)
	token, err := verifier.Generate("customer-1", time.Hour)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/quick-questions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRun_ServesAndShutsDownGracefully(t *testing.T) {
	// Reserve a free port, then hand its address to the gateway.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := demoConfig()
	cfg.Server.HTTPAddr = addr

	gw, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- gw.Run(ctx) }()

	baseURL := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(baseURL + "/health/ready")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", string(body))

	// One real turn over the wire in demo mode.
	chatResp, err := http.Post(baseURL+"/api/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"tell me about premium costs"}]}`))
	require.NoError(t, err)
	chatBody, _ := io.ReadAll(chatResp.Body)
	chatResp.Body.Close()
	assert.Equal(t, "text/event-stream", chatResp.Header.Get("Content-Type"))
	assert.Contains(t, string(chatBody), "event: done")

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down")
	}
}

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testLogWriter{t}, nil))
}

func TestRun_ListenerFailureReleasesResources(t *testing.T) {
	cfg := demoConfig()
	cfg.Server.HTTPAddr = "127.0.0.1:99999"

	gw, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	err = gw.Run(context.Background())
	require.Error(t, err)

	// The store handle must be closed once Run gives up.
	assert.Error(t, gw.store.Ping(context.Background()))
}
