// ABOUTME: TokenSource holds the client-side bearer token with an explicit lifecycle
// ABOUTME: Constructed once at startup, read through an accessor, cleared on logout

package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotInitialized is returned when a TokenSource is read before Init.
var ErrNotInitialized = errors.New("token source not initialized")

// TokenSource is application-scoped bearer-token state for client programs.
// It replaces an ambient global: the holder is constructed once at startup,
// initialized explicitly, read through Token, and torn down with Clear on
// logout. Safe for concurrent use.
type TokenSource struct {
	mu          sync.RWMutex
	token       string
	initialized bool
}

// NewTokenSource creates an uninitialized TokenSource.
func NewTokenSource() *TokenSource {
	return &TokenSource{}
}

// Init loads the token, preferring the ASSIST_TOKEN environment variable and
// falling back to the token file under the user config directory. A missing
// token is not an error; the source initializes empty and requests go out
// unauthenticated.
func (s *TokenSource) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token := os.Getenv("ASSIST_TOKEN"); token != "" {
		s.token = token
		s.initialized = true
		return nil
	}

	path, err := tokenFilePath()
	if err != nil {
		s.initialized = true
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.initialized = true
		return nil
	}

	s.token = strings.TrimSpace(string(data))
	s.initialized = true
	return nil
}

// Token returns the current bearer token. Empty string means anonymous.
func (s *TokenSource) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return "", ErrNotInitialized
	}
	return s.token, nil
}

// Set replaces the held token, marking the source initialized.
func (s *TokenSource) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.initialized = true
}

// Clear drops the held token on logout. The source stays initialized;
// subsequent reads return the empty (anonymous) token.
func (s *TokenSource) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// tokenFilePath returns XDG_CONFIG_HOME/assist/token or ~/.config/assist/token.
func tokenFilePath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "assist", "token"), nil
}
