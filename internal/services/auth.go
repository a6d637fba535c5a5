package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
	"golang.org/x/oauth2"
)

// AuthState is the lifecycle state of one local user's TIDAL session.
type AuthState int

const (
	Unauthenticated AuthState = iota
	PendingAuthorization
	Authenticated
	Expired
)

func (s AuthState) String() string {
	switch s {
	case PendingAuthorization:
		return "pending_authorization"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// TokenProvider hands out access tokens per local user and refreshes them on demand.
type TokenProvider interface {
	Token(ctx context.Context, userID int64) (*oauth2.Token, error)
	Refresh(ctx context.Context, userID int64) (*oauth2.Token, error)
}

// TokenManager owns the OAuth flows and the per-user session cache.
//
// Sessions are keyed by local user id; a session is loaded from the [models.TokenStore] on first use
// and refreshed lazily when the API answers 401.
type TokenManager struct {
	config     *oauth2.Config
	scopes     []string
	store      models.TokenStore
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[int64]*oauth2.Token
	pending  map[int64]*pendingLogin
}

// NewTokenManager creates a TokenManager for the TIDAL OAuth endpoints in cfg.
func NewTokenManager(cfg shared.TidalConfig, store models.TokenStore, logger *log.Logger) *TokenManager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TokenManager{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:       cfg.AuthURL,
				TokenURL:      cfg.TokenURL,
				DeviceAuthURL: cfg.DeviceAuthURL,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		scopes:     cfg.Scopes,
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		logger:     shared.WithLogger(logger, "component", "auth"),
		now:        time.Now,
		sessions:   make(map[int64]*oauth2.Token),
		pending:    make(map[int64]*pendingLogin),
	}
}

// WithHTTPClient replaces the HTTP client used for token endpoint calls.
func (m *TokenManager) WithHTTPClient(c *http.Client) *TokenManager {
	m.httpClient = c
	return m
}

// WithClock replaces the manager's time source.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// State reports the lifecycle state of the user's session.
func (m *TokenManager) State(userID int64) AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[userID]; ok {
		return PendingAuthorization
	}

	tok, ok := m.sessions[userID]
	switch {
	case !ok:
		return Unauthenticated
	case !tok.Expiry.IsZero() && !m.now().Before(tok.Expiry):
		return Expired
	default:
		return Authenticated
	}
}

// Load restores the user's persisted credential into the session cache without refreshing it,
// even when the stored access token has already expired.
func (m *TokenManager) Load(ctx context.Context, userID int64) (*oauth2.Token, error) {
	cred, err := m.store.GetCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: no stored credential for user %d", shared.ErrUnauthenticated, userID)
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	tok := tokenFromCredential(cred)
	m.setSession(userID, tok)
	m.logger.Debug("loaded session", "user", userID, "expiry", tok.Expiry)
	return tok, nil
}

// Token returns the cached session token for the user, loading it from the store on a cache miss.
func (m *TokenManager) Token(ctx context.Context, userID int64) (*oauth2.Token, error) {
	m.mu.Lock()
	tok, ok := m.sessions[userID]
	m.mu.Unlock()

	if ok {
		return tok, nil
	}
	return m.Load(ctx, userID)
}

// Save persists the user's session token, skipping the write when the store already holds the same token.
func (m *TokenManager) Save(ctx context.Context, userID int64) error {
	m.mu.Lock()
	tok, ok := m.sessions[userID]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: no session for user %d", shared.ErrUnauthenticated, userID)
	}

	cred := credentialFromToken(userID, tok)
	if stored, err := m.store.GetCredential(ctx, userID); err == nil && stored.Equal(cred) {
		return nil
	}

	if err := m.store.SaveCredential(ctx, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	m.logger.Debug("saved credential", "user", userID)
	return nil
}

// Refresh exchanges the session's refresh token for a new access token and persists it.
//
// When the refresh fails the session is dropped and the user must log in again. The stored credential is left untouched.
func (m *TokenManager) Refresh(ctx context.Context, userID int64) (*oauth2.Token, error) {
	current, err := m.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	if current.RefreshToken == "" {
		m.Discard(userID)
		return nil, fmt.Errorf("%w: no refresh token for user %d", shared.ErrUnauthenticated, userID)
	}

	stale := &oauth2.Token{RefreshToken: current.RefreshToken}
	tok, err := m.config.TokenSource(m.oauthContext(ctx), stale).Token()
	if err != nil {
		m.Discard(userID)
		m.logger.Warn("token refresh failed", "user", userID, "error", err)
		return nil, fmt.Errorf("%w: refresh failed: %w", shared.ErrUnauthenticated, err)
	}

	m.setSession(userID, tok)
	if err := m.Save(ctx, userID); err != nil {
		return nil, err
	}

	m.logger.Info("refreshed access token", "user", userID)
	return tok, nil
}

// Discard drops the user's in-memory session.
func (m *TokenManager) Discard(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *TokenManager) setSession(userID int64, tok *oauth2.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = tok
}

func tokenFromCredential(c *models.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

func credentialFromToken(userID int64, tok *oauth2.Token) models.Credential {
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return models.Credential{
		UserID:       userID,
		TokenType:    tokenType,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry.UTC(),
	}
}
