package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/tidx/internal/shared"
	"golang.org/x/oauth2"
)

// AuthorizeRequest is a PKCE authorization URL together with the values the caller must round-trip.
type AuthorizeRequest struct {
	URL          string `json:"url"`
	CodeVerifier string `json:"code_verifier"`
	State        string `json:"state"`
}

// BuildAuthorizeURL creates an S256 PKCE authorization URL for redirectURI.
//
// The verifier is 32 random bytes, base64url encoded without padding. It is not retained by the manager.
func (m *TokenManager) BuildAuthorizeURL(redirectURI string) AuthorizeRequest {
	cfg := *m.config
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	verifier := oauth2.GenerateVerifier()
	state := shared.GenerateState()

	return AuthorizeRequest{
		URL:          cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		CodeVerifier: verifier,
		State:        state,
	}
}

// ExchangeCode trades an authorization code for a token and stores it as the user's session.
//
// Any failure, including a response without an access token, leaves the stored credential untouched.
func (m *TokenManager) ExchangeCode(ctx context.Context, userID int64, code, redirectURI, verifier string) error {
	if code == "" || verifier == "" {
		return fmt.Errorf("%w: code and verifier are required", shared.ErrInvalidInput)
	}

	cfg := *m.config
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	tok, err := cfg.Exchange(m.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		m.logger.Warn("code exchange failed", "user", userID, "error", err)
		return fmt.Errorf("%w: code exchange failed: %w", shared.ErrUnauthenticated, err)
	}

	m.setSession(userID, tok)
	if err := m.Save(ctx, userID); err != nil {
		m.Discard(userID)
		return err
	}

	m.logger.Info("authorization code exchanged", "user", userID)
	return nil
}
