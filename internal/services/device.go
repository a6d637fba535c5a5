package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/tidx/internal/shared"
	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// slowDownStep is added to the poll interval each time the provider answers slow_down (RFC 8628 section 3.5).
const slowDownStep = 5 * time.Second

// LoginStatus is the result of one device login poll.
type LoginStatus int

const (
	LoginPending LoginStatus = iota
	LoginAuthenticated
	LoginFailed
)

func (s LoginStatus) String() string {
	switch s {
	case LoginAuthenticated:
		return "authenticated"
	case LoginFailed:
		return "failed"
	default:
		return "pending"
	}
}

// DeviceLogin is what the user needs to complete a device login out of band.
type DeviceLogin struct {
	Handle          string        `json:"handle"`
	VerificationURL string        `json:"verification_url"`
	UserCode        string        `json:"user_code"`
	ExpiresAt       time.Time     `json:"expires_at"`
	Interval        time.Duration `json:"interval"`
}

type pendingLogin struct {
	handle     string
	deviceCode string
	expiresAt  time.Time
	interval   time.Duration
	throttle   *rate.Limiter
}

// deviceAuthorization accepts both the camelCase fields TIDAL sends and the RFC 8628 names.
type deviceAuthorization struct {
	DeviceCode              string `json:"deviceCode"`
	UserCode                string `json:"userCode"`
	VerificationURI         string `json:"verificationUri"`
	VerificationURIComplete string `json:"verificationUriComplete"`
	ExpiresIn               int64  `json:"expiresIn"`
	Interval                int64  `json:"interval"`

	DeviceCodeRFC              string `json:"device_code"`
	UserCodeRFC                string `json:"user_code"`
	VerificationURIRFC         string `json:"verification_uri"`
	VerificationURICompleteRFC string `json:"verification_uri_complete"`
	ExpiresInRFC               int64  `json:"expires_in"`
}

func (d *deviceAuthorization) normalize() {
	d.DeviceCode = firstNonEmpty(d.DeviceCode, d.DeviceCodeRFC)
	d.UserCode = firstNonEmpty(d.UserCode, d.UserCodeRFC)
	d.VerificationURI = firstNonEmpty(d.VerificationURI, d.VerificationURIRFC)
	d.VerificationURIComplete = firstNonEmpty(d.VerificationURIComplete, d.VerificationURICompleteRFC)
	if d.ExpiresIn == 0 {
		d.ExpiresIn = d.ExpiresInRFC
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// BeginDeviceLogin starts a device authorization for the user and records it as pending.
//
// A second call for the same user replaces the earlier pending login.
func (m *TokenManager) BeginDeviceLogin(ctx context.Context, userID int64) (*DeviceLogin, error) {
	form := url.Values{"client_id": {m.config.ClientID}}
	if len(m.scopes) > 0 {
		form.Set("scope", strings.Join(m.scopes, " "))
	}

	status, body, err := m.postForm(ctx, m.config.Endpoint.DeviceAuthURL, form)
	if err != nil {
		return nil, fmt.Errorf("%w: device authorization: %w", shared.ErrUnauthenticated, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: device authorization returned status %d", shared.ErrUnauthenticated, status)
	}

	var auth deviceAuthorization
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("%w: malformed device authorization: %v", shared.ErrUnauthenticated, err)
	}
	auth.normalize()
	if auth.DeviceCode == "" || auth.VerificationURI == "" {
		return nil, fmt.Errorf("%w: device authorization missing device code or verification uri", shared.ErrUnauthenticated)
	}

	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	now := m.now()
	p := &pendingLogin{
		handle:     shared.GenerateID(),
		deviceCode: auth.DeviceCode,
		expiresAt:  now.Add(time.Duration(auth.ExpiresIn) * time.Second),
		interval:   interval,
		throttle:   rate.NewLimiter(rate.Every(interval), 1),
	}

	m.mu.Lock()
	m.pending[userID] = p
	delete(m.sessions, userID)
	m.mu.Unlock()

	verification := firstNonEmpty(auth.VerificationURIComplete, auth.VerificationURI)
	if !strings.Contains(verification, "://") {
		verification = "https://" + verification
	}

	m.logger.Info("device login started", "user", userID, "handle", p.handle, "expires", p.expiresAt)
	return &DeviceLogin{
		Handle:          p.handle,
		VerificationURL: verification,
		UserCode:        auth.UserCode,
		ExpiresAt:       p.expiresAt,
		Interval:        interval,
	}, nil
}

// PollLogin makes at most one token request for the user's pending device login and never waits.
//
// Polls arriving sooner than the provider's interval are answered [LoginPending] without contacting TIDAL.
// A transport failure keeps the login pending and is returned alongside [LoginPending].
func (m *TokenManager) PollLogin(ctx context.Context, userID int64) (LoginStatus, error) {
	m.mu.Lock()
	p, ok := m.pending[userID]
	m.mu.Unlock()

	if !ok {
		return LoginFailed, fmt.Errorf("%w: no pending login for user %d", shared.ErrLoginFailed, userID)
	}

	now := m.now()
	if !now.Before(p.expiresAt) {
		m.failLogin(userID, p, "expired")
		return LoginFailed, fmt.Errorf("%w: device code expired", shared.ErrLoginFailed)
	}

	if !p.throttle.AllowN(now, 1) {
		return LoginPending, nil
	}

	form := url.Values{
		"grant_type":  {deviceCodeGrantType},
		"device_code": {p.deviceCode},
		"client_id":   {m.config.ClientID},
	}
	if m.config.ClientSecret != "" {
		form.Set("client_secret", m.config.ClientSecret)
	}
	if len(m.scopes) > 0 {
		form.Set("scope", strings.Join(m.scopes, " "))
	}

	status, body, err := m.postForm(ctx, m.config.Endpoint.TokenURL, form)
	if err != nil {
		m.logger.Warn("device token poll failed", "user", userID, "error", err)
		return LoginPending, fmt.Errorf("%w: %w", shared.ErrRemoteUnavailable, err)
	}
	if status >= 500 {
		return LoginPending, fmt.Errorf("%w: token endpoint returned status %d", shared.ErrRemoteUnavailable, status)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		m.failLogin(userID, p, "malformed response")
		return LoginFailed, fmt.Errorf("%w: malformed token response: %v", shared.ErrLoginFailed, err)
	}

	switch resp.Error {
	case "":
	case "authorization_pending":
		return LoginPending, nil
	case "slow_down":
		m.mu.Lock()
		p.interval += slowDownStep
		p.throttle.SetLimitAt(now, rate.Every(p.interval))
		m.mu.Unlock()
		m.logger.Debug("device poll slowed down", "user", userID, "interval", p.interval)
		return LoginPending, nil
	default:
		m.failLogin(userID, p, resp.Error)
		return LoginFailed, fmt.Errorf("%w: %s", shared.ErrLoginFailed, firstNonEmpty(resp.ErrorDescription, resp.Error))
	}

	if resp.AccessToken == "" {
		m.failLogin(userID, p, "missing access_token")
		return LoginFailed, fmt.Errorf("%w: token response missing access_token", shared.ErrLoginFailed)
	}

	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	m.mu.Lock()
	delete(m.pending, userID)
	m.sessions[userID] = tok
	m.mu.Unlock()

	if err := m.Save(ctx, userID); err != nil {
		return LoginFailed, err
	}

	m.logger.Info("device login completed", "user", userID, "handle", p.handle)
	return LoginAuthenticated, nil
}

// PendingLogin returns the handle of the user's pending device login, if any.
func (m *TokenManager) PendingLogin(userID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[userID]
	if !ok {
		return "", false
	}
	return p.handle, true
}

func (m *TokenManager) failLogin(userID int64, p *pendingLogin, reason string) {
	m.mu.Lock()
	if m.pending[userID] == p {
		delete(m.pending, userID)
	}
	delete(m.sessions, userID)
	m.mu.Unlock()

	m.logger.Warn("device login failed", "user", userID, "handle", p.handle, "reason", reason)
}

func (m *TokenManager) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
