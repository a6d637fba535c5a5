package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/shared"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// TidalClient is the authenticated, rate-limited client for the TIDAL catalog API.
//
// Every call resolves the caller's session through [TokenProvider], waits on the shared [Limiter],
// and goes through a circuit breaker that opens after repeated [shared.ErrRemoteUnavailable] failures.
type TidalClient struct {
	baseURL     string
	countryCode string
	pageSize    int

	httpClient *http.Client
	tokens     TokenProvider
	limiter    Limiter
	breaker    *gobreaker.CircuitBreaker[*apiResponse]
	isMix      MixPredicate
	logger     *log.Logger

	mu       sync.Mutex
	profiles map[int64]remoteProfile
}

// remoteProfile is the TIDAL identity behind a local user's session.
type remoteProfile struct {
	UserID      string
	CountryCode string
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

type apiRequest struct {
	method string
	path   string
	query  url.Values
	form   url.Values
	header http.Header
}

// ClientOption configures a [TidalClient].
type ClientOption func(*TidalClient)

// WithClientHTTP sets the HTTP client used for API calls.
func WithClientHTTP(c *http.Client) ClientOption {
	return func(tc *TidalClient) { tc.httpClient = c }
}

// WithMixPredicate replaces the default mix classifier.
func WithMixPredicate(p MixPredicate) ClientOption {
	return func(tc *TidalClient) { tc.isMix = p }
}

// NewTidalClient creates a client for the API described by cfg.
func NewTidalClient(cfg *shared.Config, tokens TokenProvider, limiter Limiter, logger *log.Logger, opts ...ClientOption) *TidalClient {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if limiter == nil {
		limiter = NewSlidingWindowLimiter(cfg.Limiter.MaxCalls, cfg.Limiter.Period())
	}

	timeout := time.Duration(cfg.Tidal.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	pageSize := cfg.Sync.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	c := &TidalClient{
		baseURL:     strings.TrimRight(cfg.Tidal.APIURL, "/"),
		countryCode: cfg.Tidal.CountryCode,
		pageSize:    pageSize,
		httpClient:  &http.Client{Timeout: timeout},
		tokens:      tokens,
		limiter:     limiter,
		isMix:       NameMarkerPredicate(cfg.Sync.MixMarkers...),
		logger:      shared.WithLogger(logger, "component", "tidal"),
		profiles:    make(map[int64]remoteProfile),
	}
	c.breaker = newBreaker(cfg.Breaker, c.logger)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(cfg shared.BreakerConfig, logger *log.Logger) *gobreaker.CircuitBreaker[*apiResponse] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := time.Duration(cfg.OpenTimeoutSeconds) * time.Second
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker[*apiResponse](gobreaker.Settings{
		Name:        "tidal-api",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Only transient failures count against the breaker; 4xx answers mean the service is up.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, shared.ErrRemoteUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Forget drops the cached TIDAL profile for the user.
func (c *TidalClient) Forget(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.profiles, userID)
}

// profile resolves the TIDAL user id and country code for the local user's session, once per user.
func (c *TidalClient) profile(ctx context.Context, userID int64) (remoteProfile, error) {
	c.mu.Lock()
	p, ok := c.profiles[userID]
	c.mu.Unlock()
	if ok {
		return p, nil
	}

	resp, err := c.do(ctx, userID, apiRequest{method: http.MethodGet, path: "/sessions"})
	if err != nil {
		return remoteProfile{}, fmt.Errorf("failed to resolve session: %w", err)
	}

	data, err := jsonBody(resp)
	if err != nil {
		return remoteProfile{}, err
	}
	p = remoteProfile{
		UserID:      data.Get("userId").String(),
		CountryCode: data.Get("countryCode").String(),
	}
	if p.UserID == "" {
		return remoteProfile{}, fmt.Errorf("%w: session response missing userId", shared.ErrRemoteUnavailable)
	}
	if p.CountryCode == "" {
		p.CountryCode = c.countryCode
	}

	c.mu.Lock()
	c.profiles[userID] = p
	c.mu.Unlock()
	return p, nil
}

// do performs req for the user, refreshing the session once when TIDAL answers 401.
func (c *TidalClient) do(ctx context.Context, userID int64, req apiRequest) (*apiResponse, error) {
	tok, err := c.tokens.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, userID, tok, req)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusUnauthorized {
		c.logger.Debug("access token rejected, refreshing", "user", userID)
		if tok, err = c.tokens.Refresh(ctx, userID); err != nil {
			c.Forget(userID)
			return nil, err
		}
		if resp, err = c.send(ctx, userID, tok, req); err != nil {
			return nil, err
		}
		if resp.status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: token rejected after refresh", shared.ErrUnauthenticated)
		}
	}

	if err := classifyStatus(resp); err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	return resp, nil
}

// send issues one HTTP request after acquiring the limiter, inside the circuit breaker.
func (c *TidalClient) send(ctx context.Context, userID int64, tok *oauth2.Token, req apiRequest) (*apiResponse, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRemoteUnavailable, err)
	}

	resp, err := c.breaker.Execute(func() (*apiResponse, error) {
		resp, err := c.roundTrip(ctx, userID, tok, req)
		if err != nil {
			return nil, err
		}
		if resp.status == http.StatusTooManyRequests || resp.status >= 500 {
			return resp, fmt.Errorf("%w: %s %s returned status %d", shared.ErrRemoteUnavailable, req.method, req.path, resp.status)
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", shared.ErrRemoteUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *TidalClient) roundTrip(ctx context.Context, userID int64, tok *oauth2.Token, req apiRequest) (*apiResponse, error) {
	query := url.Values{}
	for k, v := range req.query {
		query[k] = v
	}
	if query.Get("countryCode") == "" {
		query.Set("countryCode", c.countryFor(userID))
	}

	endpoint := c.baseURL + req.path + "?" + query.Encode()

	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.header {
		httpReq.Header[k] = v
	}
	if req.form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	httpReq.Header.Set("Accept", "application/json")
	tok.SetAuthHeader(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", shared.ErrRemoteUnavailable, req.method, req.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrRemoteUnavailable, err)
	}

	c.logger.Debug("tidal request", "method", req.method, "path", req.path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return &apiResponse{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *TidalClient) countryFor(userID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.profiles[userID]; ok && p.CountryCode != "" {
		return p.CountryCode
	}
	return c.countryCode
}

// classifyStatus maps a non-2xx status to the error taxonomy. 401 is handled by the caller.
func classifyStatus(resp *apiResponse) error {
	switch {
	case resp.status >= 200 && resp.status < 300:
		return nil
	case resp.status == http.StatusUnauthorized:
		return shared.ErrUnauthenticated
	case resp.status == http.StatusNotFound:
		return shared.ErrNotFound
	case resp.status == http.StatusTooManyRequests || resp.status >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrRemoteUnavailable, resp.status)
	default:
		msg := gjson.GetBytes(resp.body, "userMessage").String()
		if msg == "" {
			msg = http.StatusText(resp.status)
		}
		return fmt.Errorf("%w: status %d: %s", shared.ErrRemoteRejected, resp.status, msg)
	}
}

// jsonBody validates the response body as JSON before it is queried.
func jsonBody(resp *apiResponse) (gjson.Result, error) {
	if !gjson.ValidBytes(resp.body) {
		return gjson.Result{}, fmt.Errorf("%w: malformed response body", shared.ErrRemoteUnavailable)
	}
	return gjson.ParseBytes(resp.body), nil
}
