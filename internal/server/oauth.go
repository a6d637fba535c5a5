package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
)

// CodeExchanger trades an authorization code for a stored session.
//
// Implemented by [services.TokenManager].
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, userID int64, code, redirectURI, verifier string) error
}

// OAuthResult contains the outcome of a PKCE authorization callback.
type OAuthResult struct {
	UserID int64
	err    error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler receives the PKCE authorization callback for one pending login and exchanges the code.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	exchanger   CodeExchanger
	userID      int64
	request     services.AuthorizeRequest
	redirectURI string
	path        string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler for the login started by req, serving the path of redirectURI.
func NewOAuthHandler(exchanger CodeExchanger, userID int64, req services.AuthorizeRequest, redirectURI string) *OAuthHandler {
	path := "/callback"
	if u, err := url.Parse(redirectURI); err == nil && u.Path != "" {
		path = u.Path
	}
	return &OAuthHandler{
		exchanger:   exchanger,
		userID:      userID,
		request:     req,
		redirectURI: redirectURI,
		path:        path,
		resultChan:  make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP validates the state, exchanges the code with the stored verifier and reports the result once.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.request.State {
		h.Send(OAuthResult{UserID: h.userID, err: fmt.Errorf("%w: invalid state parameter", shared.ErrLoginFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrLoginFailed, query.Get("error"), query.Get("error_description"))
		h.Send(OAuthResult{UserID: h.userID, err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if err := h.exchanger.ExchangeCode(r.Context(), h.userID, code, h.redirectURI, h.request.CodeVerifier); err != nil {
		h.Send(OAuthResult{UserID: h.userID, err: err})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{UserID: h.userID})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>TIDAL connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #111; }
        .container { text-align: center; background: #1e1e1e; padding: 2rem; border-radius: 8px; }
        h1 { color: #33ffee; margin: 0 0 1rem 0; }
        p { color: #aaa; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ TIDAL connected</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
