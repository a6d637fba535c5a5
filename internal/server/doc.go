// Package server runs the short-lived local HTTP server that completes a TIDAL PKCE login.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, hands the code and PKCE verifier to a [CodeExchanger]
// and sends the result through a channel. It only processes one callback.
//
// The CLI starts the server on the configured host and port, opens the authorize URL in a browser,
// waits for the result and shuts the server down.
package server
