// Package services talks to TIDAL: OAuth session management, the rate limiter, and the catalog client.
//
// # Sessions
//
// [TokenManager] owns both login flows and keeps one session per local user id. A session is loaded
// from the [models.TokenStore] on first use and refreshed only when the API rejects its access token.
//
//   - Device flow: [TokenManager.BeginDeviceLogin] then [TokenManager.PollLogin], one request per poll
//   - PKCE flow: [TokenManager.BuildAuthorizeURL] then [TokenManager.ExchangeCode]
//
// # Catalog client
//
// [TidalClient] wraps the v1 REST API. Each call acquires the injected [Limiter] and runs through a
// gobreaker circuit breaker. Batch items are parsed one at a time with gjson; an item that does not parse
// is logged and counted in [models.TrackBatch.Skipped] instead of failing the call.
//
// # Error Handling
//
// Errors wrap the shared sentinels so callers can branch with errors.Is:
//   - [shared.ErrUnauthenticated] : no session, or the refresh after a 401 failed
//   - [shared.ErrRemoteUnavailable] : network failure, 429, 5xx, malformed body, open breaker
//   - [shared.ErrRemoteRejected] : any other 4xx
//   - [shared.ErrNotFound] : 404, or a track missing from the playlist on removal
package services
