// Package session keeps a bearer credential pair and makes authenticated
// API calls with it.
//
// A Manager holds the current access and refresh tokens, mirrored into a
// credstore.Store so they survive restarts. Every call made through
// Manager.Request carries the access token and may rotate the pair:
//
//   - passively, when the server returns X-Token-Refreshed: true together
//     with X-New-Access-Token and X-New-Refresh-Token
//   - passively, when a profile response body reports token_refreshed
//     with new_tokens
//   - actively, when a call is answered with 401: the refresh token is
//     exchanged at the refresh endpoint and the call is reissued once
//
// When the active exchange fails the credentials are cleared, the
// Navigator is asked to route the user to the login entry point and the
// caller receives domain.ErrSessionExpired.
//
// Concurrent callers that hit 401 at the same time share one refresh
// exchange.
package session
