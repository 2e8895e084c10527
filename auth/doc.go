// Package auth provides optional bearer token authentication for the state
// service. An Authenticator validates a token string and returns the
// verified subject, which the HTTP layer compares against the player the
// request addresses.
//
// # Key sources
//
// NewHMAC validates HS256 tokens signed with a shared secret. NewJWKS
// validates RS256 tokens against a remote JWKS document that is refreshed in
// the background.
//
// Example:
//
//	authn, err := auth.NewHMAC([]byte(secret), auth.WithIssuer("https://issuer.example"))
//	if err != nil { log.Fatal(err) }
//
//	ui, err := authn.CheckAuthentication(r.Context(), bearerToken)
//	if errors.Is(err, auth.ErrUnauthorized) { /* map to 401 challenge */ }
//	playerID := ui.UserID()
//
// # Errors
//
// Every validation failure wraps ErrUnauthorized.
package auth
