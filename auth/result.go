package auth

import (
	"fmt"
	"net/http"
)

// AuthenticationChallenge describes an HTTP challenge (status + WWW-Authenticate header).
type AuthenticationChallenge struct {
	Status          int
	WWWAuthenticate string
}

// NewAuthenticationRequired builds a challenge indicating credentials are required.
func NewAuthenticationRequired(realm string) *AuthenticationChallenge {
	return &AuthenticationChallenge{
		Status:          http.StatusUnauthorized,
		WWWAuthenticate: fmt.Sprintf(`Bearer realm=%q`, realm),
	}
}

// NewInvalidAuthorizationHeader builds a challenge for a malformed Authorization header.
func NewInvalidAuthorizationHeader(realm string) *AuthenticationChallenge {
	return &AuthenticationChallenge{
		Status:          http.StatusBadRequest,
		WWWAuthenticate: fmt.Sprintf(`Bearer realm=%q, error="invalid_request", error_description="Invalid Authorization header"`, realm),
	}
}

// NewInvalidTokenResult builds a challenge indicating the token is invalid.
func NewInvalidTokenResult(realm string, description string) *AuthenticationChallenge {
	return &AuthenticationChallenge{
		Status:          http.StatusUnauthorized,
		WWWAuthenticate: fmt.Sprintf(`Bearer realm=%q, error="invalid_token", error_description=%q`, realm, description),
	}
}
