package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned for a missing, malformed, expired or foreign
// bearer token. The HTTP layer answers it with 401 and a Bearer challenge.
var ErrUnauthorized = errors.New("unauthorized")

// UserInfo is the verified caller. UserID is the token subject, which the
// state routes compare against the {user_id} path segment.
type UserInfo interface {
	UserID() string
	// Claims decodes the full claim set into ref.
	Claims(ref any) error
}

// Authenticator verifies a bearer token taken from the Authorization header.
// Implementations are safe for concurrent use and wrap ErrUnauthorized for
// every token they refuse.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (UserInfo, error)
}
