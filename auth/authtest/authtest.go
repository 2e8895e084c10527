// Package authtest provides helpers for exercising authenticated handlers in
// tests.
package authtest

import (
	"context"
	"fmt"
	"time"

	"github.com/ggoodman/dungeons-and-money/auth"
	"github.com/golang-jwt/jwt/v5"
)

// Static is an authenticator that maps fixed token strings to subjects.
type Static struct {
	Tokens map[string]string
}

// NewStatic creates a Static authenticator from token → subject pairs.
func NewStatic(tokens map[string]string) *Static {
	return &Static{Tokens: tokens}
}

// CheckAuthentication implements auth.Authenticator.
func (s *Static) CheckAuthentication(ctx context.Context, tok string) (auth.UserInfo, error) {
	sub, ok := s.Tokens[tok]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", auth.ErrUnauthorized)
	}
	return staticUserInfo{userID: sub}, nil
}

type staticUserInfo struct {
	userID string
}

func (u staticUserInfo) UserID() string       { return u.userID }
func (u staticUserInfo) Claims(ref any) error { return nil }

// HMACToken mints an HS256 token for sub that expires after ttl.
func HMACToken(secret []byte, sub string, ttl time.Duration, extra map[string]any) (string, error) {
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

var _ auth.Authenticator = (*Static)(nil)
