package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ggoodman/dungeons-and-money/internal/jwtauth"
)

// Option configures token validation.
type Option func(*jwtauth.Config)

// WithIssuer requires the "iss" claim to equal issuer.
func WithIssuer(issuer string) Option {
	return func(c *jwtauth.Config) { c.Issuer = issuer }
}

// WithAudience requires the "aud" claim to contain audience.
func WithAudience(audience string) Option {
	return func(c *jwtauth.Config) { c.Audience = audience }
}

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
func WithAllowedAlgs(algs ...string) Option {
	return func(c *jwtauth.Config) {
		c.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) Option {
	return func(c *jwtauth.Config) { c.Leeway = d }
}

// NewHMAC returns an Authenticator for tokens signed with secret.
func NewHMAC(secret []byte, opts ...Option) (Authenticator, error) {
	cfg := jwtauth.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	v, err := jwtauth.NewHMAC(cfg, secret)
	if err != nil {
		return nil, err
	}
	return &adapter{v: v}, nil
}

// NewJWKS returns an Authenticator for tokens signed by a key published at
// jwksURL. The key set is refreshed until ctx is done.
func NewJWKS(ctx context.Context, jwksURL string, opts ...Option) (Authenticator, error) {
	cfg := jwtauth.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	v, err := jwtauth.NewJWKS(ctx, cfg, jwksURL)
	if err != nil {
		return nil, err
	}
	return &adapter{v: v}, nil
}

// NewFromIssuer discovers the signing keys of issuer through its OpenID
// configuration and returns an Authenticator that requires "iss" to equal
// issuer.
func NewFromIssuer(ctx context.Context, issuer string, opts ...Option) (Authenticator, error) {
	cfg := jwtauth.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.Issuer = issuer
	v, err := jwtauth.NewFromDiscovery(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &adapter{v: v}, nil
}

// adapter wraps the internal validator to satisfy the public interface.
type adapter struct {
	v *jwtauth.Validator
}

func (ad *adapter) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	ui, err := ad.v.CheckAuthentication(ctx, tok)
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return userInfoAdapter{ui: ui}, nil
}

type userInfoAdapter struct{ ui jwtauth.UserInfo }

func (u userInfoAdapter) UserID() string       { return u.ui.UserID() }
func (u userInfoAdapter) Claims(ref any) error { return u.ui.Claims(ref) }
