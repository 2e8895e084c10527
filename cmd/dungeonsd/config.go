package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/pflag"
)

// Config is the process configuration. Values come from the environment and
// may be overridden on the command line.
type Config struct {
	// ENV: DAM_LISTEN_ADDR
	ListenAddr string `env:"DAM_LISTEN_ADDR,default=127.0.0.1:8080"`
	// RedisAddr like "localhost:6379". Empty selects in-memory backends.
	// ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR"`
	// KeyPrefix for all Redis keys. ENV: DAM_KEY_PREFIX
	KeyPrefix string `env:"DAM_KEY_PREFIX,default=dam:"`

	LogLevel  string `env:"DAM_LOG_LEVEL,default=info"`
	LogFormat string `env:"DAM_LOG_FORMAT,default=json"`

	MaxSwordLevel    int   `env:"DAM_MAX_SWORD_LEVEL,default=20"`
	AccountCacheSize int   `env:"DAM_ACCOUNT_CACHE_SIZE,default=10000"`
	MaxBodyBytes     int64 `env:"DAM_MAX_BODY_BYTES,default=1048576"`

	// Authentication is enabled when a shared secret, a JWKS URL or an
	// issuer is configured. An issuer alone selects OpenID discovery.
	JWTSecret   string `env:"DAM_JWT_SECRET"`
	JWTIssuer   string `env:"DAM_JWT_ISSUER"`
	JWTAudience string `env:"DAM_JWT_AUDIENCE"`
	JWKSURL     string `env:"DAM_JWKS_URL"`

	ShutdownTimeout time.Duration `env:"DAM_SHUTDOWN_TIMEOUT,default=10s"`
}

// LoadConfig reads the environment and then applies flags from args. Usage
// and flag errors are written to output.
func LoadConfig(args []string, output io.Writer) (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	fs := pflag.NewFlagSet("dungeonsd", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to serve HTTP on")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address; empty keeps state in memory")
	fs.StringVar(&cfg.KeyPrefix, "key-prefix", cfg.KeyPrefix, "prefix for Redis keys")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or text")
	fs.IntVar(&cfg.MaxSwordLevel, "max-sword-level", cfg.MaxSwordLevel, "highest sword level the secure endpoint accepts")
	fs.IntVar(&cfg.AccountCacheSize, "account-cache-size", cfg.AccountCacheSize, "accounts kept by the in-memory store")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "request body size limit")
	fs.StringVar(&cfg.JWKSURL, "jwks-url", cfg.JWKSURL, "JWKS URL for bearer token validation")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports inconsistent settings.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxSwordLevel < 0 || int64(c.MaxSwordLevel) > math.MaxUint32 {
		return fmt.Errorf("max sword level must be between 0 and %d, got %d", uint32(math.MaxUint32), c.MaxSwordLevel)
	}
	if c.JWTSecret != "" && c.JWKSURL != "" {
		return errors.New("configure either a JWT secret or a JWKS URL, not both")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// NewLogger builds the process logger described by c.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
