package main

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"DAM_LISTEN_ADDR", "REDIS_ADDR", "DAM_LOG_FORMAT", "DAM_MAX_SWORD_LEVEL", "DAM_JWT_SECRET", "DAM_JWKS_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig(nil, io.Discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want, got := "127.0.0.1:8080", cfg.ListenAddr; want != got {
		t.Fatalf("unexpected listen addr: want %s got %s", want, got)
	}
	if want, got := 20, cfg.MaxSwordLevel; want != got {
		t.Fatalf("unexpected max sword level: want %d got %d", want, got)
	}
	if want, got := int64(1<<20), cfg.MaxBodyBytes; want != got {
		t.Fatalf("unexpected body limit: want %d got %d", want, got)
	}
	if want, got := 10*time.Second, cfg.ShutdownTimeout; want != got {
		t.Fatalf("unexpected shutdown timeout: want %s got %s", want, got)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected in-memory backends by default, got redis %q", cfg.RedisAddr)
	}
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	t.Setenv("DAM_LISTEN_ADDR", ":9000")
	t.Setenv("DAM_MAX_SWORD_LEVEL", "50")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig([]string{"--max-sword-level=7", "--log-format", "text"}, io.Discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want, got := ":9000", cfg.ListenAddr; want != got {
		t.Fatalf("environment not applied: want %s got %s", want, got)
	}
	if want, got := 7, cfg.MaxSwordLevel; want != got {
		t.Fatalf("flag must override environment: want %d got %d", want, got)
	}
	if want, got := "redis:6379", cfg.RedisAddr; want != got {
		t.Fatalf("unexpected redis addr: want %s got %s", want, got)
	}

	var buf bytes.Buffer
	cfg.NewLogger(&buf).Info("server.listen")
	if !strings.Contains(buf.String(), "msg=server.listen") {
		t.Fatalf("expected a text log line, got %q", buf.String())
	}
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{ListenAddr: ":8080", LogLevel: "info", LogFormat: "json", MaxSwordLevel: 20}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"negative sword level", func(c *Config) { c.MaxSwordLevel = -1 }},
		{"sword level beyond u32", func(c *Config) { over := int64(math.MaxUint32) + 1; c.MaxSwordLevel = int(over) }},
		{"two key sources", func(c *Config) { c.JWTSecret = "s"; c.JWKSURL = "https://issuer.example/jwks" }},
		{"no listen addr", func(c *Config) { c.ListenAddr = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
	c := base()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestLoadConfigRejectsArguments(t *testing.T) {
	if _, err := LoadConfig([]string{"serve"}, io.Discard); err == nil {
		t.Fatal("expected an error for a positional argument")
	}
}
