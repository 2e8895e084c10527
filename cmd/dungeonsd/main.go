// Command dungeonsd serves the Dungeons and Money player state API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ggoodman/dungeons-and-money/auth"
	"github.com/ggoodman/dungeons-and-money/events"
	"github.com/ggoodman/dungeons-and-money/events/memorybroker"
	"github.com/ggoodman/dungeons-and-money/events/redisbroker"
	"github.com/ggoodman/dungeons-and-money/players"
	"github.com/ggoodman/dungeons-and-money/players/memorystore"
	"github.com/ggoodman/dungeons-and-money/players/redisstore"
	"github.com/ggoodman/dungeons-and-money/statehttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := LoadConfig(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	log := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, broker, closeBackends, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackends()

	svc := players.NewService(store,
		players.WithEvents(broker),
		players.WithLogger(log),
		players.WithMaxSwordLevel(uint32(cfg.MaxSwordLevel)),
	)

	opts := []statehttp.Option{
		statehttp.WithLogger(log),
		statehttp.WithEvents(broker),
		statehttp.WithMaxBodyBytes(cfg.MaxBodyBytes),
	}
	authn, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return err
	}
	if authn != nil {
		opts = append(opts, statehttp.WithAuthenticator(authn))
	}

	h, err := statehttp.New(svc, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server.listen", slog.String("addr", cfg.ListenAddr), slog.Bool("redis", cfg.RedisAddr != ""), slog.Bool("auth", authn != nil))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// openBackends selects Redis when an address is configured and in-memory
// backends otherwise.
func openBackends(ctx context.Context, cfg *Config) (players.Store, events.Broker, func(), error) {
	if cfg.RedisAddr == "" {
		store, err := memorystore.New(cfg.AccountCacheSize)
		if err != nil {
			return nil, nil, nil, err
		}
		broker := memorybroker.New()
		return store, broker, func() {
			_ = broker.Close()
			_ = store.Close()
		}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	store, err := redisstore.New(redisstore.Config{Client: client, KeyPrefix: cfg.KeyPrefix + "players:"})
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	broker, err := redisbroker.New(redisbroker.Config{Client: client, KeyPrefix: cfg.KeyPrefix + "events:"})
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	// Store and broker share one client; closing it once releases both.
	return store, broker, func() { _ = client.Close() }, nil
}

func newAuthenticator(ctx context.Context, cfg *Config) (auth.Authenticator, error) {
	var opts []auth.Option
	if cfg.JWTIssuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, auth.WithAudience(cfg.JWTAudience))
	}
	switch {
	case cfg.JWTSecret != "":
		return auth.NewHMAC([]byte(cfg.JWTSecret), opts...)
	case cfg.JWKSURL != "":
		return auth.NewJWKS(ctx, cfg.JWKSURL, opts...)
	case cfg.JWTIssuer != "":
		return auth.NewFromIssuer(ctx, cfg.JWTIssuer, opts...)
	}
	return nil, nil
}
