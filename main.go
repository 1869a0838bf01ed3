package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/yourorg/ostrich-api/internal/auth"
	"github.com/yourorg/ostrich-api/internal/config"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/redisx"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/stripe"
	"github.com/yourorg/ostrich-api/zillow"
)

func main() {
	if err := run(); err != nil {
		logger.Fatal().Err(err).Msg("ostrich-api")
	}
}

// run owns every resource so deferred closes happen before main exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := errors.Join(cfg.RequireDatabase(), cfg.RequireZillow()); err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}

	zc := zillow.NewClient(zillow.Config{
		Host:              cfg.Zillow.Host,
		Key:               cfg.Zillow.Key,
		BaseURL:           cfg.Zillow.BaseURL,
		RequestsPerSecond: cfg.Zillow.RequestsPerSecond,
		RetryMax:          cfg.Zillow.RetryMax,
		Timeout:           cfg.Zillow.Timeout,
	})
	details := &zillow.CachedClient{Upstream: zc, TTL: cfg.Zillow.DetailCacheTTL}
	rdb, err := redisx.New(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, property cache disabled")
	} else {
		defer rdb.Close()
		details.Cache = rdb
	}

	router := BuildRouter(RouterDeps{
		Store:     st,
		Searcher:  zc,
		Details:   details,
		Verifier:  &auth.Verifier{Key: []byte(cfg.Auth.JWTSigningKey), Admins: cfg.Auth.AdminEmails},
		Stripe:    stripe.NewClient(cfg.Stripe.Secret, cfg.Stripe.BaseURL),
		StripeSig: cfg.Stripe.SignatureSecret,
		RateLimit: cfg.Server.RateLimit,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-rootCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("ostrich-api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
