package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/ostrich-api/internal/coc"
	"github.com/yourorg/ostrich-api/internal/config"
	"github.com/yourorg/ostrich-api/internal/digest"
	"github.com/yourorg/ostrich-api/internal/emailer"
	"github.com/yourorg/ostrich-api/internal/env"
	"github.com/yourorg/ostrich-api/internal/events"
	"github.com/yourorg/ostrich-api/internal/history"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/redisx"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/mail"
	"github.com/yourorg/ostrich-api/zillow"
)

// previewAssumptions are used when printing a single digest without a
// saved search.
var previewAssumptions = coc.Percentages{
	Insurance: 60, Vacancy: 5, PropertyManagement: 4, Capex: 5, Repairs: 5,
	DownPayment: 25, ClosingCost: 4, LoanInterest: 4, LoanMonths: 240,
}

func main() {
	if err := run(); err != nil {
		logger.Fatal().Err(err).Msg("emailer")
	}
}

// run owns every resource so deferred closes happen before main exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := cfg.RequireZillow(); err != nil {
		return err
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zc := zillow.NewClient(zillow.Config{
		Host:              cfg.Zillow.Host,
		Key:               cfg.Zillow.Key,
		BaseURL:           cfg.Zillow.BaseURL,
		RequestsPerSecond: cfg.Zillow.RequestsPerSecond,
		RetryMax:          cfg.Zillow.RetryMax,
		Timeout:           cfg.Zillow.Timeout,
	})
	builder := digest.NewBuilder(zc, zc)
	builder.Delay = cfg.Emailer.Delay

	if search := cfg.Emailer.PreviewSearch; search != "" {
		pub := events.NewInMemory(1)
		if err := emailer.Preview(rootCtx, builder, mail.Writer{Out: os.Stdout}, pub, search, cfg.Emailer.DaysOn, previewAssumptions); err != nil {
			return err
		}
		evt := <-pub.Events()
		logger.Info().Int("properties", evt.Properties).Bool("fallback", evt.Fallback).Msg("preview complete")
		return nil
	}

	if err := errors.Join(cfg.RequireDatabase(), cfg.RequireMail()); err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}

	job := &emailer.Job{
		Store:   st,
		Builder: builder,
		Mail: mail.NewSendGrid(mail.Config{
			APIKey:  cfg.SendGrid.APIKey,
			From:    cfg.SendGrid.From,
			BaseURL: cfg.SendGrid.BaseURL,
		}),
		Events: events.Nop{},
		Config: emailer.Config{
			Concurrency: cfg.Emailer.Concurrency,
			DaysOn:      cfg.Emailer.DaysOn,
			LockTTL:     cfg.Emailer.LockTTL,
		},
	}

	rdb, err := redisx.New(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without cache, run lock or events")
	} else {
		defer rdb.Close()
		builder.Details = &zillow.CachedClient{Upstream: zc, Cache: rdb, TTL: cfg.Zillow.DetailCacheTTL}
		job.Locker = rdb
		job.Events = events.Redis{Client: rdb}
	}

	hist := history.NewWriter(st, env.GetInt("HISTORY_QUEUE_SIZE", 512), env.GetInt("HISTORY_WORKERS", 2))
	builder.Recorder = hist
	defer hist.Close()

	if err := job.Run(rootCtx, cfg.Emailer.Schedule); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("emailer run finished with errors")
	}
	return nil
}
