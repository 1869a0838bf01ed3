package emailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/yourorg/ostrich-api/internal/logger"
)

type runner interface {
	RunOnce(ctx context.Context) error
}

// Scheduler wraps robfig/cron. Overlapping runs are skipped.
type Scheduler struct {
	cron *cron.Cron
	spec string
	job  runner
}

// NewScheduler validates spec, a standard five-field cron expression or a
// descriptor such as "@daily".
func NewScheduler(spec string, job runner) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid emailer schedule %q: %w", spec, err)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &Scheduler{cron: c, spec: spec, job: job}, nil
}

func (s *Scheduler) Start(ctx context.Context) {
	// spec was validated in NewScheduler
	_, _ = s.cron.AddFunc(s.spec, func() { s.tick(ctx) })
	s.cron.Start()
	logger.Info().Str("spec", s.spec).Msg("emailer schedule started")
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info().Msg("emailer schedule stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.job.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("scheduled emailer run finished with errors")
	}
}
