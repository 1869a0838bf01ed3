// Package emailer runs the daily digest: every active saved search of every
// active user, capped by billing tier, becomes one email.
package emailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/ostrich-api/internal/coc"
	"github.com/yourorg/ostrich-api/internal/digest"
	"github.com/yourorg/ostrich-api/internal/events"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/metrics"
	"github.com/yourorg/ostrich-api/internal/redisx"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/mail"
	"github.com/yourorg/ostrich-api/zillow"
)

type Store interface {
	ListActiveUsers(ctx context.Context) ([]store.User, error)
	ListActiveEmailers(ctx context.Context) ([]store.Emailer, error)
}

type DigestBuilder interface {
	Build(ctx context.Context, s digest.Search) (digest.Result, error)
}

// Locker is satisfied by *redisx.Client.
type Locker interface {
	Lock(ctx context.Context, key, owner string, ttl time.Duration) (func(context.Context) error, error)
}

type Config struct {
	Concurrency int
	// DaysOn limits the search to listings this many days on the market.
	DaysOn  int
	LockTTL time.Duration
}

type Job struct {
	Store   Store
	Builder DigestBuilder
	Mail    mail.Sender
	Events  events.Publisher
	Locker  Locker
	Config  Config
	Now     func() time.Time
}

var tierCaps = map[string]int{
	"Tier 0": 1,
	"Tier 1": 3,
	"Tier 2": 10,
}

// TierCap is the number of saved searches processed per run for a billing
// tier. Unknown tiers get the free allowance.
func TierCap(tier string) int {
	if n, ok := tierCaps[strings.TrimSpace(tier)]; ok {
		return n
	}
	return 1
}

// SearchFor converts a saved search into digest input.
func SearchFor(e store.Emailer, daysOn int) digest.Search {
	s := digest.Search{
		EmailerID:   e.ID,
		UserID:      e.UserID,
		SearchParam: e.SearchParam,
		Params: zillow.SearchParams{
			Location:  e.SearchParam,
			MinPrice:  e.MinPrice,
			MaxPrice:  e.MaxPrice,
			Bedrooms:  e.Bedrooms,
			Bathrooms: e.Bathrooms,
			DaysOn:    daysOn,
		},
		Assumptions: coc.FromPercentages(e.Assumptions),
	}
	if e.Notes != nil {
		s.Notes = *e.Notes
	}
	return s
}

func (j *Job) validate() error {
	if j == nil {
		return errors.New("nil emailer job")
	}
	if j.Store == nil || j.Builder == nil || j.Mail == nil {
		return errors.New("emailer job requires store, builder and mail sender")
	}
	if j.Events == nil {
		j.Events = events.Nop{}
	}
	if j.Config.Concurrency <= 0 {
		j.Config.Concurrency = 2
	}
	if j.Config.LockTTL <= 0 {
		j.Config.LockTTL = 20 * time.Hour
	}
	if j.Now == nil {
		j.Now = time.Now
	}
	return nil
}

// Selected returns the emailers to process this run: active users only, in
// emailer id order, at most TierCap per user.
func Selected(users []store.User, emailers []store.Emailer) []store.Emailer {
	tiers := make(map[int64]string, len(users))
	for _, u := range users {
		tiers[u.ID] = u.BillingID
	}
	used := make(map[int64]int, len(users))
	out := make([]store.Emailer, 0, len(emailers))
	for _, e := range emailers {
		tier, ok := tiers[e.UserID]
		if !ok {
			continue
		}
		if used[e.UserID] >= TierCap(tier) {
			continue
		}
		used[e.UserID]++
		out = append(out, e)
	}
	return out
}

// RunOnce processes every selected emailer. One emailer failing never stops
// the others; failures are joined into the returned error.
func (j *Job) RunOnce(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	runID := uuid.NewString()
	log := logger.With().Str("run_id", runID).Logger()

	// The lock is kept until its TTL once sending starts so a restart later
	// the same day does not resend. It is released only when nothing was sent.
	release := func(context.Context) error { return nil }
	if j.Locker != nil {
		key := "ostrich:emailer:run:" + j.Now().UTC().Format("2006-01-02")
		r, err := j.Locker.Lock(ctx, key, runID, j.Config.LockTTL)
		if errors.Is(err, redisx.ErrLockHeld) {
			log.Info().Str("lock", key).Msg("another emailer run holds today's lock, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("take run lock: %w", err)
		}
		release = r
	}

	users, err := j.Store.ListActiveUsers(ctx)
	if err != nil {
		_ = release(context.Background())
		return fmt.Errorf("list users: %w", err)
	}
	all, err := j.Store.ListActiveEmailers(ctx)
	if err != nil {
		_ = release(context.Background())
		return fmt.Errorf("list emailers: %w", err)
	}
	selected := Selected(users, all)
	log.Info().Int("users", len(users)).Int("emailers", len(all)).Int("selected", len(selected)).Msg("emailer run starting")

	var (
		mu     sync.Mutex
		joined error
	)
	g := new(errgroup.Group)
	g.SetLimit(j.Config.Concurrency)
	for _, e := range selected {
		g.Go(func() error {
			if err := j.process(ctx, runID, e); err != nil {
				log.Error().Err(err).Int64("emailer_id", e.ID).Msg("emailer failed")
				mu.Lock()
				joined = errors.Join(joined, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Info().Int("processed", len(selected)).Msg("emailer run complete")
	return joined
}

// compose builds the email for s. A failed listing search yields the
// fallback body; any other build error is returned.
func compose(ctx context.Context, b DigestBuilder, s digest.Search, to string) (mail.Message, digest.Result, bool, error) {
	msg := mail.Message{To: to, Subject: digest.Subject(s.SearchParam)}
	res, err := b.Build(ctx, s)
	var serr *digest.SearchError
	switch {
	case errors.As(err, &serr):
		logger.Warn().Err(err).Str("to", to).Msg("sending fallback email")
		msg.HTML = digest.FallbackBody
		return msg, res, true, nil
	case err != nil:
		return mail.Message{}, res, false, err
	}
	msg.HTML = res.Body
	return msg, res, false, nil
}

func (j *Job) process(ctx context.Context, runID string, e store.Emailer) error {
	s := SearchFor(e, j.Config.DaysOn)
	logger.Info().Str("search", s.SearchParam).Str("to", e.Email).Msg("running search")

	msg, res, fallback, err := compose(ctx, j.Builder, s, e.Email)
	if err != nil {
		return fmt.Errorf("emailer %d: %w", e.ID, err)
	}
	if err := j.Mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("emailer %d: %w", e.ID, err)
	}
	kind := "listings"
	if fallback {
		kind = "fallback"
	}
	metrics.DigestsSent.WithLabelValues(kind).Inc()

	j.Events.PublishDigestSent(ctx, events.DigestSent{
		RunID:      runID,
		UserID:     e.UserID,
		EmailerID:  e.ID,
		To:         e.Email,
		Properties: len(res.Properties),
		Fallback:   fallback,
		SentAt:     j.Now().UTC(),
	})
	return nil
}

// Preview builds one digest for search without a saved search or the store
// and hands it to sender. The event a real run would publish goes to pub.
func Preview(ctx context.Context, b DigestBuilder, sender mail.Sender, pub events.Publisher, search string, daysOn int, a coc.Percentages) error {
	s := digest.Search{
		SearchParam: search,
		Params:      zillow.SearchParams{Location: search, DaysOn: daysOn},
		Assumptions: coc.FromPercentages(a),
	}
	msg, res, fallback, err := compose(ctx, b, s, "preview")
	if err != nil {
		return fmt.Errorf("preview build: %w", err)
	}
	if err := sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("preview write: %w", err)
	}
	pub.PublishDigestSent(ctx, events.DigestSent{
		RunID:      "preview",
		To:         msg.To,
		Properties: len(res.Properties),
		Fallback:   fallback,
		SentAt:     time.Now().UTC(),
	})
	return nil
}

// Run executes RunOnce immediately when spec is empty, otherwise on the cron
// schedule until ctx is done.
func (j *Job) Run(ctx context.Context, spec string) error {
	if spec == "" {
		return j.RunOnce(ctx)
	}
	sched, err := NewScheduler(spec, j)
	if err != nil {
		return err
	}
	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
