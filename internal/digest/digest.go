// Package digest turns one saved search into the HTML body of a listings
// email.
//
// A build issues one listing search, then fetches every distinct property
// serially with a fixed pause between detail calls, computes the cash-on-cash
// return where the inputs allow it, renders one fragment per property and
// folds the fragments onto a header. A failed search surfaces as
// *SearchError so the caller can send the fallback email; a failed detail
// fetch only drops that property.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/ostrich-api/internal/coc"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/metrics"
	"github.com/yourorg/ostrich-api/zillow"
)

// DefaultDelay keeps the detail loop near the upstream per-second ceiling.
const DefaultDelay = 700 * time.Millisecond

// FallbackBody is sent instead of a digest when the listing search fails.
const FallbackBody = "Looks like not much showed on the market yesterday!"

// Subject is shared by the digest and the fallback email.
func Subject(searchParam string) string { return "New Ostrich Listings: " + searchParam }

type ListingSearcher interface {
	SearchListings(ctx context.Context, p zillow.SearchParams) ([]zillow.ListingCandidate, error)
}

type DetailFetcher interface {
	GetProperty(ctx context.Context, zpid string) (zillow.PropertyDetail, error)
}

// Recorder receives every rendered property. Implementations must not block.
type Recorder interface {
	Record(s Search, p Property)
}

// Search is the digest's view of a saved search.
type Search struct {
	EmailerID   int64
	UserID      int64
	SearchParam string
	Notes       string
	Params      zillow.SearchParams
	Assumptions coc.Assumptions
}

// Property is one detailed listing as it appears in the digest.
type Property struct {
	ZPID       string
	Detail     zillow.PropertyDetail
	MonthlyTax *float64
	CashOnCash *float64
	Fragment   string
}

type Result struct {
	Body       string
	Properties []Property
	Skipped    []string
}

// SearchError means the listing search itself failed. Recoverable: the
// caller sends FallbackBody.
type SearchError struct {
	SearchParam string
	Err         error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("listing search %q failed: %v", e.SearchParam, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// DetailError is scoped to one property and never fails a build.
type DetailError struct {
	ZPID string
	Err  error
}

func (e *DetailError) Error() string {
	return fmt.Sprintf("property %s detail failed: %v", e.ZPID, e.Err)
}

func (e *DetailError) Unwrap() error { return e.Err }

type Builder struct {
	Searcher ListingSearcher
	Details  DetailFetcher
	Recorder Recorder
	// Delay precedes every detail call. Zero disables the pause.
	Delay time.Duration
}

func NewBuilder(s ListingSearcher, d DetailFetcher) *Builder {
	return &Builder{Searcher: s, Details: d, Delay: DefaultDelay}
}

// Build runs the whole flow for s. Only a context error or *SearchError is
// returned; detail failures are logged and listed in Result.Skipped.
func (b *Builder) Build(ctx context.Context, s Search) (Result, error) {
	if b.Searcher == nil || b.Details == nil {
		return Result{}, errors.New("digest builder requires searcher and detail fetcher")
	}
	seed, err := Header(s)
	if err != nil {
		return Result{}, err
	}

	cands, err := b.Searcher.SearchListings(ctx, s.Params)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		metrics.DigestFailures.WithLabelValues("search").Inc()
		return Result{}, &SearchError{SearchParam: s.SearchParam, Err: err}
	}

	ids := ExtractIDs(cands)
	logger.Info().Str("search", s.SearchParam).Int("candidates", len(cands)).Int("properties", len(ids)).Msg("listing search complete")

	computeOK := true
	if err := s.Assumptions.Validate(); err != nil {
		computeOK = false
		logger.Warn().Err(err).Int64("emailer_id", s.EmailerID).Msg("assumptions invalid, returns will not be computed")
	}

	details, skipped, err := b.fetchAll(ctx, ids)
	if err != nil {
		return Result{}, err
	}

	props := make([]Property, 0, len(details))
	for _, d := range details {
		p := computeReturn(s.Assumptions, computeOK, d)
		frag, err := RenderFragment(p)
		if err != nil {
			logger.Error().Err(err).Str("zpid", p.ZPID).Msg("render fragment")
			skipped = append(skipped, p.ZPID)
			continue
		}
		p.Fragment = frag
		props = append(props, p)
		if b.Recorder != nil {
			b.Recorder.Record(s, p)
		}
	}
	metrics.DigestProperties.Observe(float64(len(props)))

	return Result{Body: Fold(seed, props), Properties: props, Skipped: skipped}, nil
}
