package digest

import (
	"context"
	"strings"
	"time"

	"github.com/yourorg/ostrich-api/internal/coc"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/metrics"
	"github.com/yourorg/ostrich-api/zillow"
)

// ExtractIDs keeps the first occurrence of every non-empty zpid, in search
// order.
func ExtractIDs(cands []zillow.ListingCandidate) []string {
	seen := make(map[string]struct{}, len(cands))
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		id := strings.TrimSpace(c.ZPID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// fetchAll pauses before each detail call and drops the ids that fail.
// Only cancellation stops it early.
func (b *Builder) fetchAll(ctx context.Context, ids []string) ([]zillow.PropertyDetail, []string, error) {
	out := make([]zillow.PropertyDetail, 0, len(ids))
	var skipped []string
	for _, id := range ids {
		if err := pause(ctx, b.Delay); err != nil {
			return nil, nil, err
		}
		d, err := b.Details.GetProperty(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			derr := &DetailError{ZPID: id, Err: err}
			logger.Error().Err(derr).Str("zpid", id).Msg("could not get property details")
			metrics.DigestFailures.WithLabelValues("detail").Inc()
			skipped = append(skipped, id)
			continue
		}
		if d.ZPID == "" {
			d.ZPID = id
		}
		out = append(out, d)
	}
	return out, skipped, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// computeReturn fills MonthlyTax and, when price, tax and rent are all known,
// CashOnCash.
func computeReturn(a coc.Assumptions, computeOK bool, d zillow.PropertyDetail) Property {
	p := Property{ZPID: d.ZPID, Detail: d, MonthlyTax: d.MonthlyTax()}
	if !computeOK || d.Price == nil || p.MonthlyTax == nil || d.RentZestimate == nil || *d.Price <= 0 {
		return p
	}
	v, err := coc.Calculate(a, *d.Price, *p.MonthlyTax, *d.RentZestimate)
	if err != nil {
		logger.Debug().Err(err).Str("zpid", d.ZPID).Msg("cash on cash skipped")
		return p
	}
	p.CashOnCash = &v
	return p
}

const fragmentOpen = `<div style="border-top:1px solid black;">`

// Fold appends each rendered fragment to seed.
func Fold(seed string, props []Property) string {
	var sb strings.Builder
	sb.WriteString(seed)
	for _, p := range props {
		sb.WriteString(fragmentOpen)
		sb.WriteString(p.Fragment)
		sb.WriteString("</div>")
	}
	return sb.String()
}
