package zillow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/metrics"
)

// KV is the slice of redisx.Client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, val string, ttl time.Duration) error
}

// PropertyGetter is satisfied by *Client and *CachedClient.
type PropertyGetter interface {
	GetProperty(ctx context.Context, zpid string) (PropertyDetail, error)
}

// CachedClient serves property details from Redis before going upstream.
// Cache failures degrade to a direct fetch.
type CachedClient struct {
	Upstream PropertyGetter
	Cache    KV
	TTL      time.Duration
}

func propertyKey(zpid string) string { return "zillow:property:" + zpid }

func (c *CachedClient) GetProperty(ctx context.Context, zpid string) (PropertyDetail, error) {
	key := propertyKey(zpid)
	if c.Cache != nil {
		if val, err := c.Cache.Get(ctx, key); err == nil && val != "" {
			var d PropertyDetail
			if err := json.Unmarshal([]byte(val), &d); err == nil {
				metrics.CacheHits.WithLabelValues("property").Inc()
				return d, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("property").Inc()
	}

	d, err := c.Upstream.GetProperty(ctx, zpid)
	if err != nil {
		return PropertyDetail{}, err
	}
	if c.Cache != nil {
		ttl := c.TTL
		if ttl <= 0 {
			ttl = 6 * time.Hour
		}
		b, _ := json.Marshal(d)
		if err := c.Cache.Set(ctx, key, string(b), ttl); err != nil {
			logger.Debug().Err(err).Str("zpid", zpid).Msg("property cache write failed")
		}
	}
	return d, nil
}
