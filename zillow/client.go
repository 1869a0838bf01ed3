package zillow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/metrics"
)

var (
	ErrQuotaExceeded     = errors.New("zillow: rapidapi quota exceeded")
	ErrNotFound          = errors.New("zillow: property not found")
	ErrMalformedResponse = errors.New("zillow: malformed response")
)

type Config struct {
	Host string
	Key  string
	// BaseURL overrides https://{Host}.
	BaseURL           string
	RequestsPerSecond float64 // 0 disables the limiter
	RetryMax          int
	Timeout           time.Duration
}

// Client talks to the Zillow RapidAPI. It is safe for concurrent use; the
// limiter and breaker are shared by every caller.
type Client struct {
	host    string
	key     string
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg Config) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	if rc.HTTPClient.Timeout <= 0 {
		rc.HTTPClient.Timeout = 6 * time.Second
	}
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://" + cfg.Host
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "zillow",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &Client{
		host:    cfg.Host,
		key:     cfg.Key,
		baseURL: base,
		http:    rc,
		limiter: rate.NewLimiter(limit, 1),
		breaker: breaker,
	}
}

// SearchURL builds the propertyExtendedSearch URL for p.
func (c *Client) SearchURL(p SearchParams) string {
	q := url.Values{}
	q.Set("location", p.Location)
	homeType := p.HomeType
	if homeType == "" {
		homeType = "Houses"
	}
	q.Set("home_type", homeType)
	if p.DaysOn > 0 {
		q.Set("daysOn", strconv.Itoa(p.DaysOn))
	}
	if p.MinPrice != nil {
		q.Set("minPrice", strconv.FormatFloat(*p.MinPrice, 'f', -1, 64))
	}
	if p.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatFloat(*p.MaxPrice, 'f', -1, 64))
	}
	if p.Bedrooms != nil && *p.Bedrooms > 0 {
		q.Set("bedsMin", strconv.Itoa(*p.Bedrooms))
	}
	if p.Bathrooms != nil && *p.Bathrooms > 0 {
		q.Set("bathsMin", strconv.Itoa(*p.Bathrooms))
	}
	return fmt.Sprintf("%s/propertyExtendedSearch?%s", c.baseURL, q.Encode())
}

// SearchListings returns search hits in the order the API ranked them.
func (c *Client) SearchListings(ctx context.Context, p SearchParams) ([]ListingCandidate, error) {
	if strings.TrimSpace(p.Location) == "" {
		return nil, errors.New("zillow: search location required")
	}
	raw, err := c.get(ctx, "search", c.SearchURL(p))
	if err != nil {
		return nil, err
	}
	cands, err := MapSearchPayload(raw)
	if err != nil {
		return nil, fmt.Errorf("zillow search decode: %w", err)
	}
	return cands, nil
}

// GetProperty fetches the detail record for one zpid.
func (c *Client) GetProperty(ctx context.Context, zpid string) (PropertyDetail, error) {
	if zpid == "" {
		return PropertyDetail{}, ErrNotFound
	}
	u := fmt.Sprintf("%s/property?zpid=%s", c.baseURL, url.QueryEscape(zpid))
	raw, err := c.get(ctx, "property", u)
	if err != nil {
		return PropertyDetail{}, err
	}
	d, err := MapPropertyPayload(raw)
	if err != nil {
		return PropertyDetail{}, fmt.Errorf("zillow property %s decode: %w", zpid, err)
	}
	if d.ZPID == "" {
		d.ZPID = zpid
	}
	return d, nil
}

func (c *Client) get(ctx context.Context, endpoint, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("X-RapidAPI-Host", c.host)
		req.Header.Set("X-RapidAPI-Key", c.key)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues("zillow", endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, ErrQuotaExceeded
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode >= 400:
			var body map[string]any
			_ = json.NewDecoder(resp.Body).Decode(&body)
			return nil, fmt.Errorf("zillow error %d: %v", resp.StatusCode, body)
		}
		return ioReadAllLimit(resp.Body, 4<<20) // 4MB guard
	})
	metrics.UpstreamDuration.WithLabelValues("zillow", endpoint).Observe(time.Since(start).Seconds())
	return raw, err
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
