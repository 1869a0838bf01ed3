// Package stripe verifies billing webhooks and reads subscriptions from the
// Stripe API to decide a user's billing tier.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/subscription"

	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/metrics"
)

// DefaultTier is assigned to anyone without an active subscription.
const DefaultTier = "Tier 0"

var ErrNotFound = errors.New("stripe: object not found")

// Subscription is the billing view of a Stripe subscription.
type Subscription struct {
	ID            string
	Status        string
	CustomerEmail string
	// Product is the name of the first item's product.
	Product string
}

// Tier maps a subscription to a billing tier: the product name while
// active, DefaultTier otherwise.
func (s Subscription) Tier() string {
	if s.Status != string(stripego.SubscriptionStatusActive) {
		return DefaultTier
	}
	if name := strings.TrimSpace(s.Product); name != "" {
		return name
	}
	return DefaultTier
}

func fromAPI(s *stripego.Subscription) Subscription {
	out := Subscription{ID: s.ID, Status: string(s.Status)}
	if s.Customer != nil {
		out.CustomerEmail = s.Customer.Email
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		if p := s.Items.Data[0].Price; p != nil && p.Product != nil {
			out.Product = p.Product.Name
		}
	}
	return out
}

type Client struct {
	subs subscription.Client
}

// NewClient builds a client for secret. An empty baseURL uses the public
// Stripe API.
func NewClient(secret, baseURL string) *Client {
	cfg := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 10 * time.Second},
		LeveledLogger:     leveledLogger{},
		MaxNetworkRetries: stripego.Int64(2),
		EnableTelemetry:   stripego.Bool(false),
	}
	if base := strings.TrimRight(baseURL, "/"); base != "" {
		cfg.URL = stripego.String(base)
	}
	return &Client{subs: subscription.Client{
		B:   stripego.GetBackendWithConfig(stripego.APIBackend, cfg),
		Key: secret,
	}}
}

// GetSubscription fetches a subscription with its customer and product
// expanded.
func (c *Client) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	params := &stripego.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	params.AddExpand("items.data.price.product")

	start := time.Now()
	sub, err := c.subs.Get(id, params)
	metrics.UpstreamDuration.WithLabelValues("stripe", "subscription").Observe(time.Since(start).Seconds())
	metrics.UpstreamRequests.WithLabelValues("stripe", "subscription", statusLabel(err)).Inc()

	var serr *stripego.Error
	switch {
	case errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound:
		return Subscription{}, ErrNotFound
	case err != nil:
		return Subscription{}, fmt.Errorf("stripe subscription %s: %w", id, err)
	}
	return fromAPI(sub), nil
}

func statusLabel(err error) string {
	if err == nil {
		return "200"
	}
	var serr *stripego.Error
	if errors.As(err, &serr) && serr.HTTPStatusCode > 0 {
		return strconv.Itoa(serr.HTTPStatusCode)
	}
	return "error"
}

// leveledLogger routes SDK logs through the process logger.
type leveledLogger struct{}

func (leveledLogger) Debugf(format string, v ...interface{}) { logger.Debug().Msgf(format, v...) }
func (leveledLogger) Infof(format string, v ...interface{})  { logger.Debug().Msgf(format, v...) }
func (leveledLogger) Warnf(format string, v ...interface{})  { logger.Warn().Msgf(format, v...) }
func (leveledLogger) Errorf(format string, v ...interface{}) { logger.Warn().Msgf(format, v...) }
