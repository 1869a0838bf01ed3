package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

func signed(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","object":"subscription"}}}`)
	now := time.Now()
	header := signed(payload, "whsec", now)

	cases := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		want    error
	}{
		{"valid", payload, header, "whsec", nil},
		{"wrong secret", payload, header, "other", webhook.ErrNoValidSignature},
		{"tampered", append([]byte(" "), payload...), header, "whsec", webhook.ErrNoValidSignature},
		{"too old", payload, signed(payload, "whsec", now.Add(-6*time.Minute)), "whsec", webhook.ErrTooOld},
		{"unsigned", payload, "", "whsec", webhook.ErrNotSigned},
		{"garbage", payload, "nonsense", "whsec", webhook.ErrInvalidHeader},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(tc.payload, tc.header, tc.secret, DefaultTolerance)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestConstructEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.created","data":{"object":{"id":"sub_9","object":"subscription"}}}`)
	evt, err := ConstructEvent(payload, signed(payload, "s", time.Now()), "s")
	if err != nil {
		t.Fatalf("ConstructEvent: %v", err)
	}
	if evt.ID != "evt_1" || evt.Type != "customer.subscription.created" {
		t.Errorf("event = %+v", evt)
	}
	ref, err := evt.Ref()
	if err != nil || ref.ID != "sub_9" || ref.Object != "subscription" {
		t.Errorf("ref = %+v, %v", ref, err)
	}

	if _, err := ConstructEvent(payload, signed(payload, "s", time.Now()), "other"); err == nil {
		t.Error("expected signature error")
	}
}

func TestSubscriptionTier(t *testing.T) {
	cases := []struct {
		sub  Subscription
		want string
	}{
		{Subscription{Status: "active", Product: "Tier 2"}, "Tier 2"},
		{Subscription{Status: "canceled", Product: "Tier 2"}, DefaultTier},
		{Subscription{Status: "active"}, DefaultTier},
		{Subscription{Status: "active", Product: "  "}, DefaultTier},
	}
	for _, tc := range cases {
		if got := tc.sub.Tier(); got != tc.want {
			t.Errorf("%+v tier = %q, want %q", tc.sub, got, tc.want)
		}
	}
}

func TestGetSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/subscriptions/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such subscription"}}`))
			return
		}
		var expand []string
		for k, v := range r.URL.Query() {
			if strings.HasPrefix(k, "expand") {
				expand = append(expand, v...)
			}
		}
		if len(expand) != 2 {
			t.Errorf("expand = %v", expand)
		}
		w.Write([]byte(`{"id":"sub_1","object":"subscription","status":"active",
			"customer":{"id":"cus_1","object":"customer","email":"payer@example.com"},
			"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item",
				"price":{"id":"price_1","object":"price","product":{"id":"prod_1","object":"product","name":"Tier 1"}}}]}}`))
	}))
	defer srv.Close()

	c := NewClient("sk_test", srv.URL)
	sub, err := c.GetSubscription(context.Background(), "sub_1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if sub.CustomerEmail != "payer@example.com" || sub.Tier() != "Tier 1" {
		t.Errorf("subscription = %+v", sub)
	}
	if _, err := c.GetSubscription(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}
