// Package mail delivers digest emails through the SendGrid v3 API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/ostrich-api/internal/metrics"
)

// Message is one HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// DispatchError wraps any failure to hand a message to the provider.
type DispatchError struct {
	To      string
	Subject string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("send %q to %s: %v", e.Subject, e.To, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

type Config struct {
	APIKey string
	From   string
	// BaseURL overrides https://api.sendgrid.com.
	BaseURL  string
	RetryMax int
	Timeout  time.Duration
}

type SendGrid struct {
	apiKey  string
	from    string
	baseURL string
	http    *retryablehttp.Client
}

func NewSendGrid(cfg Config) *SendGrid {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = cfg.RetryMax
	if rc.RetryMax <= 0 {
		rc.RetryMax = 2
	}
	rc.HTTPClient.Timeout = cfg.Timeout
	if rc.HTTPClient.Timeout <= 0 {
		rc.HTTPClient.Timeout = 10 * time.Second
	}
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.sendgrid.com"
	}
	return &SendGrid{apiKey: cfg.APIKey, from: cfg.From, baseURL: base, http: rc}
}

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

func (s *SendGrid) Send(ctx context.Context, m Message) error {
	fail := func(err error) error {
		metrics.DigestFailures.WithLabelValues("dispatch").Inc()
		return &DispatchError{To: m.To, Subject: m.Subject, Err: err}
	}

	body, err := json.Marshal(sendRequest{
		Personalizations: []personalization{{To: []address{{Email: m.To}}}},
		From:             address{Email: s.from},
		Subject:          m.Subject,
		Content:          []content{{Type: "text/html", Value: m.HTML}},
	})
	if err != nil {
		return fail(err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.http.Do(req)
	metrics.UpstreamDuration.WithLabelValues("sendgrid", "mail_send").Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues("sendgrid", "mail_send", fmt.Sprint(resp.StatusCode)).Inc()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fail(fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}
	return nil
}

// Writer prints messages instead of sending them. Used for previews.
type Writer struct{ Out io.Writer }

func (w Writer) Send(_ context.Context, m Message) error {
	_, err := fmt.Fprintf(w.Out, "To: %s\nSubject: %s\n\n%s\n", m.To, m.Subject, m.HTML)
	return err
}
