// Package events announces dispatched digests to other services.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yourorg/ostrich-api/internal/logger"
)

// DigestSentChannel is the Redis pub/sub channel for DigestSent.
const DigestSentChannel = "digest.sent"

// DigestSent describes one email handed to the mail provider.
type DigestSent struct {
	RunID      string    `json:"run_id"`
	UserID     int64     `json:"user_id"`
	EmailerID  int64     `json:"emailer_id"`
	To         string    `json:"to"`
	Properties int       `json:"properties"`
	Fallback   bool      `json:"fallback"`
	SentAt     time.Time `json:"sent_at"`
}

// Publisher never blocks the caller on delivery problems.
type Publisher interface {
	PublishDigestSent(ctx context.Context, evt DigestSent)
}

// InMemory buffers events on a channel and drops when full.
type InMemory struct{ ch chan DigestSent }

func NewInMemory(buffer int) *InMemory {
	if buffer <= 0 {
		buffer = 256
	}
	return &InMemory{ch: make(chan DigestSent, buffer)}
}

func (m *InMemory) PublishDigestSent(_ context.Context, evt DigestSent) {
	select {
	case m.ch <- evt:
	default:
	}
}

func (m *InMemory) Events() <-chan DigestSent { return m.ch }

type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Redis publishes JSON events with PUBLISH. Failures are logged.
type Redis struct{ Client publisher }

func (r Redis) PublishDigestSent(ctx context.Context, evt DigestSent) {
	b, err := json.Marshal(evt)
	if err != nil {
		logger.Error().Err(err).Msg("marshal digest.sent")
		return
	}
	if err := r.Client.Publish(ctx, DigestSentChannel, b); err != nil {
		logger.Warn().Err(err).Int64("emailer_id", evt.EmailerID).Msg("publish digest.sent failed (non-fatal)")
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishDigestSent(context.Context, DigestSent) {}
