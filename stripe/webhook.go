package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// DefaultTolerance is the maximum age of a signed webhook.
const DefaultTolerance = webhook.DefaultTolerance

var ErrMalformedEvent = errors.New("stripe: malformed event payload")

// Event is the subset of a Stripe event the webhook reads.
type Event struct {
	ID   string
	Type string
	raw  json.RawMessage
}

// ObjectRef identifies the object an event is about.
type ObjectRef struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

func (e Event) Ref() (ObjectRef, error) {
	var ref ObjectRef
	if len(e.raw) == 0 {
		return ObjectRef{}, ErrMalformedEvent
	}
	if err := json.Unmarshal(e.raw, &ref); err != nil {
		return ObjectRef{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return ref, nil
}

// VerifySignature checks a Stripe-Signature header against payload.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	return webhook.ValidatePayloadWithTolerance(payload, header, secret, tolerance)
}

// ConstructEvent verifies and decodes a webhook body. Events from any API
// version are accepted; only the object reference is read.
func ConstructEvent(payload []byte, header, secret string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, err
	}
	out := Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data != nil {
		out.raw = evt.Data.Raw
	}
	return out, nil
}
