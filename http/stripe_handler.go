package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/stripe"
)

type SubscriptionGetter interface {
	GetSubscription(ctx context.Context, id string) (stripe.Subscription, error)
}

type BillingUpdater interface {
	UpdateUserBilling(ctx context.Context, email, billingID string) (string, error)
}

type StripeDeps struct {
	SignatureSecret string
	Subscriptions   SubscriptionGetter
	Billing         BillingUpdater
}

// maxWebhookBody bounds a Stripe event body; invoices with many lines run
// past 100 KiB.
const maxWebhookBody = 512 << 10

func RegisterStripe(r chi.Router, d StripeDeps) {
	r.Post("/stripe/webhook", func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxWebhookBody))
		if err != nil {
			WriteError(w, req, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		evt, err := stripe.ConstructEvent(payload, req.Header.Get("Stripe-Signature"), d.SignatureSecret)
		if err != nil {
			logger.Warn().Err(err).Msg("stripe webhook rejected")
			WriteError(w, req, http.StatusBadRequest, "invalid_signature", "")
			return
		}
		ref, err := evt.Ref()
		if err != nil || ref.Object != "subscription" {
			// other event types are acknowledged and ignored
			render.JSON(w, req, map[string]any{"ok": true, "ignored": true})
			return
		}

		sub, err := d.Subscriptions.GetSubscription(req.Context(), ref.ID)
		if err != nil {
			logger.Error().Err(err).Str("subscription", ref.ID).Msg("fetch subscription")
			WriteError(w, req, http.StatusBadGateway, "stripe_error", "")
			return
		}
		email := strings.TrimSpace(sub.CustomerEmail)
		if email == "" {
			WriteError(w, req, http.StatusUnprocessableEntity, "customer_email_missing", "")
			return
		}

		tier := sub.Tier()
		prev, err := d.Billing.UpdateUserBilling(req.Context(), email, tier)
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, req, http.StatusNotFound, "user_not_found", "")
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("update billing tier")
			WriteError(w, req, http.StatusInternalServerError, "store_error", "")
			return
		}
		logger.Info().Str("event", evt.Type).Str("email", email).Str("from", prev).Str("to", tier).Msg("billing tier updated")
		render.JSON(w, req, map[string]any{"ok": true, "billing_id": tier})
	})
}
