package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/ostrich-api/http"
	httpv1 "github.com/yourorg/ostrich-api/http/v1"
	"github.com/yourorg/ostrich-api/internal/auth"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/metrics"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/zillow"
)

type RouterDeps struct {
	Store     *store.Store
	Searcher  httpapi.ListingSearcher
	Details   zillow.PropertyGetter
	Verifier  *auth.Verifier
	Stripe    httpapi.SubscriptionGetter
	StripeSig string
	// RateLimit is requests per minute per IP.
	RateLimit int
}

func BuildRouter(d RouterDeps) http.Handler {
	if d.RateLimit <= 0 {
		d.RateLimit = 100
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(d.RateLimit, time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := d.Store.Ping(req.Context()); err != nil {
			httpapi.WriteError(w, req, http.StatusServiceUnavailable, "db_unavailable", err.Error())
			return
		}
		render.JSON(w, req, map[string]bool{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	authed := func(next http.Handler) http.Handler {
		return auth.Middleware(d.Verifier)(httpapi.UserMiddleware(d.Store)(next))
	}

	r.Group(func(r chi.Router) {
		r.Use(authed)
		httpapi.RegisterUsers(r)
	})
	httpapi.RegisterEmailers(r, httpapi.EmailersDeps{Store: d.Store, Searcher: d.Searcher, Authed: authed})
	httpapi.RegisterStripe(r, httpapi.StripeDeps{SignatureSecret: d.StripeSig, Subscriptions: d.Stripe, Billing: d.Store})
	httpv1.RegisterCashOnCash(r, httpv1.CashOnCashDeps{Details: d.Details, Emailers: d.Store, Authed: authed})

	return r
}
