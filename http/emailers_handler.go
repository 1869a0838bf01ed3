package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/ostrich-api/internal/auth"
	"github.com/yourorg/ostrich-api/internal/coc"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/internal/validation"
	"github.com/yourorg/ostrich-api/zillow"
)

type EmailerStore interface {
	CreateEmailer(ctx context.Context, userID int64, in store.EmailerInput) (store.Emailer, error)
	UpdateEmailer(ctx context.Context, userID, id int64, in store.EmailerInput) (store.Emailer, error)
	DeactivateEmailer(ctx context.Context, userID, id int64) error
	GetEmailer(ctx context.Context, userID, id int64) (store.Emailer, error)
	ListEmailersForUser(ctx context.Context, userID int64) ([]store.Emailer, error)
	ListActiveEmailers(ctx context.Context) ([]store.Emailer, error)
	ListListingData(ctx context.Context, userID, emailerID int64, limit int) ([]store.ListingData, error)
}

type ListingSearcher interface {
	SearchListings(ctx context.Context, p zillow.SearchParams) ([]zillow.ListingCandidate, error)
}

type EmailersDeps struct {
	Store    EmailerStore
	Searcher ListingSearcher
	// Authed wraps routes that need a resolved user.
	Authed func(http.Handler) http.Handler
}

// missingAddress stands in for search hits without an address.
const missingAddress = "Missing"

func RegisterEmailers(r chi.Router, d EmailersDeps) {
	// public: lets the signup form preview a market before saving it
	r.Get("/emailers/test-search-param", func(w http.ResponseWriter, req *http.Request) {
		testSearchParam(w, req, d)
	})

	r.Group(func(r chi.Router) {
		if d.Authed != nil {
			r.Use(d.Authed)
		}
		r.Get("/emailers", func(w http.ResponseWriter, req *http.Request) {
			u, _ := UserFrom(req.Context())
			list, err := d.Store.ListEmailersForUser(req.Context(), u.ID)
			if err != nil {
				storeError(w, req, err)
				return
			}
			render.JSON(w, req, nonNil(list))
		})

		r.Post("/emailers", func(w http.ResponseWriter, req *http.Request) {
			u, _ := UserFrom(req.Context())
			in, ok := readEmailerInput(w, req)
			if !ok {
				return
			}
			e, err := d.Store.CreateEmailer(req.Context(), u.ID, in)
			if err != nil {
				storeError(w, req, err)
				return
			}
			render.Status(req, http.StatusCreated)
			render.JSON(w, req, e)
		})

		r.With(auth.RequireAdmin).Get("/emailers/all", func(w http.ResponseWriter, req *http.Request) {
			list, err := d.Store.ListActiveEmailers(req.Context())
			if err != nil {
				storeError(w, req, err)
				return
			}
			render.JSON(w, req, nonNil(list))
		})

		r.Get("/emailers/{id}", func(w http.ResponseWriter, req *http.Request) {
			u, _ := UserFrom(req.Context())
			id, ok := pathID(req, "id")
			if !ok {
				WriteError(w, req, http.StatusBadRequest, "invalid_id", "")
				return
			}
			e, err := d.Store.GetEmailer(req.Context(), u.ID, id)
			if err != nil {
				storeError(w, req, err)
				return
			}
			render.JSON(w, req, e)
		})

		r.Put("/emailers/{id}", func(w http.ResponseWriter, req *http.Request) {
			u, _ := UserFrom(req.Context())
			id, ok := pathID(req, "id")
			if !ok {
				WriteError(w, req, http.StatusBadRequest, "invalid_id", "")
				return
			}
			in, ok := readEmailerInput(w, req)
			if !ok {
				return
			}
			e, err := d.Store.UpdateEmailer(req.Context(), u.ID, id, in)
			if err != nil {
				storeError(w, req, err)
				return
			}
			render.JSON(w, req, e)
		})

		r.Delete("/emailers/{id}", func(w http.ResponseWriter, req *http.Request) {
			u, _ := UserFrom(req.Context())
			id, ok := pathID(req, "id")
			if !ok {
				WriteError(w, req, http.StatusBadRequest, "invalid_id", "")
				return
			}
			if err := d.Store.DeactivateEmailer(req.Context(), u.ID, id); err != nil {
				storeError(w, req, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/emailers/{id}/listings", func(w http.ResponseWriter, req *http.Request) {
			u, _ := UserFrom(req.Context())
			id, ok := pathID(req, "id")
			if !ok {
				WriteError(w, req, http.StatusBadRequest, "invalid_id", "")
				return
			}
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			if _, err := d.Store.GetEmailer(req.Context(), u.ID, id); err != nil {
				storeError(w, req, err)
				return
			}
			rows, err := d.Store.ListListingData(req.Context(), u.ID, id, limit)
			if err != nil {
				storeError(w, req, err)
				return
			}
			render.JSON(w, req, nonNil(rows))
		})
	})
}

func readEmailerInput(w http.ResponseWriter, req *http.Request) (store.EmailerInput, bool) {
	var in store.EmailerInput
	if err := decodeJSON(w, req, &in); err != nil {
		WriteError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
		return in, false
	}
	if err := validation.Struct(in); err != nil {
		WriteValidation(w, req, err)
		return in, false
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		WriteError(w, req, http.StatusUnprocessableEntity, "validation_error", "min_price must not exceed max_price")
		return in, false
	}
	// a saved bundle must always be computable
	if err := coc.FromPercentages(in.Assumptions).Validate(); err != nil {
		WriteError(w, req, http.StatusUnprocessableEntity, "invalid_assumptions", err.Error())
		return in, false
	}
	return in, true
}

func testSearchParam(w http.ResponseWriter, req *http.Request, d EmailersDeps) {
	q := req.URL.Query()
	search := q.Get("search_param")
	if search == "" {
		WriteError(w, req, http.StatusBadRequest, "search_param_required", "")
		return
	}
	minP, err := queryFloat(req, "min_price")
	if err != nil {
		WriteError(w, req, http.StatusBadRequest, "invalid_min_price", err.Error())
		return
	}
	maxP, err := queryFloat(req, "max_price")
	if err != nil {
		WriteError(w, req, http.StatusBadRequest, "invalid_max_price", err.Error())
		return
	}

	logger.Info().Str("search", search).Msg("testing search param")
	cands, err := d.Searcher.SearchListings(req.Context(), zillow.SearchParams{Location: search, MinPrice: minP, MaxPrice: maxP})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, zillow.ErrQuotaExceeded) {
			status = http.StatusTooManyRequests
		}
		WriteError(w, req, status, "search_error", err.Error())
		return
	}
	addresses := make([]string, 0, len(cands))
	for _, c := range cands {
		if c.Address == "" {
			addresses = append(addresses, missingAddress)
			continue
		}
		addresses = append(addresses, c.Address)
	}
	render.JSON(w, req, addresses)
}

func storeError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, req, http.StatusNotFound, "not_found", "")
		return
	}
	logger.Error().Err(err).Str("path", req.URL.Path).Msg("store error")
	WriteError(w, req, http.StatusInternalServerError, "store_error", "")
}

// nonNil keeps empty lists rendering as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
