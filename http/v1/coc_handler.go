package v1

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/ostrich-api/http"
	"github.com/yourorg/ostrich-api/internal/coc"
	"github.com/yourorg/ostrich-api/internal/format"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/internal/validation"
	"github.com/yourorg/ostrich-api/zillow"
)

type EmailerGetter interface {
	GetEmailer(ctx context.Context, userID, id int64) (store.Emailer, error)
}

type CashOnCashDeps struct {
	Details  zillow.PropertyGetter
	Emailers EmailerGetter
	// Authed wraps the per-property route, which reads the caller's
	// saved assumptions.
	Authed func(http.Handler) http.Handler
}

// CashOnCashRequest carries assumption rates as percentages.
type CashOnCashRequest struct {
	Price       float64         `json:"price" validate:"gt=0"`
	MonthlyTax  float64         `json:"monthly_tax" validate:"gte=0"`
	MonthlyRent float64         `json:"monthly_rent" validate:"gte=0"`
	Assumptions coc.Percentages `json:"assumptions"`
}

type CashOnCashResponse struct {
	CashOnCash float64       `json:"cash_on_cash"`
	Display    string        `json:"display"`
	Breakdown  coc.Breakdown `json:"breakdown"`
}

// PropertyReturn is the per-listing answer. CashOnCash is null when the
// listing lacks price, tax or rent.
type PropertyReturn struct {
	ZPID        string         `json:"zpid"`
	Price       *float64       `json:"price"`
	MonthlyTax  *float64       `json:"monthly_tax"`
	MonthlyRent *float64       `json:"monthly_rent"`
	CashOnCash  *float64       `json:"cash_on_cash"`
	Display     string         `json:"display"`
	Breakdown   *coc.Breakdown `json:"breakdown,omitempty"`
}

func RegisterCashOnCash(r chi.Router, d CashOnCashDeps) {
	r.Post("/v1/cash-on-cash", func(w http.ResponseWriter, req *http.Request) {
		var body CashOnCashRequest
		if err := render.DecodeJSON(req.Body, &body); err != nil {
			httpapi.WriteError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		if err := validation.Struct(body); err != nil {
			httpapi.WriteValidation(w, req, err)
			return
		}
		b, err := coc.Compute(coc.FromPercentages(body.Assumptions), body.Price, body.MonthlyTax, body.MonthlyRent)
		if err != nil {
			httpapi.WriteError(w, req, http.StatusUnprocessableEntity, "invalid_assumptions", err.Error())
			return
		}
		render.JSON(w, req, CashOnCashResponse{CashOnCash: b.CashOnCash, Display: format.Percent(b.CashOnCash), Breakdown: b})
	})

	r.Group(func(r chi.Router) {
		if d.Authed != nil {
			r.Use(d.Authed)
		}
		r.Get("/v1/properties/{zpid}/cash-on-cash", func(w http.ResponseWriter, req *http.Request) {
			propertyReturn(w, req, d)
		})
	})
}

func propertyReturn(w http.ResponseWriter, req *http.Request, d CashOnCashDeps) {
	u, _ := httpapi.UserFrom(req.Context())
	zpid := chi.URLParam(req, "zpid")
	if _, err := strconv.ParseUint(zpid, 10, 64); err != nil {
		httpapi.WriteError(w, req, http.StatusBadRequest, "invalid_zpid", "")
		return
	}
	emailerID, err := strconv.ParseInt(req.URL.Query().Get("emailer_id"), 10, 64)
	if err != nil || emailerID <= 0 {
		httpapi.WriteError(w, req, http.StatusBadRequest, "emailer_id_required", "")
		return
	}

	e, err := d.Emailers.GetEmailer(req.Context(), u.ID, emailerID)
	if errors.Is(err, store.ErrNotFound) {
		httpapi.WriteError(w, req, http.StatusNotFound, "emailer_not_found", "")
		return
	}
	if err != nil {
		logger.Error().Err(err).Int64("emailer_id", emailerID).Msg("load emailer")
		httpapi.WriteError(w, req, http.StatusInternalServerError, "store_error", "")
		return
	}

	detail, err := d.Details.GetProperty(req.Context(), zpid)
	switch {
	case errors.Is(err, zillow.ErrNotFound):
		httpapi.WriteError(w, req, http.StatusNotFound, "property_not_found", "")
		return
	case errors.Is(err, zillow.ErrQuotaExceeded):
		httpapi.WriteError(w, req, http.StatusTooManyRequests, "upstream_quota_exceeded", "")
		return
	case err != nil:
		httpapi.WriteError(w, req, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	out := PropertyReturn{
		ZPID:        zpid,
		Price:       detail.Price,
		MonthlyTax:  detail.MonthlyTax(),
		MonthlyRent: detail.RentZestimate,
		Display:     format.Placeholder,
	}
	if out.Price != nil && out.MonthlyTax != nil && out.MonthlyRent != nil {
		b, err := coc.Compute(coc.FromPercentages(e.Assumptions), *out.Price, *out.MonthlyTax, *out.MonthlyRent)
		if err != nil {
			httpapi.WriteError(w, req, http.StatusUnprocessableEntity, "invalid_assumptions", err.Error())
			return
		}
		out.CashOnCash = &b.CashOnCash
		out.Display = format.Percent(b.CashOnCash)
		out.Breakdown = &b
	}
	render.JSON(w, req, out)
}
