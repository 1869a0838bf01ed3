package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/ostrich-api/internal/auth"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/internal/validation"
)

// WriteError renders {"error": code, "detail": detail}.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	render.Status(r, status)
	body := map[string]any{"error": code}
	if detail != "" {
		body["detail"] = detail
	}
	render.JSON(w, r, body)
}

// WriteValidation renders a validator error as 422 with per-field messages.
func WriteValidation(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusUnprocessableEntity)
	body := map[string]any{"error": "validation_error", "detail": err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	render.JSON(w, r, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// UserResolver maps an authenticated identity to its user row.
type UserResolver interface {
	GetOrCreateUser(ctx context.Context, authID, email string) (store.User, error)
}

type userKey struct{}

// UserMiddleware loads the caller's user row, creating it on first sight.
// It must run after auth.Middleware.
func UserMiddleware(users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				WriteError(w, r, http.StatusUnauthorized, "unauthorized", "")
				return
			}
			u, err := users.GetOrCreateUser(r.Context(), id.Subject, id.Email)
			if err != nil {
				logger.Error().Err(err).Str("sub", id.Subject).Msg("resolve user")
				WriteError(w, r, http.StatusInternalServerError, "user_error", "could not load user")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
		})
	}
}

// UserFrom returns the user stored by UserMiddleware.
func UserFrom(ctx context.Context) (store.User, bool) {
	u, ok := ctx.Value(userKey{}).(store.User)
	return u, ok
}
