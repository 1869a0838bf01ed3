// Package auth identifies API callers from bearer tokens issued by the
// upstream identity provider.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Claims carries the fields the API reads from a token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Email   string
	Admin   bool
}

// Verifier parses tokens. With an empty Key, signatures are not checked and
// the token is trusted as forwarded by the gateway; registered claims are
// still validated and the caller is never an admin.
type Verifier struct {
	Key    []byte
	Admins []string
}

func (v *Verifier) Parse(tokenStr string) (Identity, error) {
	claims := &Claims{}
	var err error
	if len(v.Key) > 0 {
		_, err = jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			return v.Key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(tokenStr, claims)
		if err == nil {
			err = jwt.NewValidator().Validate(claims)
		}
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredCredentials
		}
		return Identity{}, ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidCredentials
	}
	admin := len(v.Key) > 0 && v.isAdmin(claims.Email)
	return Identity{Subject: claims.Subject, Email: claims.Email, Admin: admin}, nil
}

func (v *Verifier) isAdmin(email string) bool {
	if email == "" {
		return false
	}
	for _, a := range v.Admins {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}

func bearer(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Middleware rejects requests without a valid bearer token.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearer(r)
			if tok == "" {
				unauthorized(w, r, ErrNoCredentials)
				return
			}
			id, err := v.Parse(tok)
			if err != nil {
				unauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := FromContext(r.Context()); !ok || !id.Admin {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"error": "unauthorized", "detail": err.Error()})
}
