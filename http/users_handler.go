package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// RegisterUsers mounts /users routes. r must already carry auth and user
// middleware.
func RegisterUsers(r chi.Router) {
	r.Get("/users/me", func(w http.ResponseWriter, req *http.Request) {
		u, ok := UserFrom(req.Context())
		if !ok {
			WriteError(w, req, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		render.JSON(w, req, u)
	})
}
