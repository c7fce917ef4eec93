// internal/app/features/auth/routes.go
package auth

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
)

// Routes mounts the auth endpoints (typically under "/auth").
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.ServeRegister)
	r.Post("/login", h.ServeLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Post("/logout", h.ServeLogout)
		pr.Get("/me", h.ServeMe)
	})

	return r
}
