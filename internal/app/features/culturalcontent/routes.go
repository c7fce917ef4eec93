// internal/app/features/culturalcontent/routes.go
package culturalcontent

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
)

// Routes mounts the cultural content endpoints (typically under
// "/cultural-contents"). Reading is public.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{contentID}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Post("/", h.ServeCreate)
		pr.Patch("/{contentID}", h.ServeUpdate)
		pr.Put("/{contentID}/status", h.ServeStatus)
	})

	return r
}
