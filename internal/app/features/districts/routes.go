// internal/app/features/districts/routes.go
package districts

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/domain/models"
)

// Routes mounts the district endpoints (typically under "/districts").
// Reads are open; mutations require the super admin.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{districtID}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole(models.RoleSuperAdmin))
		pr.Post("/", h.ServeCreate)
		pr.Patch("/{districtID}", h.ServeUpdate)
		pr.Put("/{districtID}/status", h.ServeStatus)
		pr.Put("/{districtID}/admin", h.ServeAssignAdmin)
	})

	return r
}
