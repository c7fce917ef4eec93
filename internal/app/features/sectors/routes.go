// internal/app/features/sectors/routes.go
package sectors

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/domain/models"
)

// Routes mounts the sector endpoints (typically under "/sectors").
// Reads are open; mutations are limited by role here and by hierarchy
// scope inside the handlers.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{sectorID}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole(models.RoleSuperAdmin, models.RoleDistrictAdmin, models.RoleSectorAdmin))
		pr.Post("/", h.ServeCreate)
		pr.Patch("/{sectorID}", h.ServeUpdate)
		pr.Put("/{sectorID}/status", h.ServeStatus)
		pr.Put("/{sectorID}/admin", h.ServeAssignAdmin)
	})

	return r
}
