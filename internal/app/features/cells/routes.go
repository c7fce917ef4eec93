// internal/app/features/cells/routes.go
package cells

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/domain/models"
)

// Routes mounts the cell endpoints (typically under "/cells").
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{cellID}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole(
			models.RoleSuperAdmin, models.RoleDistrictAdmin,
			models.RoleSectorAdmin, models.RoleCellAdmin))
		pr.Post("/", h.ServeCreate)
		pr.Patch("/{cellID}", h.ServeUpdate)
		pr.Put("/{cellID}/status", h.ServeStatus)
		pr.Put("/{cellID}/admin", h.ServeAssignAdmin)
	})

	return r
}
