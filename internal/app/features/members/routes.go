// internal/app/features/members/routes.go
package members

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/features/attendance"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/domain/models"
)

// Routes mounts the member endpoints (typically under "/members").
// Everything requires an admin role; cell-level scope is enforced in the
// handlers. A member's attendance history nests here.
func Routes(h *Handler, ah *attendance.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireSignedIn)
	r.Use(auth.RequireRole(
		models.RoleSuperAdmin, models.RoleDistrictAdmin,
		models.RoleSectorAdmin, models.RoleCellAdmin))

	r.Get("/", h.ServeList)
	r.Post("/", h.ServeCreate)
	r.Get("/{memberID}", h.ServeGet)
	r.Patch("/{memberID}", h.ServeUpdate)
	r.Put("/{memberID}/status", h.ServeStatus)

	r.Mount("/{memberID}/attendance", attendance.MemberRoutes(ah))

	return r
}
