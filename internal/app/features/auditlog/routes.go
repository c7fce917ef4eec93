// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/domain/models"
)

// Routes mounts the audit log endpoints (typically under "/audit-logs").
// The trail is super-admin only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireSignedIn)
	r.Use(auth.RequireRole(models.RoleSuperAdmin))

	r.Get("/", h.ServeList)
	r.Get("/resource/{resourceType}/{resourceID}", h.ServeByResource)

	return r
}
