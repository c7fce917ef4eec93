// internal/app/features/reports/routes.go
package reports

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
)

// Routes mounts the report endpoints (typically under "/reports"). Scope is
// enforced per node in the handler because group leaders hold ordinary
// member roles.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.ServeGenerate)
	r.Get("/{reportID}", h.ServeGet)

	return r
}
