// internal/app/features/intoregroups/routes.go
package intoregroups

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
)

// Routes mounts the intore group endpoints (typically under
// "/intore-groups"). Mutations are open to any signed-in user at the router
// level because group leaders hold ordinary roles; the handlers enforce the
// hierarchy scope.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{groupID}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Post("/", h.ServeCreate)
		pr.Patch("/{groupID}", h.ServeUpdate)
		pr.Put("/{groupID}/status", h.ServeStatus)
		pr.Put("/{groupID}/leader", h.ServeAssignLeader)
	})

	return r
}
