// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
)

// Routes mounts the notification endpoints (typically under
// "/notifications"). Creation scope is enforced per target in the handler
// because group leaders hold ordinary member roles.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/unread-count", h.ServeUnreadCount)
	r.Post("/", h.ServeCreate)
	r.Put("/{notificationID}/read", h.ServeMarkRead)

	return r
}
