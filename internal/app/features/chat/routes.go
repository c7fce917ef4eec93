// internal/app/features/chat/routes.go
package chat

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
)

// Routes mounts the chat endpoints (typically under "/chat"). Everything is
// behind sign-in; participation is enforced per chat group in the handlers.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireSignedIn)

	r.Get("/groups", h.ServeListGroups)
	r.Post("/groups", h.ServeCreateGroup)
	r.Get("/groups/{chatGroupID}", h.ServeGetGroup)
	r.Put("/groups/{chatGroupID}/status", h.ServeGroupStatus)
	r.Post("/groups/{chatGroupID}/messages", h.ServePostMessage)
	r.Get("/groups/{chatGroupID}/messages", h.ServeMessages)

	return r
}
