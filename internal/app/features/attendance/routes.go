// internal/app/features/attendance/routes.go
package attendance

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
)

// ActivityRoutes returns the attendance endpoints nested under one
// activity; the activities router mounts this at "/{activityID}/attendance".
func ActivityRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireSignedIn)

	r.Put("/", h.ServeRecord)
	r.Get("/", h.ServeByActivity)
	r.Get("/summary", h.ServeSummary)

	return r
}

// MemberRoutes returns the attendance history endpoint nested under one
// member; the members router mounts this at "/{memberID}/attendance".
func MemberRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireSignedIn)

	r.Get("/", h.ServeByUser)

	return r
}
