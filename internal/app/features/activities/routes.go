// internal/app/features/activities/routes.go
package activities

import (
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/features/attendance"
	"github.com/intorehq/intorehub/internal/app/system/auth"
)

// Routes mounts the activity endpoints (typically under "/activities").
// Attendance hangs off an activity, so its routes nest here.
func Routes(h *Handler, ah *attendance.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/upcoming", h.ServeUpcoming)
	r.Get("/{activityID}", h.ServeGet)

	r.Mount("/{activityID}/attendance", attendance.ActivityRoutes(ah))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Post("/", h.ServeCreate)
		pr.Patch("/{activityID}", h.ServeUpdate)
		pr.Put("/{activityID}/status", h.ServeStatus)
	})

	return r
}
