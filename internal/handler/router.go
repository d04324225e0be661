package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Router builds the chi router with the global middleware stack and the
// role-guarded event routes.
func Router(h *EventHandler, auth *Authenticator, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))             // structured access log
	r.Use(CORS)

	// Health
	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Use(auth.Identify)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(model.RoleMentor, model.RoleAdmin))
			r.Get("/", h.ListEvents)
			r.Get("/{id}", h.GetEvent)
			r.Post("/{id}/join", h.Join)
			r.Post("/{id}/leave", h.Leave)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(model.RoleAdmin))
			r.Post("/", h.CreateEvent)
			r.Patch("/{id}", h.UpdateEvent)
			r.Post("/{id}/cancel", h.CancelEvent)
			r.Post("/{id}/reminder", h.SendReminder)
			r.Get("/{id}/registrations", h.ListRegistrations)
		})
	})

	return r
}
