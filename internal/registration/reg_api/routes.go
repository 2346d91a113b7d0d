package reg_api

import (
	"net/http"

	"ms-registration/internal/auth"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the public and admin routes. rateLimit guards
// submissions and admin login; adminRoutes adds more admin-only routes.
func (h *Handler) RegisterRoutes(r chi.Router, rateLimit func(http.Handler) http.Handler, adminRoutes ...func(chi.Router)) {
	if rateLimit == nil {
		rateLimit = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/healthz", h.Health)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Route("/{eventTitle}", func(r chi.Router) {
			r.Get("/seats", h.GetSeats)
			r.Get("/seats/stream", h.StreamSeats)
			r.With(rateLimit).Post("/registrations", h.CreateRegistration)
			r.Get("/registrations/{id}/pass", h.GetPass)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(rateLimit).Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.Auth))
			r.Get("/events/{eventTitle}/registrations", h.ListRegistrations)
			r.Get("/events/{eventTitle}/registrations/export", h.ExportRegistrations)
			r.Post("/passes/verify", h.VerifyPass)
			for _, mount := range adminRoutes {
				mount(r)
			}
		})
	})
}
