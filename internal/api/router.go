package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/cyclers", func(r chi.Router) {
			r.Get("/", s.handleListCyclers)
			r.Post("/flush", s.handleFlush)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCycler)
				r.Get("/metadata", s.handleCyclerMetadata)
				r.Get("/history", s.handleCyclerHistory)
				r.Post("/trigger", s.handleTrigger)
				r.Post("/next", s.handleStep(1))
				r.Post("/previous", s.handleStep(-1))
			})
		})
	})

	return r
}
