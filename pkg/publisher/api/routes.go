package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(DefaultRequestTimeout))
		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)
	})

	r.Route("/api/runs", func(r chi.Router) {
		r.Use(middleware.Timeout(DefaultRequestTimeout))
		r.Get("/", h.ListRuns)
		r.Get("/{id}", h.GetRun)
		r.Get("/{id}/events", h.GetRunEvents)
	})

	r.Route("/api/events", func(r chi.Router) {
		r.Use(middleware.Timeout(DefaultRequestTimeout))
		r.Get("/", h.ListEvents)
		r.Get("/errors", h.GetRecentErrors)
	})

	r.Route("/api/packs", func(r chi.Router) {
		r.Use(middleware.Timeout(DefaultRequestTimeout))
		r.Get("/{name}/events", h.GetPackEvents)
	})

	r.Route("/api/index", func(r chi.Router) {
		r.Use(middleware.Timeout(IndexRequestTimeout))
		r.Get("/", h.GetIndex)
		r.Get("/packs/{name}", h.GetIndexPack)
	})

	return r
}
