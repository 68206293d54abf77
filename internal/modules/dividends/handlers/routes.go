package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers dividend routes under /api/v1
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tao_dividends", func(r chi.Router) {
		r.Get("/", h.HandleGetDividends)
		r.Delete("/cache", h.HandleClearCache)
	})
	r.Get("/dividend-history", h.HandleGetHistory)
}
