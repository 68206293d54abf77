package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers trading routes under /api/v1
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/stake", h.HandleStake)
	r.Post("/unstake", h.HandleUnstake)
	r.Get("/stake-transaction-history", h.HandleGetTrades)
	r.Get("/sentiment-history", h.HandleGetSentiments)
}
