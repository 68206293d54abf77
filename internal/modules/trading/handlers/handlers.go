// Package handlers provides HTTP handlers for manual stake operations and trade history.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/aristath/tao-sentinel/internal/history"
	"github.com/aristath/tao-sentinel/internal/modules/trading"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Trader executes manual trades.
type Trader interface {
	Stake(ctx context.Context, req trading.ManualTrade) (domain.TradeOperation, error)
	Unstake(ctx context.Context, req trading.ManualTrade) (domain.TradeOperation, error)
}

// TradeRequest is the body of POST /stake and /unstake.
type TradeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Netuid *int            `json:"netuid"`
	Hotkey *string         `json:"hotkey"`
}

// TradingHandlers contains HTTP handlers for the trading API
type TradingHandlers struct {
	trader  Trader
	history domain.HistoryReader
	log     zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(trader Trader, historyReader domain.HistoryReader, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		trader:  trader,
		history: historyReader,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// HandleStake handles POST /api/v1/stake
func (h *TradingHandlers) HandleStake(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, domain.TradeKindStake)
}

// HandleUnstake handles POST /api/v1/unstake
func (h *TradingHandlers) HandleUnstake(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, domain.TradeKindUnstake)
}

func (h *TradingHandlers) handleTrade(w http.ResponseWriter, r *http.Request, kind domain.TradeKind) {
	var body TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "validation_error")
		return
	}
	if !body.Amount.IsPositive() {
		h.writeError(w, http.StatusUnprocessableEntity, trading.ErrInvalidAmount.Error(), "validation_error")
		return
	}
	if body.Netuid != nil && *body.Netuid < 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "netuid must be non-negative", "validation_error")
		return
	}

	req := trading.ManualTrade{TopicID: body.Netuid, Amount: body.Amount}
	if body.Hotkey != nil {
		req.AccountKey = *body.Hotkey
	}

	var (
		op  domain.TradeOperation
		err error
	)
	if kind == domain.TradeKindStake {
		op, err = h.trader.Stake(r.Context(), req)
	} else {
		op, err = h.trader.Unstake(r.Context(), req)
	}
	if err != nil {
		if errors.Is(err, trading.ErrInvalidAmount) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
			return
		}
		h.log.Error().Err(err).Str("kind", string(kind)).Msg("Manual trade rejected")
		h.writeError(w, http.StatusInternalServerError, err.Error(), "trade_error")
		return
	}

	if !op.Succeeded {
		message := string(kind) + " operation failed"
		if op.Error != nil {
			message = *op.Error
		}
		h.writeError(w, http.StatusInternalServerError, message, "blockchain_error")
		return
	}

	h.writeJSON(w, http.StatusOK, op)
}

// HandleGetTrades handles GET /api/v1/stake-transaction-history
func (h *TradingHandlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := history.FilterFromQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	rows, err := h.history.ListTrades(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list stake transactions")
		h.writeError(w, http.StatusInternalServerError, "Failed to get stake transaction history", "database_error")
		return
	}
	if rows == nil {
		rows = []domain.TradeRecord{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// HandleGetSentiments handles GET /api/v1/sentiment-history
func (h *TradingHandlers) HandleGetSentiments(w http.ResponseWriter, r *http.Request) {
	filter, err := history.FilterFromQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	rows, err := h.history.ListSentiments(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sentiment analyses")
		h.writeError(w, http.StatusInternalServerError, "Failed to get sentiment history", "database_error")
		return
	}
	if rows == nil {
		rows = []domain.SentimentRecord{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *TradingHandlers) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, map[string]interface{}{
		"status_code": status,
		"message":     message,
		"code":        code,
	})
}
