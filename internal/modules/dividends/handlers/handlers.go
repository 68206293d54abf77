// Package handlers provides HTTP handlers for dividend queries and dividend history.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/aristath/tao-sentinel/internal/history"
	"github.com/aristath/tao-sentinel/internal/modules/dividends"
	"github.com/rs/zerolog"
)

// WorkflowIDHeader carries the ID of a workflow scheduled by a trade=true query.
const WorkflowIDHeader = "X-Workflow-ID"

// DividendQuerier is the part of the dividend service used over HTTP.
type DividendQuerier interface {
	Query(ctx context.Context, q dividends.Query) (dividends.QueryResult, error)
	ClearCache(ctx context.Context, topicID *int, accountKey *string) (bool, error)
}

// Handler handles dividend HTTP requests
type Handler struct {
	service DividendQuerier
	history domain.HistoryReader
	log     zerolog.Logger
}

// NewHandler creates a new dividends handler
func NewHandler(service DividendQuerier, historyReader domain.HistoryReader, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		history: historyReader,
		log:     log.With().Str("handler", "dividends").Logger(),
	}
}

// HandleGetDividends handles GET /api/v1/tao_dividends
func (h *Handler) HandleGetDividends(w http.ResponseWriter, r *http.Request) {
	topicID, accountKey, ok := h.parseTarget(w, r)
	if !ok {
		return
	}

	trade := false
	if v := r.URL.Query().Get("trade"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "trade must be a boolean", "validation_error")
			return
		}
		trade = parsed
	}

	out, err := h.service.Query(r.Context(), dividends.Query{TopicID: topicID, AccountKey: accountKey, Trade: trade})
	if err != nil {
		var se *domain.SourceError
		if errors.As(err, &se) {
			h.log.Error().Err(err).Msg("Failed to fetch dividends")
			h.writeError(w, http.StatusInternalServerError, err.Error(), "blockchain_error")
			return
		}
		h.log.Error().Err(err).Msg("Unexpected dividend query failure")
		h.writeError(w, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error(), "internal_error")
		return
	}

	if out.Workflow != nil && out.Workflow.Scheduled {
		w.Header().Set(WorkflowIDHeader, out.Workflow.WorkflowID)
	}
	h.writeJSON(w, http.StatusOK, out.Result)
}

// HandleClearCache handles DELETE /api/v1/tao_dividends/cache
func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	topicID, accountKey, ok := h.parseTarget(w, r)
	if !ok {
		return
	}

	existed, err := h.service.ClearCache(r.Context(), topicID, accountKey)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to clear cache")
		h.writeError(w, http.StatusInternalServerError, err.Error(), "cache_error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":     dividends.CacheKey(topicID, accountKey),
		"cleared": existed,
	})
}

// HandleGetHistory handles GET /api/v1/dividend-history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := history.FilterFromQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	rows, err := h.history.ListDividends(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list dividend history")
		h.writeError(w, http.StatusInternalServerError, "Failed to get dividend history", "database_error")
		return
	}
	if rows == nil {
		rows = []domain.DividendObservation{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) parseTarget(w http.ResponseWriter, r *http.Request) (*int, *string, bool) {
	var topicID *int
	if v := r.URL.Query().Get("netuid"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "netuid must be a non-negative integer", "validation_error")
			return nil, nil, false
		}
		topicID = &n
	}

	var accountKey *string
	if v := r.URL.Query().Get("hotkey"); v != "" {
		accountKey = &v
	}
	return topicID, accountKey, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, map[string]interface{}{
		"status_code": status,
		"message":     message,
		"code":        code,
	})
}
