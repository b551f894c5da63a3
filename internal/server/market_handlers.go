package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sorceryai/conjure/internal/fetch"
	"github.com/sorceryai/conjure/internal/market"
)

// MarketHandlers serves the dashboard's market data endpoints.
type MarketHandlers struct {
	service *market.Service
	log     zerolog.Logger
}

// NewMarketHandlers creates market data handlers.
func NewMarketHandlers(service *market.Service, log zerolog.Logger) *MarketHandlers {
	return &MarketHandlers{
		service: service,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// HandleMarkets returns the current market rows
// GET /api/markets
func (h *MarketHandlers) HandleMarkets(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Rows(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"count": len(rows),
		"rows":  rows,
	})
}

// HandleSparkline returns the summarized price series for one coin
// GET /api/markets/{id}/sparkline
func (h *MarketHandlers) HandleSparkline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing coin id", http.StatusBadRequest)
		return
	}

	report, err := h.service.Sparkline(r.Context(), id)
	if err != nil {
		if errors.Is(err, market.ErrCoinNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, report)
}

// writeError maps fetch failures to upstream-style status codes.
func (h *MarketHandlers) writeError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Market request failed")

	var fe *fetch.Error
	if errors.As(err, &fe) && fe.Kind == fetch.KindRetriesExhausted {
		http.Error(w, "upstream price API unavailable", http.StatusBadGateway)
		return
	}

	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// writeJSON writes a JSON response
func (h *MarketHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
