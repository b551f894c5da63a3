// Package market provides the price-data client and row model backing
// the dashboard card grid.
package market

import (
	"encoding/json"
	"fmt"

	"github.com/sorceryai/conjure/internal/fetch"
)

// Row is one coin on the dashboard. Rows are immutable once decoded and
// are replaced wholesale on every refresh cycle.
type Row struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	CurrentPrice      float64   `json:"current_price"`
	PriceChangePct24h float64   `json:"price_change_percentage_24h"`
	MarketCap         float64   `json:"market_cap"`
	ImageURL          string    `json:"image_url"`
	SparklinePrices   []float64 `json:"sparkline_prices,omitempty"`
}

// apiRow matches the wire shape of one /coins/markets entry.
type apiRow struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	CurrentPrice      float64 `json:"current_price"`
	PriceChangePct24h float64 `json:"price_change_percentage_24h"`
	MarketCap         float64 `json:"market_cap"`
	Image             string  `json:"image"`
	Sparkline         *struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

// decodeRows converts a /coins/markets payload into rows. A payload that
// does not decode, or a row without an id or symbol, is a malformed
// payload: terminal, never retried.
func decodeRows(payload json.RawMessage) ([]Row, error) {
	var raw []apiRow
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &fetch.Error{
			Kind: fetch.KindMalformedPayload,
			Err:  fmt.Errorf("failed to decode markets payload: %w", err),
		}
	}

	rows := make([]Row, 0, len(raw))
	for i, r := range raw {
		if r.ID == "" || r.Symbol == "" {
			return nil, &fetch.Error{
				Kind: fetch.KindMalformedPayload,
				Err:  fmt.Errorf("markets row %d is missing id or symbol", i),
			}
		}

		row := Row{
			ID:                r.ID,
			Name:              r.Name,
			Symbol:            r.Symbol,
			CurrentPrice:      r.CurrentPrice,
			PriceChangePct24h: r.PriceChangePct24h,
			MarketCap:         r.MarketCap,
			ImageURL:          r.Image,
		}
		if r.Sparkline != nil {
			row.SparklinePrices = r.Sparkline.Price
		}
		rows = append(rows, row)
	}

	return rows, nil
}
