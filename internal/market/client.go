package market

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"
)

// Fetcher is the rate-limited fetch surface this client depends on.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error)
}

// Params mirror the /coins/markets query surface. Semantics are owned by
// the remote price API; this client only forwards them.
type Params struct {
	VsCurrency string
	Order      string
	PerPage    int
	Page       int
	Sparkline  bool
}

// DefaultParams returns the query the dashboard uses out of the box.
func DefaultParams() Params {
	return Params{
		VsCurrency: "usd",
		Order:      "market_cap_desc",
		PerPage:    50,
		Page:       1,
		Sparkline:  true,
	}
}

func (p Params) query() map[string]string {
	return map[string]string{
		"vs_currency": p.VsCurrency,
		"order":       p.Order,
		"per_page":    strconv.Itoa(p.PerPage),
		"page":        strconv.Itoa(p.Page),
		"sparkline":   strconv.FormatBool(p.Sparkline),
	}
}

// Client fetches market rows from the price API through the shared
// rate-limited fetcher.
type Client struct {
	fetcher Fetcher
	log     zerolog.Logger
}

// NewClient creates a market data client.
func NewClient(fetcher Fetcher, log zerolog.Logger) *Client {
	return &Client{
		fetcher: fetcher,
		log:     log.With().Str("client", "coingecko").Logger(),
	}
}

// ListMarkets fetches one page of market rows.
func (c *Client) ListMarkets(ctx context.Context, p Params) ([]Row, error) {
	payload, err := c.fetcher.Fetch(ctx, "/coins/markets", p.query())
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows(payload)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Int("rows", len(rows)).
		Str("vs_currency", p.VsCurrency).
		Msg("Fetched market rows")

	return rows, nil
}
