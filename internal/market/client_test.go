package market

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorceryai/conjure/internal/fetch"
)

// stubFetcher returns a scripted payload or error and records the
// requests it received.
type stubFetcher struct {
	payload   json.RawMessage
	err       error
	calls     int
	endpoints []string
	params    []map[string]string
}

func (s *stubFetcher) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	s.calls++
	s.endpoints = append(s.endpoints, endpoint)
	s.params = append(s.params, params)
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

const marketsPayload = `[
	{
		"id": "bitcoin",
		"name": "Bitcoin",
		"symbol": "btc",
		"current_price": 64123.5,
		"price_change_percentage_24h": -1.2,
		"market_cap": 1260000000000,
		"image": "https://assets.coingecko.com/coins/images/1/large/bitcoin.png",
		"sparkline_in_7d": {"price": [63000, 63500, 64123.5]}
	},
	{
		"id": "ethereum",
		"name": "Ethereum",
		"symbol": "eth",
		"current_price": 3123.4,
		"price_change_percentage_24h": 0.8,
		"market_cap": 375000000000,
		"image": "https://assets.coingecko.com/coins/images/279/large/ethereum.png"
	}
]`

func TestListMarkets(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(marketsPayload)}
	client := NewClient(fetcher, zerolog.Nop())

	rows, err := client.ListMarkets(context.Background(), DefaultParams())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "bitcoin", rows[0].ID)
	assert.Equal(t, "btc", rows[0].Symbol)
	assert.Equal(t, 64123.5, rows[0].CurrentPrice)
	assert.Equal(t, -1.2, rows[0].PriceChangePct24h)
	assert.Equal(t, []float64{63000, 63500, 64123.5}, rows[0].SparklinePrices)

	assert.Equal(t, "ethereum", rows[1].ID)
	assert.Nil(t, rows[1].SparklinePrices, "missing sparkline stays absent")

	require.Len(t, fetcher.endpoints, 1)
	assert.Equal(t, "/coins/markets", fetcher.endpoints[0])
	assert.Equal(t, "usd", fetcher.params[0]["vs_currency"])
	assert.Equal(t, "true", fetcher.params[0]["sparkline"])
	assert.Equal(t, "50", fetcher.params[0]["per_page"])
}

func TestListMarketsMissingRequiredFields(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(`[{"name": "Mystery Coin", "current_price": 1}]`)}
	client := NewClient(fetcher, zerolog.Nop())

	_, err := client.ListMarkets(context.Background(), DefaultParams())
	require.Error(t, err)

	var fe *fetch.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fetch.KindMalformedPayload, fe.Kind)
}

func TestListMarketsUnexpectedShape(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(`{"error": "rate limited"}`)}
	client := NewClient(fetcher, zerolog.Nop())

	_, err := client.ListMarkets(context.Background(), DefaultParams())
	require.Error(t, err)

	var fe *fetch.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fetch.KindMalformedPayload, fe.Kind)
}

func TestListMarketsPropagatesFetchError(t *testing.T) {
	fetchErr := &fetch.Error{Kind: fetch.KindRetriesExhausted, Endpoint: "/coins/markets", Attempts: 5}
	fetcher := &stubFetcher{err: fetchErr}
	client := NewClient(fetcher, zerolog.Nop())

	_, err := client.ListMarkets(context.Background(), DefaultParams())
	require.Error(t, err)

	var fe *fetch.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fetch.KindRetriesExhausted, fe.Kind)
	assert.Equal(t, 5, fe.Attempts)
}
