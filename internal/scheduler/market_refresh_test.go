package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorceryai/conjure/internal/events"
	"github.com/sorceryai/conjure/internal/market"
)

type scriptedFetcher struct {
	payload json.RawMessage
	err     error
}

func (s *scriptedFetcher) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

func newRefreshJob(fetcher *scriptedFetcher, bus *events.Bus) *MarketRefreshJob {
	client := market.NewClient(fetcher, zerolog.Nop())
	service := market.NewService(client, nil, market.DefaultParams(), zerolog.Nop())
	return NewMarketRefreshJob(service, bus, zerolog.Nop())
}

func TestMarketRefreshJobEmitsOnSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{payload: json.RawMessage(`[{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 64000}]`)}
	bus := events.NewBus(zerolog.Nop())

	var received *events.Event
	bus.Subscribe(events.PricesRefreshed, func(event *events.Event) { received = event })

	job := newRefreshJob(fetcher, bus)
	require.NoError(t, job.Run())

	require.NotNil(t, received)
	assert.Equal(t, 1, received.Data["rows"])
	assert.Equal(t, "market", received.Module)
}

func TestMarketRefreshJobEmitsOnFailure(t *testing.T) {
	fetcher := &scriptedFetcher{err: errors.New("upstream down")}
	bus := events.NewBus(zerolog.Nop())

	var received *events.Event
	bus.Subscribe(events.RefreshFailed, func(event *events.Event) { received = event })

	job := newRefreshJob(fetcher, bus)
	require.Error(t, job.Run())

	require.NotNil(t, received)
	assert.Contains(t, received.Data["error"], "upstream down")
}

func TestMarketRefreshJobNilBus(t *testing.T) {
	fetcher := &scriptedFetcher{payload: json.RawMessage(`[]`)}

	job := newRefreshJob(fetcher, nil)
	assert.NoError(t, job.Run())
}

func TestSchedulerRunNow(t *testing.T) {
	fetcher := &scriptedFetcher{payload: json.RawMessage(`[]`)}
	job := newRefreshJob(fetcher, nil)

	s := New(zerolog.Nop())
	assert.NoError(t, s.RunNow(job))
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	fetcher := &scriptedFetcher{payload: json.RawMessage(`[]`)}
	job := newRefreshJob(fetcher, nil)

	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("not a schedule", job))
}

func TestMarketRefreshJobName(t *testing.T) {
	job := newRefreshJob(&scriptedFetcher{}, nil)
	assert.Equal(t, "market_refresh", job.Name())
}
