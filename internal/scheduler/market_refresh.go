package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sorceryai/conjure/internal/events"
	"github.com/sorceryai/conjure/internal/market"
)

// refreshTimeout bounds one refresh run, retries included.
const refreshTimeout = 5 * time.Minute

// MarketRefreshJob periodically refetches the market page so the
// dashboard serves warm data even without traffic.
type MarketRefreshJob struct {
	service *market.Service
	bus     *events.Bus
	log     zerolog.Logger
}

// NewMarketRefreshJob creates a market refresh job.
func NewMarketRefreshJob(service *market.Service, bus *events.Bus, log zerolog.Logger) *MarketRefreshJob {
	return &MarketRefreshJob{
		service: service,
		bus:     bus,
		log:     log.With().Str("job", "market_refresh").Logger(),
	}
}

// Run refreshes the market rows and announces the outcome on the bus.
func (j *MarketRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	rows, err := j.service.Refresh(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Market refresh failed")
		if j.bus != nil {
			j.bus.Emit(events.RefreshFailed, "market", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return err
	}

	j.log.Info().Int("rows", len(rows)).Msg("Market rows refreshed")
	if j.bus != nil {
		j.bus.Emit(events.PricesRefreshed, "market", map[string]interface{}{
			"rows": len(rows),
		})
	}

	return nil
}

// Name returns the job name.
func (j *MarketRefreshJob) Name() string {
	return "market_refresh"
}
