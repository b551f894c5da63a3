package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/sorceryai/conjure/internal/clientdata"
)

// ErrCoinNotFound is returned when a sparkline is requested for a coin
// that is not in the current market page.
var ErrCoinNotFound = errors.New("coin not found")

// Service serves market rows cache-first: fresh persistent cache, then
// the API, then stale persistent data when the API fails. The in-memory
// result cache inside the fetch client already absorbs rapid repeats;
// the persistent layer survives restarts and outages.
type Service struct {
	client    *Client
	cacheRepo *clientdata.Repository // optional - nil disables persistence
	params    Params
	log       zerolog.Logger
}

// NewService creates a market service for a fixed query.
func NewService(client *Client, cacheRepo *clientdata.Repository, params Params, log zerolog.Logger) *Service {
	return &Service{
		client:    client,
		cacheRepo: cacheRepo,
		params:    params,
		log:       log.With().Str("component", "market_service").Logger(),
	}
}

// cacheKey identifies this service's market page in the persistent cache.
func (s *Service) cacheKey() string {
	return s.params.VsCurrency + ":" + s.params.Order + ":" + strconv.Itoa(s.params.Page)
}

// Rows returns the current market rows. The API is only consulted when
// no fresh cached copy exists; a failed API call falls back to stale
// cached data when available.
func (s *Service) Rows(ctx context.Context) ([]Row, error) {
	key := s.cacheKey()

	if s.cacheRepo != nil {
		data, err := s.cacheRepo.GetIfFresh("markets", key)
		if err == nil && data != nil {
			var rows []Row
			if err := json.Unmarshal(data, &rows); err == nil {
				s.log.Debug().Int("rows", len(rows)).Msg("Cache hit")
				return rows, nil
			}
		}
	}

	rows, err := s.client.ListMarkets(ctx, s.params)
	if err != nil {
		if stale, ok := s.staleRows(key); ok {
			s.log.Warn().
				Err(err).
				Int("rows", len(stale)).
				Msg("API failed, serving stale market rows")
			return stale, nil
		}
		return nil, err
	}

	s.persist(key, rows)
	return rows, nil
}

// Refresh bypasses the fresh-cache check and fetches from the API,
// repopulating the persistent cache. Used by the background refresh job.
func (s *Service) Refresh(ctx context.Context) ([]Row, error) {
	rows, err := s.client.ListMarkets(ctx, s.params)
	if err != nil {
		return nil, err
	}

	s.persist(s.cacheKey(), rows)
	return rows, nil
}

// Sparkline returns the summarized price series for one coin. The
// series comes from the current rows when present, else from the
// persistent sparkline cache (stale data included).
func (s *Service) Sparkline(ctx context.Context, id string) (SparklineReport, error) {
	rows, err := s.Rows(ctx)
	if err == nil {
		for _, row := range rows {
			if row.ID == id {
				if len(row.SparklinePrices) == 0 {
					break
				}
				return Summarize(row.ID, row.Symbol, row.SparklinePrices), nil
			}
		}
	}

	if s.cacheRepo != nil {
		data, repoErr := s.cacheRepo.Get("sparklines", id)
		if repoErr == nil && data != nil {
			var cached cachedSparkline
			if err := json.Unmarshal(data, &cached); err == nil {
				return Summarize(id, cached.Symbol, cached.Prices), nil
			}
		}
	}

	if err != nil {
		return SparklineReport{}, err
	}
	return SparklineReport{}, fmt.Errorf("%w: %s", ErrCoinNotFound, id)
}

// cachedSparkline is the structure stored in the sparklines table.
type cachedSparkline struct {
	Symbol string    `json:"symbol"`
	Prices []float64 `json:"prices"`
}

// persist writes rows and their sparkline series to the persistent
// cache in one transaction. Failures are logged and ignored: the cache
// is best-effort.
func (s *Service) persist(key string, rows []Row) {
	if s.cacheRepo == nil {
		return
	}

	entries := []clientdata.Entry{
		{Table: "markets", Key: key, Data: rows, TTL: clientdata.TTLMarkets},
	}
	for _, row := range rows {
		if len(row.SparklinePrices) == 0 {
			continue
		}
		entries = append(entries, clientdata.Entry{
			Table: "sparklines",
			Key:   row.ID,
			Data:  cachedSparkline{Symbol: row.Symbol, Prices: row.SparklinePrices},
			TTL:   clientdata.TTLSparkline,
		})
	}

	if err := s.cacheRepo.StoreBatch(entries); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache market rows")
	}
}

// staleRows reads market rows from the persistent cache regardless of
// freshness. Stale data is better than an empty dashboard.
func (s *Service) staleRows(key string) ([]Row, bool) {
	if s.cacheRepo == nil {
		return nil, false
	}

	data, err := s.cacheRepo.Get("markets", key)
	if err != nil || data == nil {
		return nil, false
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}

	return rows, true
}
