// Package fetch implements the rate-limited, retrying HTTP fetch policy
// shared by every external data consumer in Conjure. One Client owns the
// process-wide request window, the retry schedule and an in-memory result
// cache; callers see a single Fetch operation that either returns a JSON
// payload or an explicit terminal error.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the fetch policy. The zero value is not usable;
// use DefaultOptions as a starting point.
type Options struct {
	BaseURL string

	// Sliding-window rate limit shared across all callers.
	MaxRequests int
	Window      time.Duration

	// Retry schedule. MaxRetries is the total attempt ceiling; BaseDelay
	// seeds the exponential backoff. MaxDelay caps a computed backoff
	// delay when nonzero; zero leaves the schedule uncapped, which is
	// harmless for small retry ceilings.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// RetryAllStatuses retries every non-200 status under the backoff
	// schedule. When false, 4xx statuses other than 429 fail immediately
	// since repeating a bad request cannot succeed.
	RetryAllStatuses bool

	// Result cache. A TTL of zero disables caching.
	CacheTTL        time.Duration
	CacheMaxEntries int

	Timeout   time.Duration
	UserAgent string
}

// DefaultOptions returns the fetch policy defaults.
func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:          baseURL,
		MaxRequests:      30,
		Window:           60 * time.Second,
		MaxRetries:       5,
		BaseDelay:        time.Second,
		RetryAllStatuses: true,
		CacheTTL:         60 * time.Second,
		CacheMaxEntries:  128,
		Timeout:          15 * time.Second,
		UserAgent:        "conjure/1.0",
	}
}

// Client performs rate-limited GET requests with bounded retries.
type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *RateLimiter
	cache      *Cache
	clock      Clock
	jitter     func() float64 // uniform [0,1), seconds of backoff jitter
	log        zerolog.Logger
}

// NewClient creates a fetch client with its own rate window and cache.
func NewClient(opts Options, log zerolog.Logger) *Client {
	return newClient(opts, NewClock(), log)
}

func newClient(opts Options, clock Clock, log zerolog.Logger) *Client {
	c := &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    newRateLimiter(opts.MaxRequests, opts.Window, clock, log),
		clock:      clock,
		jitter:     rand.Float64,
		log:        log.With().Str("component", "fetch").Logger(),
	}
	if opts.CacheTTL > 0 {
		c.cache = newCache(opts.CacheTTL, opts.CacheMaxEntries, clock)
	}
	return c
}

// Fetch performs a GET against endpoint with the given query parameters
// and returns the JSON payload. A cached payload is served without
// touching the network. Transient failures are retried with exponential
// backoff and jitter up to the attempt ceiling; the returned error is
// always a *Error (or a context error if the caller gave up).
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	key := cacheKey(endpoint, params)
	if c.cache != nil {
		if payload, ok := c.cache.Get(key); ok {
			c.log.Debug().Str("endpoint", endpoint).Msg("Cache hit")
			return payload, nil
		}
	}

	requestURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		payload, status, err := c.attempt(ctx, requestURL)
		if err == nil {
			if c.cache != nil {
				c.cache.Put(key, payload)
			}
			return payload, nil
		}

		// Malformed 200 bodies are terminal: retrying returns the same body.
		var fe *Error
		if errors.As(err, &fe) && fe.Kind == KindMalformedPayload {
			fe.Endpoint = endpoint
			fe.Attempts = attempt + 1
			return nil, fe
		}

		lastStatus = status
		lastErr = err

		var delay time.Duration
		switch {
		case status == http.StatusTooManyRequests:
			delay = c.backoff(attempt)
			if hinted, ok := retryAfter(err); ok {
				delay = hinted
			}
		case status != 0 && !c.opts.RetryAllStatuses && status >= 400 && status < 500:
			return nil, &Error{
				Kind:       KindFatalStatus,
				Endpoint:   endpoint,
				Attempts:   attempt + 1,
				LastStatus: status,
				Err:        err,
			}
		default:
			// Transport failure or non-200 status under the
			// retry-everything policy.
			delay = c.backoff(attempt)
		}

		if attempt == c.opts.MaxRetries-1 {
			break
		}

		c.log.Warn().
			Int("attempt", attempt).
			Int("status", status).
			Dur("delay", delay).
			Str("endpoint", endpoint).
			Msg("Retrying after failed attempt")

		if err := c.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &Error{
		Kind:       KindRetriesExhausted,
		Endpoint:   endpoint,
		Attempts:   c.opts.MaxRetries,
		LastStatus: lastStatus,
		Err:        lastErr,
	}
}

// attempt performs one HTTP round trip. Non-200 statuses and transport
// failures are returned as plain errors for the retry loop to classify;
// the status return is 0 when no response was received.
func (c *Client) attempt(ctx context.Context, requestURL string) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused across retries.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, &statusError{
			status:     resp.StatusCode,
			retryAfter: resp.Header.Get("Retry-After"),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if !json.Valid(body) {
		return nil, resp.StatusCode, &Error{
			Kind: KindMalformedPayload,
			Err:  fmt.Errorf("response is not valid JSON"),
		}
	}

	return json.RawMessage(body), resp.StatusCode, nil
}

// backoff computes the delay before the next attempt:
// BaseDelay * 2^attempt plus up to one second of jitter, capped by
// MaxDelay when a cap is configured.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.BaseDelay * (1 << uint(attempt))
	d += time.Duration(c.jitter() * float64(time.Second))
	if c.opts.MaxDelay > 0 && d > c.opts.MaxDelay {
		d = c.opts.MaxDelay
	}
	return d
}

func (c *Client) buildURL(endpoint string, params map[string]string) (string, error) {
	u, err := url.Parse(c.opts.BaseURL + endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// statusError carries a non-200 status through the retry loop along with
// the server's Retry-After hint, if any.
type statusError struct {
	status     int
	retryAfter string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API returned status %d", e.status)
}

// retryAfter extracts a server-supplied retry hint, in whole seconds,
// from a statusError.
func retryAfter(err error) (time.Duration, bool) {
	se, ok := err.(*statusError)
	if !ok || se.retryAfter == "" {
		return 0, false
	}
	secs, convErr := strconv.Atoi(se.retryAfter)
	if convErr != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
