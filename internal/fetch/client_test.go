package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(baseURL string) Options {
	opts := DefaultOptions(baseURL)
	opts.CacheTTL = 0 // individual tests opt in
	return opts
}

// newTestClient builds a client against a scripted server with a manual
// clock and deterministic jitter of 0.5s.
func newTestClient(t *testing.T, opts Options) (*Client, *manualClock) {
	t.Helper()
	clock := newManualClock()
	client := newClient(opts, clock, zerolog.Nop())
	client.jitter = func() float64 { return 0.5 }
	return client, clock
}

func TestFetchSuccessFirstAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		w.Write([]byte(`[{"id":"bitcoin"}]`))
	}))
	defer srv.Close()

	client, clock := newTestClient(t, testOptions(srv.URL))

	payload, err := client.Fetch(context.Background(), "/coins/markets", map[string]string{"vs_currency": "usd"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"bitcoin"}]`, string(payload))
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, clock.Sleeps())
}

func TestFetchRetriesOn429WithExponentialBackoff(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.BaseDelay = time.Second
	client, clock := newTestClient(t, opts)

	payload, err := client.Fetch(context.Background(), "/coins/markets", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(payload))
	assert.Equal(t, int32(3), hits.Load())

	// Attempts 0 and 1 failed: delays are base*2^0 and base*2^1 plus
	// the fixed 0.5s jitter.
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 2)
	assert.Equal(t, 1500*time.Millisecond, sleeps[0])
	assert.Equal(t, 2500*time.Millisecond, sleeps[1])
}

func TestFetchHonorsRetryAfterHint(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, clock := newTestClient(t, testOptions(srv.URL))

	_, err := client.Fetch(context.Background(), "/ping", nil)
	require.NoError(t, err)

	// The server hint wins over the computed exponential delay.
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 5*time.Second, sleeps[0])
}

func TestFetchExhaustsRetriesOnPersistentServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.MaxRetries = 4
	client, clock := newTestClient(t, opts)

	_, err := client.Fetch(context.Background(), "/coins/markets", nil)
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindRetriesExhausted, fe.Kind)
	assert.Equal(t, 4, fe.Attempts)
	assert.Equal(t, http.StatusInternalServerError, fe.LastStatus)

	assert.Equal(t, int32(4), hits.Load())
	// No sleep after the final attempt.
	assert.Len(t, clock.Sleeps(), 3)
}

func TestFetchRetriesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every attempt now fails at the transport level

	opts := testOptions(srv.URL)
	opts.MaxRetries = 2
	client, clock := newTestClient(t, opts)

	_, err := client.Fetch(context.Background(), "/coins/markets", nil)
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindRetriesExhausted, fe.Kind)
	assert.Equal(t, 0, fe.LastStatus)
	assert.Len(t, clock.Sleeps(), 1)
}

func TestFetchFatalClientErrorWhenRetryAllDisabled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.RetryAllStatuses = false
	client, _ := newTestClient(t, opts)

	_, err := client.Fetch(context.Background(), "/coins/unknown", nil)
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindFatalStatus, fe.Kind)
	assert.Equal(t, http.StatusNotFound, fe.LastStatus)
	assert.Equal(t, int32(1), hits.Load(), "4xx must not be retried under this policy")
}

func TestFetchRetriesClientErrorWhenRetryAllEnabled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, clock := newTestClient(t, testOptions(srv.URL))

	_, err := client.Fetch(context.Background(), "/coins/markets", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Len(t, clock.Sleeps(), 1)
}

func TestFetchMalformedBodyIsTerminal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	client, clock := newTestClient(t, testOptions(srv.URL))

	_, err := client.Fetch(context.Background(), "/coins/markets", nil)
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindMalformedPayload, fe.Kind)
	assert.Equal(t, 1, fe.Attempts)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, clock.Sleeps())
}

func TestFetchServesCachedPayloadWithinTTL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[{"id":"bitcoin"}]`))
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.CacheTTL = time.Minute
	opts.CacheMaxEntries = 8
	client, clock := newTestClient(t, opts)

	params := map[string]string{"vs_currency": "usd", "page": "1"}

	first, err := client.Fetch(context.Background(), "/coins/markets", params)
	require.NoError(t, err)
	second, err := client.Fetch(context.Background(), "/coins/markets", params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load(), "second call within TTL must be served from cache")

	// After the TTL elapses the network is consulted again.
	clock.Advance(time.Minute)
	_, err = client.Fetch(context.Background(), "/coins/markets", params)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchBackoffCap(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.MaxRetries = 5
	opts.BaseDelay = time.Second
	opts.MaxDelay = 3 * time.Second
	client, clock := newTestClient(t, opts)

	_, err := client.Fetch(context.Background(), "/coins/markets", nil)
	require.Error(t, err)

	for _, s := range clock.Sleeps() {
		assert.LessOrEqual(t, s, 3*time.Second)
	}
}
