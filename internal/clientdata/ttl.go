package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Market rows drive the card grid and go stale quickly.
	TTLMarkets = time.Minute

	// Sparkline series cover seven days of hourly prices; an extra few
	// minutes of staleness is invisible on the chart.
	TTLSparkline = 10 * time.Minute
)
