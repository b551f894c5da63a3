package market

import (
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SparklineReport summarizes a coin's sparkline series for the chart
// surface. The raw prices are passed through untouched; Smoothed carries
// a simple moving average when the series is long enough.
type SparklineReport struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Prices    []float64 `json:"prices"`
	Smoothed  []float64 `json:"smoothed,omitempty"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	ChangePct float64   `json:"change_pct"`
}

// smaWindow is the smoothing window for sparkline charts. CoinGecko
// sparklines are hourly over 7 days, so 24 points is one day.
const smaWindow = 24

// Summarize builds a SparklineReport for one coin's price series.
// An empty series yields a report with zeroed statistics.
func Summarize(id, symbol string, prices []float64) SparklineReport {
	report := SparklineReport{
		ID:     id,
		Symbol: symbol,
		Prices: prices,
	}
	if len(prices) == 0 {
		return report
	}

	report.Min = floats.Min(prices)
	report.Max = floats.Max(prices)
	report.Mean = stat.Mean(prices, nil)
	if len(prices) > 1 {
		report.StdDev = stat.StdDev(prices, nil)
	}
	if first := prices[0]; first != 0 {
		report.ChangePct = (prices[len(prices)-1] - first) / first * 100
	}

	if len(prices) >= smaWindow {
		report.Smoothed = talib.Sma(prices, smaWindow)
	}

	return report
}
