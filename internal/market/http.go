package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultChartBaseURL = "https://query1.finance.yahoo.com"

// intervalRange maps a bar interval to the widest chart range the
// endpoint serves for it.
var intervalRange = map[string]string{
	"1m":  "1d",
	"2m":  "5d",
	"5m":  "5d",
	"15m": "5d",
	"30m": "1mo",
	"1h":  "1mo",
	"1d":  "6mo",
}

// HTTPProvider fetches quotes and history from a Yahoo-compatible
// chart endpoint.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPProvider creates a provider against baseURL. An empty baseURL
// selects the public endpoint.
func NewHTTPProvider(baseURL string, logger zerolog.Logger) *HTTPProvider {
	if baseURL == "" {
		baseURL = defaultChartBaseURL
	}
	return &HTTPProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "market").Logger(),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *HTTPProvider) fetchChart(ctx context.Context, symbol, interval, chartRange string) (*chartResponse, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s", p.baseURL, symbol, interval, chartRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build chart request: %w", err)
	}
	req.Header.Set("User-Agent", "stock-trading-bot/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chart for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart endpoint returned %d for %s", resp.StatusCode, symbol)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart endpoint error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, ErrNoData
	}
	return &chart, nil
}

// GetCurrentPrice returns the latest traded price for symbol.
func (p *HTTPProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	chart, err := p.fetchChart(ctx, symbol, "1m", "1d")
	if err != nil {
		return 0, err
	}

	result := chart.Chart.Result[0]
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice, nil
	}

	// Fall back to the last non-null close.
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil && *closes[i] > 0 {
				return *closes[i], nil
			}
		}
	}
	return 0, ErrNoData
}

// GetKlines returns up to limit most recent bars for symbol, oldest first.
// Bars with missing quote fields are skipped.
func (p *HTTPProvider) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]Kline, error) {
	chartRange, ok := intervalRange[interval]
	if !ok {
		chartRange = "1mo"
	}

	chart, err := p.fetchChart(ctx, symbol, interval, chartRange)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	quote := result.Indicators.Quote[0]

	bars := len(result.Timestamp)
	for _, series := range [][]*float64{quote.Open, quote.High, quote.Low, quote.Close} {
		if len(series) < bars {
			bars = len(series)
		}
	}

	klines := make([]Kline, 0, bars)
	for i := 0; i < bars; i++ {
		ts := result.Timestamp[i]
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		k := Kline{
			OpenTime:  ts * 1000,
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			CloseTime: ts * 1000,
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			k.Volume = *quote.Volume[i]
		}
		klines = append(klines, k)
	}

	if len(klines) == 0 {
		return nil, ErrNoData
	}
	if limit > 0 && len(klines) > limit {
		klines = klines[len(klines)-limit:]
	}

	p.logger.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("bars", len(klines)).
		Msg("fetched price history")

	return klines, nil
}
