// Package market adapts an external historical-bars API into the
// backtest engine's OHLCV domain types.
package market

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"backtestcore/logging"
	"backtestcore/ohlcvcache"
)

const (
	alpacaDataURL     = "https://data.alpaca.markets/v2/stocks"
	alpacaMaxBarLimit = 10000
)

var (
	globalAlpacaAPIKey    string
	globalAlpacaAPISecret string
)

// SetAlpacaCredentials sets the Alpaca API credentials used by
// AlpacaDataSource, overriding the environment variables.
func SetAlpacaCredentials(apiKey, apiSecret string) {
	globalAlpacaAPIKey = apiKey
	globalAlpacaAPISecret = apiSecret
}

// alpacaBar is the wire shape of one bar in an Alpaca bars response.
type alpacaBar struct {
	Timestamp string  `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

type alpacaBarsResponse struct {
	Bars          []alpacaBar `json:"bars"`
	NextPageToken string      `json:"next_page_token"`
	Symbol        string      `json:"symbol"`
}

// AlpacaDataSource adapts Alpaca's historical-bars REST API into the
// processor/portfolio OHLCV-loading contract, keyed by a fixed bar
// timeframe (e.g. "1d").
type AlpacaDataSource struct {
	Timeframe string
	logger    logging.Logger
}

// NewAlpacaDataSource builds a data source at the given bar timeframe,
// defaulting to daily bars.
func NewAlpacaDataSource(timeframe string) AlpacaDataSource {
	if timeframe == "" {
		timeframe = "1d"
	}
	return AlpacaDataSource{Timeframe: timeframe, logger: logging.Default().With("component", "alpaca_data_source")}
}

// Load implements the processor.DataSource / portfolio.OHLCVSource
// contract, fetching bars directly into ohlcvcache.Bar with no
// intermediate domain type.
func (s AlpacaDataSource) Load(ticker string, start, end time.Time) (ohlcvcache.Frame, error) {
	bars, err := fetchBars(s.logger, ticker, s.Timeframe, start, end)
	if err != nil {
		return ohlcvcache.Frame{}, fmt.Errorf("load historical bars for %s: %w", ticker, err)
	}
	return ohlcvcache.Frame{Ticker: ticker, Bars: bars}, nil
}

func mapTimeframeToAlpaca(tf string) string {
	tf = strings.ToLower(tf)
	switch tf {
	case "1m", "1min":
		return "1Min"
	case "5m", "5min":
		return "5Min"
	case "15m", "15min":
		return "15Min"
	case "30m", "30min":
		return "30Min"
	case "1h", "60m", "60":
		return "1Hour"
	case "4h", "240m", "240":
		return "4Hour"
	case "1d", "d", "1day":
		return "1Day"
	case "1w", "w", "1week":
		return "1Week"
	default:
		if strings.HasSuffix(tf, "m") || strings.HasSuffix(tf, "min") {
			return tf[:len(tf)-1] + "Min"
		}
		if strings.HasSuffix(tf, "h") || strings.HasSuffix(tf, "hour") {
			return tf[:len(tf)-1] + "Hour"
		}
		return "1Hour"
	}
}

// fetchBars fetches bars within [start, end) for symbol at timeframe,
// paginating through Alpaca's next_page_token, and returns them in the
// order the API delivered them; no sort is applied here.
func fetchBars(logger logging.Logger, symbol, timeframe string, start, end time.Time) ([]ohlcvcache.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSuffix(symbol, "USDT"))
	symbol = strings.TrimSuffix(symbol, "USD")

	alpacaTF := mapTimeframeToAlpaca(timeframe)

	if !end.After(start) {
		return nil, fmt.Errorf("end time must be after start time")
	}

	apiKey := globalAlpacaAPIKey
	apiSecret := globalAlpacaAPISecret
	if apiKey == "" {
		apiKey = os.Getenv("ALPACA_API_KEY")
	}
	if apiSecret == "" {
		apiSecret = os.Getenv("ALPACA_API_SECRET")
	}
	if apiKey == "" {
		apiKey = os.Getenv("APCA_API_KEY_ID")
	}
	if apiSecret == "" {
		apiSecret = os.Getenv("APCA_API_SECRET_KEY")
	}
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("alpaca API credentials not configured: set ALPACA_API_KEY/ALPACA_API_SECRET or APCA_API_KEY_ID/APCA_API_SECRET_KEY")
	}

	logger.Debugf("fetching bars for %s %s using API key %s...%s", symbol, timeframe, apiKey[:min(4, len(apiKey))], apiKey[max(0, len(apiKey)-4):])

	var bars []ohlcvcache.Bar
	nextPageToken := ""
	client := &http.Client{Timeout: 30 * time.Second}

	for {
		url := fmt.Sprintf("%s/%s/bars", alpacaDataURL, symbol)

		req, err := http.NewRequest("GET", url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("APCA-API-KEY-ID", apiKey)
		req.Header.Set("APCA-API-SECRET-KEY", apiSecret)

		q := req.URL.Query()
		q.Set("timeframe", alpacaTF)
		q.Set("start", start.Format(time.RFC3339))
		q.Set("end", end.Format(time.RFC3339))
		q.Set("limit", fmt.Sprintf("%d", alpacaMaxBarLimit))
		q.Set("adjustment", "split")
		if nextPageToken != "" {
			q.Set("page_token", nextPageToken)
		}
		req.URL.RawQuery = q.Encode()

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("alpaca API request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("alpaca API returned status %d: %s", resp.StatusCode, string(body))
		}

		var barsResp alpacaBarsResponse
		if err := json.Unmarshal(body, &barsResp); err != nil {
			return nil, fmt.Errorf("parse alpaca response: %w", err)
		}

		for _, b := range barsResp.Bars {
			t, err := time.Parse(time.RFC3339, b.Timestamp)
			if err != nil {
				continue
			}
			bars = append(bars, ohlcvcache.Bar{
				Time:   t.UTC(),
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: int64(b.Volume),
			})
		}

		if barsResp.NextPageToken == "" || len(barsResp.Bars) == 0 {
			break
		}
		nextPageToken = barsResp.NextPageToken
	}

	return bars, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
