package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/HydraX/internal/platform/http"
	"github.com/Alias1177/HydraX/models"
)

// DefaultBaseURL is the public Twelve Data REST endpoint
const DefaultBaseURL = "https://api.twelvedata.com"

// ErrEmptySeries is returned when the API answers without candles
var ErrEmptySeries = errors.New("empty data returned")

// intervals maps timeframes to Twelve Data interval names
var intervals = map[models.Timeframe]string{
	models.M1:  "1min",
	models.M5:  "5min",
	models.M15: "15min",
	models.M30: "30min",
	models.H1:  "1h",
	models.H4:  "4h",
	models.D1:  "1day",
}

// DefaultSymbols translates exchange symbols to Twelve Data pairs
var DefaultSymbols = map[string]string{
	"BTCUSDT":  "BTC/USD",
	"ETHUSDT":  "ETH/USD",
	"XAUTUSDT": "XAU/USD",
}

// Client is the Twelve Data API client; it implements models.CandleSource
type Client struct {
	apiKey     string
	baseURL    string
	symbols    map[string]string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Twelve Data client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	Symbols         map[string]string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
	RetryInterval   time.Duration
}

// timeSeries is the time_series response body
type timeSeries struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a new Twelve Data API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		MaxRetryTimeout: options.MaxRetryTimeout,
		InitialInterval: options.RetryInterval,
	}
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.Symbols == nil {
		options.Symbols = DefaultSymbols
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    options.BaseURL,
		symbols:    options.Symbols,
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// Interval returns the Twelve Data interval for tf
func Interval(tf models.Timeframe) (string, bool) {
	s, ok := intervals[tf]
	return s, ok
}

// FetchCandles returns up to limit closed and forming candles, oldest first
func (c *Client) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	interval, ok := Interval(tf)
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
	pair := symbol
	if mapped, ok := c.symbols[symbol]; ok {
		pair = mapped
	}

	q := url.Values{}
	q.Set("symbol", pair)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(limit))
	q.Set("timezone", "UTC")
	q.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "/time_series?" + q.Encode()

	c.logger.Debug().Str("symbol", pair).Str("interval", interval).Int("limit", limit).Msg("Fetching candles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data timeSeries
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		c.logger.Error().Int("code", data.Code).Str("message", data.Message).Msg("Twelve Data API error")
		return nil, fmt.Errorf("twelve data API error %d: %s", data.Code, data.Message)
	}
	if len(data.Values) == 0 {
		return nil, ErrEmptySeries
	}

	candles := make([]models.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		ts, err := parseDatetime(v.Datetime)
		if err != nil {
			c.logger.Warn().Err(err).Str("datetime", v.Datetime).Msg("Skipping candle with bad timestamp")
			continue
		}
		candle, err := parseOHLCV(v.Open, v.High, v.Low, v.Close, v.Volume)
		if err != nil {
			c.logger.Warn().Err(err).Str("datetime", v.Datetime).Msg("Skipping candle with bad prices")
			continue
		}
		candle.Timestamp = ts
		candle.Timeframe = tf
		candles = append(candles, candle)
	}

	// Sort candles by datetime (oldest first for proper calculations)
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	c.logger.Debug().Int("count", len(candles)).Str("symbol", symbol).Msg("Fetched candles")
	return candles, nil
}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

func parseOHLCV(open, high, low, closePrice, volume string) (models.Candle, error) {
	var c models.Candle
	fields := []struct {
		raw string
		dst *float64
	}{
		{open, &c.Open}, {high, &c.High}, {low, &c.Low}, {closePrice, &c.Close},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return c, err
		}
		*f.dst = v
	}
	// forex pairs come without volume
	if volume != "" {
		v, err := strconv.ParseFloat(volume, 64)
		if err != nil {
			return c, err
		}
		c.Volume = v
	}
	return c, nil
}
