// Package marketdata fetches daily OHLCV series from a time-series provider.
// The core pipeline only requires an ordered, duplicate-free price table; the
// client sorts and validates before handing data over.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "github.com/Alias1177/Foresight/internal/platform/http"
	"github.com/Alias1177/Foresight/models"
)

// Client is a daily time-series API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *platformhttp.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Client.
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new market data client.
func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = "https://api.twelvedata.com"
	}
	return &Client{
		apiKey:  options.APIKey,
		baseURL: options.BaseURL,
		httpClient: platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:         options.RequestTimeout,
			RequestsPerSec:  options.RequestsPerSec,
			MaxRetryTimeout: options.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "marketdata_client").Logger(),
	}
}

type timeSeriesResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

// GetDailySeries fetches count daily bars for a symbol, oldest first.
func (c *Client) GetDailySeries(ctx context.Context, symbol string, count int) ([]models.PricePoint, error) {
	url := fmt.Sprintf(
		"%s/time_series?symbol=%s&interval=1day&outputsize=%d&apikey=%s",
		c.baseURL, symbol, count, c.apiKey,
	)

	c.logger.Debug().Str("symbol", symbol).Int("count", count).Msg("Fetching daily series")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Msg("Error parsing time series JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		return nil, fmt.Errorf("provider error: %s", data.Message)
	}
	if len(data.Values) == 0 {
		return nil, fmt.Errorf("empty data returned for %s", symbol)
	}

	// Oldest first for downstream calculations
	sort.Slice(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	prices := make([]models.PricePoint, 0, len(data.Values))
	for _, v := range data.Values {
		point, err := parseBar(v.Datetime, v.Open, v.High, v.Low, v.Close, v.Volume)
		if err != nil {
			return nil, fmt.Errorf("bar %s: %w", v.Datetime, err)
		}
		prices = append(prices, point)
	}

	c.logger.Debug().Int("bars", len(prices)).Msg("Fetched daily series")
	return prices, nil
}

func parseBar(datetime, open, high, low, closePx, volume string) (models.PricePoint, error) {
	ts, err := time.Parse("2006-01-02", datetime)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("parsing datetime: %w", err)
	}
	fields := [5]float64{}
	for i, raw := range [5]string{open, high, low, closePx, volume} {
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.PricePoint{}, fmt.Errorf("parsing field %d: %w", i, err)
		}
		fields[i] = v
	}
	return models.PricePoint{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}
