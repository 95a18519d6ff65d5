// Package yahoo implements the Yahoo Finance quote-history adapters.
package yahoo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"marketsnapshot/internal/fetcher"
	"marketsnapshot/internal/ratelimit"
)

const (
	// SourceName is the "source" of records built from this adapter.
	SourceName = "YahooFinance"

	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	historyRange = "10d"
	bulkRange    = "5d"
)

// chartResult is one instrument's entry in chart and spark responses.
type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GMTOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			// Close entries are null on sessions without a settlement.
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// apiError is the error object Yahoo embeds in 200 and 404 responses alike.
type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResponse represents the /v8/finance/chart response.
type ChartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

// SparkResponse represents the /v8/finance/spark response.
type SparkResponse struct {
	Spark struct {
		Result []struct {
			Symbol   string        `json:"symbol"`
			Response []chartResult `json:"response"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"spark"`
}

// Client fetches daily session history from Yahoo Finance.
// It implements fetcher.HistorySource and fetcher.BulkHistorySource.
type Client struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewClient creates a Yahoo Finance client against baseURL.
func NewClient(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  fetcher.NewHTTPClient(baseURL, timeout),
		limiter: limiter,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// Name implements fetcher.HistorySource.
func (c *Client) Name() string {
	return SourceName
}

// History implements fetcher.HistorySource.
func (c *Client) History(ctx context.Context, symbol string) (fetcher.History, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return fetcher.History{}, fetcher.Classify(err).WithSource(SourceName)
	}

	var result ChartResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"range":    historyRange,
			"interval": "1d",
		}).
		SetResult(&result).
		Get("/v8/finance/chart/{symbol}")
	if err := fetcher.CheckResponse(SourceName, resp, err); err != nil {
		return fetcher.History{}, fmt.Errorf("chart %s: %w", symbol, err)
	}

	if e := result.Chart.Error; e != nil {
		return fetcher.History{}, fetcher.NewValidationError(e.Code + ": " + e.Description).WithSource(SourceName)
	}
	if len(result.Chart.Result) == 0 {
		return fetcher.History{}, fetcher.NewValidationError("empty chart result for " + symbol).WithSource(SourceName)
	}

	h := toHistory(symbol, result.Chart.Result[0])
	c.log.Debug().Str("symbol", symbol).Int("sessions", len(h.Sessions)).Msg("fetched history")
	return h, nil
}

// BulkHistory implements fetcher.BulkHistorySource with a single spark call.
func (c *Client) BulkHistory(ctx context.Context, symbols []string) (map[string]fetcher.History, error) {
	if len(symbols) == 0 {
		return map[string]fetcher.History{}, nil
	}
	if err := c.limiter.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return nil, fetcher.Classify(err).WithSource(SourceName)
	}

	var result SparkResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbols":  strings.Join(symbols, ","),
			"range":    bulkRange,
			"interval": "1d",
		}).
		SetResult(&result).
		Get("/v8/finance/spark")
	if err := fetcher.CheckResponse(SourceName, resp, err); err != nil {
		return nil, fmt.Errorf("spark: %w", err)
	}
	if e := result.Spark.Error; e != nil {
		return nil, fetcher.NewValidationError(e.Code + ": " + e.Description).WithSource(SourceName)
	}

	out := make(map[string]fetcher.History, len(result.Spark.Result))
	for _, r := range result.Spark.Result {
		if len(r.Response) == 0 {
			continue
		}
		h := toHistory(r.Symbol, r.Response[0])
		if len(h.Sessions) == 0 {
			continue
		}
		out[r.Symbol] = h
	}

	c.log.Debug().Int("requested", len(symbols)).Int("returned", len(out)).Msg("fetched bulk history")
	return out, nil
}

// toHistory pairs timestamps with closes, dropping sessions without a close.
// Session dates are taken in the exchange's own time zone.
func toHistory(symbol string, r chartResult) fetcher.History {
	h := fetcher.History{Symbol: symbol}
	if len(r.Indicators.Quote) == 0 {
		return h
	}

	loc := exchangeLocation(r.Meta.ExchangeTimezoneName, r.Meta.GMTOffset)
	closes := r.Indicators.Quote[0].Close
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		h.Sessions = append(h.Sessions, fetcher.Session{
			Date:  time.Unix(ts, 0).In(loc),
			Close: *closes[i],
		})
	}
	return h
}

func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", gmtOffset)
}
