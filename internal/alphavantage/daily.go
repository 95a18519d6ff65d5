package alphavantage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"marketsnapshot/internal/fetcher"
	"marketsnapshot/internal/ratelimit"
	"marketsnapshot/internal/snapshot"
)

const (
	// SourceName is the "source" of records built from this adapter.
	SourceName = "AlphaVantage"

	// DefaultBaseURL is the production query endpoint.
	DefaultBaseURL = "https://www.alphavantage.co/query"
)

// DailyResponse represents the AlphaVantage TIME_SERIES_DAILY response.
// Throttled and invalid requests come back as 200 with Note, Information
// or "Error Message" set instead of the series.
type DailyResponse struct {
	MetaData struct {
		Symbol        string `json:"2. Symbol"`
		LastRefreshed string `json:"3. Last Refreshed"`
	} `json:"Meta Data"`
	TimeSeries map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// DailyFetcher fetches daily closes from AlphaVantage.
// It implements fetcher.HistorySource.
type DailyFetcher struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewDailyFetcher creates a new daily history fetcher
func NewDailyFetcher(apiKey, baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, log zerolog.Logger) *DailyFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &DailyFetcher{
		apiKey:  apiKey,
		client:  fetcher.NewHTTPClient(baseURL, timeout),
		limiter: limiter,
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// Name implements fetcher.HistorySource.
func (f *DailyFetcher) Name() string {
	return SourceName
}

// History implements fetcher.HistorySource.
func (f *DailyFetcher) History(ctx context.Context, symbol string) (fetcher.History, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return fetcher.History{}, fetcher.Classify(err).WithSource(SourceName)
	}

	var result DailyResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":     f.apiKey,
			"function":   "TIME_SERIES_DAILY",
			"symbol":     symbol,
			"outputsize": "compact",
		}).
		SetResult(&result).
		Get("")
	if err := fetcher.CheckResponse(SourceName, resp, err); err != nil {
		return fetcher.History{}, fmt.Errorf("daily series %s: %w", symbol, err)
	}

	switch {
	case result.ErrorMessage != "":
		return fetcher.History{}, fetcher.NewClientError(resp.StatusCode(), result.ErrorMessage).WithSource(SourceName)
	case result.Note != "":
		return fetcher.History{}, fetcher.NewRateLimitError(resp.StatusCode()).WithSource(SourceName)
	case result.Information != "":
		return fetcher.History{}, fetcher.NewClientError(resp.StatusCode(), result.Information).WithSource(SourceName)
	case len(result.TimeSeries) == 0:
		return fetcher.History{}, fetcher.NewValidationError("time series not found in response for " + symbol).WithSource(SourceName)
	}

	h := fetcher.History{Symbol: symbol}
	for day, bar := range result.TimeSeries {
		date, err := time.Parse(snapshot.DateLayout, day)
		if err != nil {
			continue
		}
		c := snapshot.ParseFloat(bar.Close)
		if c == nil {
			continue
		}
		h.Sessions = append(h.Sessions, fetcher.Session{Date: date, Close: *c})
	}
	sort.Slice(h.Sessions, func(i, j int) bool {
		return h.Sessions[i].Date.Before(h.Sessions[j].Date)
	})

	f.log.Debug().Str("symbol", symbol).Int("sessions", len(h.Sessions)).Msg("fetched daily series")
	return h, nil
}
