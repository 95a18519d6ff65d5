// Package nse implements the institutional-flow (FII/DII) adapter.
package nse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"marketsnapshot/internal/cache"
	"marketsnapshot/internal/fetcher"
	"marketsnapshot/internal/ratelimit"
	"marketsnapshot/internal/snapshot"
)

const (
	// SourceName identifies the adapter in logs and errors.
	SourceName = "NSE"

	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://www.nseindia.com"

	// CacheKey is the data family the last good record is cached under.
	CacheKey = "fii_dii"

	flowPath  = "/api/fiidiiTradeReact"
	nseLayout = "02-Jan-2006"
)

// FlowFetcher fetches the latest FII/DII net flow. A successful fetch is
// written through to the fallback store; a failed one is answered from it.
type FlowFetcher struct {
	client  *resty.Client
	store   cache.Store
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewFlowFetcher creates a flow fetcher backed by store.
func NewFlowFetcher(baseURL string, timeout time.Duration, store cache.Store, limiter *ratelimit.Limiter, log zerolog.Logger) *FlowFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := fetcher.NewHTTPClient(baseURL, timeout).
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Referer", DefaultBaseURL+"/")

	return &FlowFetcher{
		client:  client,
		store:   store,
		limiter: limiter,
		log:     log.With().Str("client", "nse").Logger(),
	}
}

// Latest returns the most recent flow record. It never fails: when the
// source is unavailable it returns the cached record unchanged, and when
// there is no cached record it returns snapshot.NoFlowData.
func (f *FlowFetcher) Latest(ctx context.Context) snapshot.FlowRecord {
	rec, err := f.fetch(ctx)
	if err == nil {
		if err := cache.Save(f.store, CacheKey, rec); err != nil {
			f.log.Error().Err(err).Msg("failed to update fallback cache")
		}
		return rec
	}

	f.log.Warn().Err(err).Msg("failed to fetch FII/DII data")

	var cached snapshot.FlowRecord
	switch err := cache.Load(f.store, CacheKey, &cached); {
	case err == nil:
		f.log.Warn().Bool("stale", true).Str("date", cached.Date).Msg("using cached FII/DII data")
		return cached
	case errors.Is(err, cache.ErrNotFound):
		f.log.Warn().Msg("no cached FII/DII data")
	default:
		f.log.Error().Err(err).Msg("failed to read fallback cache")
	}
	return snapshot.NoFlowData()
}

func (f *FlowFetcher) fetch(ctx context.Context) (snapshot.FlowRecord, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APINSE); err != nil {
		return snapshot.FlowRecord{}, fetcher.Classify(err).WithSource(SourceName)
	}

	var rows []map[string]any
	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&rows).
		Get(flowPath)
	if err := fetcher.CheckResponse(SourceName, resp, err); err != nil {
		return snapshot.FlowRecord{}, fmt.Errorf("fii/dii: %w", err)
	}
	if len(rows) == 0 {
		return snapshot.FlowRecord{}, fetcher.NewValidationError("empty FII/DII response").WithSource(SourceName)
	}

	rec, ok := Normalize(rows)
	if !ok {
		return snapshot.FlowRecord{}, fetcher.NewValidationError("no FII/DII values in response").WithSource(SourceName)
	}
	return rec, nil
}

// Normalize converts the provider rows into a flow record. Two shapes are
// understood: a single row carrying FII_net and DII_net, and one row per
// category ("FII/FPI", "DII") carrying netValue. The first row is the most
// recent one.
func Normalize(rows []map[string]any) (snapshot.FlowRecord, bool) {
	if len(rows) == 0 {
		return snapshot.FlowRecord{}, false
	}

	first := rows[0]
	if _, ok := first["FII_net"]; ok {
		rec := snapshot.FlowRecord{
			Date:     normalizeDate(first["date"]),
			FIIValue: snapshot.ParseDecimal(first["FII_net"]),
			DIIValue: snapshot.ParseDecimal(first["DII_net"]),
		}
		return rec, rec.Available()
	}

	var rec snapshot.FlowRecord
	for _, row := range rows {
		category, _ := row["category"].(string)
		category = strings.ToUpper(category)

		switch {
		case strings.HasPrefix(category, "FII") && !rec.FIIValue.Valid:
			rec.FIIValue = snapshot.ParseDecimal(row["netValue"])
		case strings.HasPrefix(category, "DII") && !rec.DIIValue.Valid:
			rec.DIIValue = snapshot.ParseDecimal(row["netValue"])
		default:
			continue
		}
		if rec.Date == "" {
			rec.Date = normalizeDate(row["date"])
		}
	}
	return rec, rec.Available()
}

// normalizeDate rewrites NSE's dd-Mon-yyyy dates as yyyy-mm-dd. Other
// values are kept as given.
func normalizeDate(v any) string {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	if t, err := time.Parse(nseLayout, s); err == nil {
		return t.Format(snapshot.DateLayout)
	}
	return s
}
