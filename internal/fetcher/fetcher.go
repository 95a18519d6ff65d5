package fetcher

import (
	"context"
	"time"
)

// Session is one daily trading session of an instrument.
type Session struct {
	Date  time.Time
	Close float64
}

// History is the recent daily session history of one instrument, oldest first.
type History struct {
	Symbol   string
	Sessions []Session
}

// HistorySource is implemented by every quote-history provider.
// Implementations return a *FetchError on any failure and never panic on
// malformed payloads.
type HistorySource interface {
	// Name identifies the provider in the "source" field of quote records.
	Name() string

	// History returns the most recent daily sessions for symbol.
	History(ctx context.Context, symbol string) (History, error)
}

// BulkHistorySource fetches the histories of many instruments in one call.
// Symbols the provider returned nothing for are absent from the map.
type BulkHistorySource interface {
	Name() string
	BulkHistory(ctx context.Context, symbols []string) (map[string]History, error)
}
