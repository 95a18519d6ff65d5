package testutil

import (
	"context"
	"sync"
	"time"

	"marketsnapshot/internal/fetcher"
	"marketsnapshot/internal/snapshot"
)

// MockHistorySource is a mock implementation of fetcher.HistorySource and
// fetcher.BulkHistorySource for testing.
type MockHistorySource struct {
	NameValue       string
	HistoryFunc     func(ctx context.Context, symbol string) (fetcher.History, error)
	BulkHistoryFunc func(ctx context.Context, symbols []string) (map[string]fetcher.History, error)

	mu    sync.Mutex
	calls []string
}

// Name implements fetcher.HistorySource
func (m *MockHistorySource) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// History implements fetcher.HistorySource
func (m *MockHistorySource) History(ctx context.Context, symbol string) (fetcher.History, error) {
	m.record(symbol)
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, symbol)
	}
	return fetcher.History{Symbol: symbol}, nil
}

// BulkHistory implements fetcher.BulkHistorySource
func (m *MockHistorySource) BulkHistory(ctx context.Context, symbols []string) (map[string]fetcher.History, error) {
	m.record(symbols...)
	if m.BulkHistoryFunc != nil {
		return m.BulkHistoryFunc(ctx, symbols)
	}
	return map[string]fetcher.History{}, nil
}

// Calls returns the symbols requested so far.
func (m *MockHistorySource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockHistorySource) record(symbols ...string) {
	m.mu.Lock()
	m.calls = append(m.calls, symbols...)
	m.mu.Unlock()
}

// NewMockHistorySource creates a source that serves fixed closing prices.
// Symbols without an entry fail with err, or with a validation error when
// err is nil.
func NewMockHistorySource(name string, closes map[string][]float64, err error) *MockHistorySource {
	return &MockHistorySource{
		NameValue: name,
		HistoryFunc: func(ctx context.Context, symbol string) (fetcher.History, error) {
			c, ok := closes[symbol]
			if !ok {
				if err != nil {
					return fetcher.History{}, err
				}
				return fetcher.History{}, fetcher.NewValidationError("unknown symbol " + symbol)
			}
			return Sessions(symbol, c...), nil
		},
		BulkHistoryFunc: func(ctx context.Context, symbols []string) (map[string]fetcher.History, error) {
			if err != nil {
				return nil, err
			}
			out := make(map[string]fetcher.History)
			for _, s := range symbols {
				if c, ok := closes[s]; ok {
					out[s] = Sessions(s, c...)
				}
			}
			return out, nil
		},
	}
}

// Sessions builds a daily history ending on 2024-01-02 with the given closes.
func Sessions(symbol string, closes ...float64) fetcher.History {
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	h := fetcher.History{Symbol: symbol}
	for i, c := range closes {
		h.Sessions = append(h.Sessions, fetcher.Session{
			Date:  end.AddDate(0, 0, i-len(closes)+1),
			Close: c,
		})
	}
	return h
}

// MockFlowSource returns a fixed flow record.
type MockFlowSource struct {
	Record snapshot.FlowRecord
}

// Latest implements coordinator.FlowSource
func (m *MockFlowSource) Latest(ctx context.Context) snapshot.FlowRecord {
	return m.Record
}

// MockNewsSource returns a fixed news payload.
type MockNewsSource struct {
	Payload snapshot.NewsPayload
}

// Search implements coordinator.NewsSource
func (m *MockNewsSource) Search(ctx context.Context, query string, pageSize int) snapshot.NewsPayload {
	return m.Payload
}
