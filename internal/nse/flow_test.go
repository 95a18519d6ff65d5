package nse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsnapshot/internal/cache"
	"marketsnapshot/internal/ratelimit"
	"marketsnapshot/internal/snapshot"
)

func newTestFetcher(t *testing.T, store cache.Store, status int, body string) *FlowFetcher {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, flowPath, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Referer"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewFlowFetcher(server.URL, time.Second, store, ratelimit.Unlimited(), zerolog.Nop())
}

func cachedRecord() snapshot.FlowRecord {
	return snapshot.FlowRecord{
		Date:     "2024-01-01",
		FIIValue: decimal.NewNullDecimal(decimal.NewFromInt(-100)),
		DIIValue: decimal.NewNullDecimal(decimal.NewFromInt(50)),
	}
}

func TestLatest_SuccessWritesThrough(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, cache.Save(store, CacheKey, cachedRecord()))

	f := newTestFetcher(t, store, http.StatusOK,
		`[{"date": "2024-01-02", "FII_net": "-1234.56", "DII_net": 987.1}]`)

	got := f.Latest(context.Background())

	want := snapshot.FlowRecord{
		Date:     "2024-01-02",
		FIIValue: decimal.NewNullDecimal(decimal.RequireFromString("-1234.56")),
		DIIValue: decimal.NewNullDecimal(decimal.RequireFromString("987.1")),
	}
	assert.True(t, want.Equal(got), "got %+v", got)

	var stored snapshot.FlowRecord
	require.NoError(t, cache.Load(store, CacheKey, &stored))
	assert.True(t, want.Equal(stored), "cache holds the fresh record")
}

func TestLatest_CategoryRows(t *testing.T) {
	store := cache.NewMemoryStore()
	f := newTestFetcher(t, store, http.StatusOK, `[
		{"category": "DII **", "date": "14-Oct-2025", "buyValue": "15000.1", "sellValue": "12000.0", "netValue": "3000.10"},
		{"category": "FII/FPI **", "date": "14-Oct-2025", "buyValue": "9000", "sellValue": "11000", "netValue": "-2000.00"}
	]`)

	got := f.Latest(context.Background())

	assert.Equal(t, "2025-10-14", got.Date)
	require.True(t, got.FIIValue.Valid)
	require.True(t, got.DIIValue.Valid)
	assert.True(t, got.FIIValue.Decimal.Equal(decimal.NewFromInt(-2000)))
	assert.True(t, got.DIIValue.Decimal.Equal(decimal.RequireFromString("3000.1")))
	assert.Empty(t, got.Note)
}

func TestLatest_FailureUsesCache(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusServiceUnavailable, `{}`},
		{"forbidden", http.StatusForbidden, `<html>denied</html>`},
		{"empty list", http.StatusOK, `[]`},
		{"no values", http.StatusOK, `[{"date": "2024-01-02", "FII_net": "-", "DII_net": ""}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := cache.NewMemoryStore()
			require.NoError(t, cache.Save(store, CacheKey, cachedRecord()))

			f := newTestFetcher(t, store, tt.status, tt.body)
			got := f.Latest(context.Background())

			assert.True(t, cachedRecord().Equal(got), "got %+v", got)

			var stored snapshot.FlowRecord
			require.NoError(t, cache.Load(store, CacheKey, &stored))
			assert.True(t, cachedRecord().Equal(stored), "a failure leaves the cache alone")
		})
	}
}

func TestLatest_CachedRecordKeepsItsJSON(t *testing.T) {
	cached := `{"date":"2024-01-01","fii_value":-100,"dii_value":50}`
	store := cache.NewMemoryStore()
	require.NoError(t, store.Put(CacheKey, []byte(cached)))

	f := newTestFetcher(t, store, http.StatusServiceUnavailable, `{}`)
	got := f.Latest(context.Background())

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, cached, string(raw))
}

func TestLatest_FailureWithoutCache(t *testing.T) {
	store := cache.NewMemoryStore()
	f := newTestFetcher(t, store, http.StatusInternalServerError, `{}`)

	got := f.Latest(context.Background())

	assert.Equal(t, snapshot.NoFlowDataNote, got.Note)
	assert.False(t, got.Available())

	_, err := store.Get(CacheKey)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestLatest_CorruptCache(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Put(CacheKey, []byte(`{broken`)))

	f := newTestFetcher(t, store, http.StatusInternalServerError, `{}`)

	got := f.Latest(context.Background())
	assert.Equal(t, snapshot.NoFlowData(), got)
}

func TestLatest_Unreachable(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, cache.Save(store, CacheKey, cachedRecord()))

	f := NewFlowFetcher("http://127.0.0.1:1", 200*time.Millisecond, store, nil, zerolog.Nop())

	got := f.Latest(context.Background())
	assert.True(t, cachedRecord().Equal(got))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		rows   []map[string]any
		wantOK bool
		date   string
	}{
		{"no rows", nil, false, ""},
		{"net fields", []map[string]any{{"date": "03-Jan-2024", "FII_net": 1.5, "DII_net": -2.0}}, true, "2024-01-03"},
		{"only dii", []map[string]any{{"category": "DII", "date": "x", "netValue": "12"}}, true, "x"},
		{"unknown categories", []map[string]any{{"category": "PRO", "netValue": "12"}}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Normalize(tt.rows)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.date, rec.Date)
			}
		})
	}
}
