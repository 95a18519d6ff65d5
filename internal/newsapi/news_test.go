package newsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsnapshot/internal/ratelimit"
)

func newTestClient(t *testing.T, status int, body string, calls *int32) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		assert.Equal(t, everythingPath, r.URL.Path)
		assert.Equal(t, "finance", r.URL.Query().Get("q"))
		assert.Equal(t, "6", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "publishedAt", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "test_key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewClient("test_key", server.URL, "", time.Second, ratelimit.Unlimited(), zerolog.Nop())
}

func TestSearch_Success(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.StatusOK, `{
		"status": "ok",
		"totalResults": 2,
		"articles": [
			{"source": {"id": null, "name": "Reuters"}, "author": "A. Writer", "title": "Markets rally", "description": null, "url": "https://example.com/a", "publishedAt": "2024-01-02T10:00:00Z"},
			{"source": {"id": "bbc-news", "name": "BBC News"}, "title": "Rupee steady", "url": "https://example.com/b", "publishedAt": "2024-01-02T09:00:00Z"}
		]
	}`, &calls)

	got := c.Search(context.Background(), "finance", 6)

	assert.Empty(t, got.Error)
	require.Len(t, got.Articles, 2)
	assert.Equal(t, "Markets rally", got.Articles[0].Title)
	assert.Equal(t, "Reuters", got.Articles[0].Source.Name)
	assert.Nil(t, got.Articles[0].Source.ID)
	assert.Equal(t, "2024-01-02T09:00:00Z", got.Articles[1].PublishedAt)
	assert.EqualValues(t, 1, calls)
}

func TestSearch_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`, "status 401"},
		{"error status", http.StatusOK, `{"status":"error","code":"parameterInvalid","message":"bad q"}`, "bad q"},
		{"server error", http.StatusBadGateway, ``, "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, tt.status, tt.body, &calls)

			got := c.Search(context.Background(), "finance", 6)

			assert.Contains(t, got.Error, tt.want)
			assert.NotNil(t, got.Articles)
			assert.Empty(t, got.Articles)
			assert.EqualValues(t, 1, calls, "never retried")
		})
	}
}

func TestSearch_TrimsToPageSize(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.StatusOK, `{"status":"ok","articles":[
		{"title":"1"},{"title":"2"},{"title":"3"},{"title":"4"},{"title":"5"},{"title":"6"},{"title":"7"}
	]}`, &calls)

	got := c.Search(context.Background(), "finance", 6)
	assert.Len(t, got.Articles, 6)
}

func TestSearch_Unreachable(t *testing.T) {
	c := NewClient("k", "http://127.0.0.1:1", "en", 200*time.Millisecond, nil, zerolog.Nop())

	got := c.Search(context.Background(), "finance", 6)
	assert.NotEmpty(t, got.Error)
	assert.Equal(t, 0, len(got.Articles))
	assert.NotNil(t, got.Articles)
}
