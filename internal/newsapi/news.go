// Package newsapi implements the news headline adapter.
package newsapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"marketsnapshot/internal/fetcher"
	"marketsnapshot/internal/ratelimit"
	"marketsnapshot/internal/snapshot"
)

const (
	// SourceName identifies the adapter in logs and errors.
	SourceName = "NewsAPI"

	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://newsapi.org"

	everythingPath = "/v2/everything"
)

// SearchResponse represents the /v2/everything response. Failures carry
// status "error" with Code and Message instead of articles.
type SearchResponse struct {
	Status       string             `json:"status"`
	TotalResults int                `json:"totalResults"`
	Articles     []snapshot.Article `json:"articles"`
	Code         string             `json:"code"`
	Message      string             `json:"message"`
}

// Client searches news articles.
type Client struct {
	apiKey   string
	language string
	client   *resty.Client
	limiter  *ratelimit.Limiter
	log      zerolog.Logger
}

// NewClient creates a NewsAPI client. language restricts results, "en" when
// empty.
func NewClient(apiKey, baseURL, language string, timeout time.Duration, limiter *ratelimit.Limiter, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if language == "" {
		language = "en"
	}
	return &Client{
		apiKey:   apiKey,
		language: language,
		client:   fetcher.NewHTTPClient(baseURL, timeout),
		limiter:  limiter,
		log:      log.With().Str("client", "newsapi").Logger(),
	}
}

// Search returns up to pageSize of the most recent articles matching query.
// It calls the endpoint once and never fails: errors are reported in the
// payload's Error field with an empty article list.
func (c *Client) Search(ctx context.Context, query string, pageSize int) snapshot.NewsPayload {
	payload, err := c.search(ctx, query, pageSize)
	if err != nil {
		c.log.Warn().Err(err).Str("query", query).Msg("failed to fetch news")
		return snapshot.NewsError(err)
	}
	c.log.Debug().Str("query", query).Int("articles", len(payload.Articles)).Msg("fetched news")
	return payload
}

func (c *Client) search(ctx context.Context, query string, pageSize int) (snapshot.NewsPayload, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APINewsAPI); err != nil {
		return snapshot.NewsPayload{}, fetcher.Classify(err).WithSource(SourceName)
	}

	var result SearchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetQueryParams(map[string]string{
			"q":        query,
			"pageSize": strconv.Itoa(pageSize),
			"language": c.language,
			"sortBy":   "publishedAt",
		}).
		SetResult(&result).
		Get(everythingPath)
	if err := fetcher.CheckResponse(SourceName, resp, err); err != nil {
		return snapshot.NewsPayload{}, fmt.Errorf("search %q: %w", query, err)
	}

	if result.Status == "error" {
		return snapshot.NewsPayload{}, fetcher.NewClientError(resp.StatusCode(), result.Code+": "+result.Message).WithSource(SourceName)
	}

	articles := result.Articles
	if articles == nil {
		articles = []snapshot.Article{}
	}
	if pageSize > 0 && len(articles) > pageSize {
		articles = articles[:pageSize]
	}
	return snapshot.NewsPayload{
		Status:       result.Status,
		TotalResults: result.TotalResults,
		Articles:     articles,
	}, nil
}
