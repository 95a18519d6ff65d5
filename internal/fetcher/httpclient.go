package fetcher

import (
	"time"

	"resty.dev/v3"
)

const (
	// DefaultTimeout bounds every provider call. A timeout is handled like
	// any other fetch failure.
	DefaultTimeout = 10 * time.Second

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) marketsnapshot/1.0"
)

// NewHTTPClient creates the HTTP client shared by a provider adapter.
// Each request is attempted exactly once: a failed call is reported and the
// run moves on, so no retry policy is installed.
func NewHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", defaultUserAgent)
}

// CheckResponse turns a transport error or a non-2xx response into a
// FetchError attributed to source. It returns nil for a successful response.
func CheckResponse(source string, resp *resty.Response, err error) error {
	if err != nil {
		return Classify(err).WithSource(source)
	}
	if !resp.IsSuccess() {
		return ClassifyHTTPError(resp.StatusCode()).WithSource(source)
	}
	return nil
}
