package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	var syntaxErr *json.SyntaxError
	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})
	require.ErrorAs(t, jsonErr, &syntaxErr)

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{"canceled", context.Canceled, ErrorTypeNetwork},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, ErrorTypeNetwork},
		{"malformed json", jsonErr, ErrorTypeValidation},
		{"other", errors.New("boom"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Type)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, Classify(nil))
}

func TestClassify_KeepsFetchError(t *testing.T) {
	orig := NewServerError(503).WithSource("NSE")
	got := Classify(fmt.Errorf("fii/dii: %w", orig))
	assert.Same(t, orig, got)
}

func TestFetchError_Error(t *testing.T) {
	err := NewClientError(404, "not found").WithSource("YahooFinance")
	assert.Equal(t, "YahooFinance: client error (status 404): not found", err.Error())

	cause := errors.New("dial tcp: refused")
	assert.Equal(t, "network error: network request failed: dial tcp: refused", NewNetworkError(cause).Error())
}

func TestClassifyHTTPError(t *testing.T) {
	assert.Equal(t, ErrorTypeRateLimit, ClassifyHTTPError(429).Type)
	assert.Equal(t, ErrorTypeServer, ClassifyHTTPError(502).Type)
	assert.Equal(t, ErrorTypeClient, ClassifyHTTPError(403).Type)
	assert.Equal(t, 418, ClassifyHTTPError(418).StatusCode)
	assert.Equal(t, ErrorTypeUnknown, ClassifyHTTPError(302).Type)
}

func TestResult_OK(t *testing.T) {
	assert.True(t, Result[int]{Key: "a", Value: 1}.OK())
	assert.False(t, Result[int]{Key: "a", Err: errors.New("x")}.OK())
}
