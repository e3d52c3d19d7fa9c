package providers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/BaSui01/sunyadvisor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMapHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		msg       string
		want      types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "bad key", types.ErrAuthentication, false},
		{http.StatusForbidden, "nope", types.ErrAuthentication, false},
		{http.StatusTooManyRequests, "slow", types.ErrRateLimited, true},
		{http.StatusBadRequest, "insufficient quota", types.ErrQuotaExceeded, false},
		{http.StatusBadRequest, "This model's maximum context length is 8192", types.ErrContextTooLong, false},
		{http.StatusBadRequest, "bad field", types.ErrInvalidRequest, false},
		{http.StatusNotFound, "no model", types.ErrModelNotFound, false},
		{http.StatusGatewayTimeout, "slow upstream", types.ErrUpstreamTimeout, true},
		{http.StatusBadGateway, "bad gateway", types.ErrServiceUnavailable, true},
		{http.StatusInternalServerError, "boom", types.ErrUpstreamError, true},
		{418, "teapot", types.ErrUpstreamError, false},
	}
	for _, tt := range tests {
		err := MapHTTPError(tt.status, tt.msg, "p")
		assert.Equal(t, tt.want, err.Code, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.Retryable, "status %d", tt.status)
		assert.Equal(t, tt.status, err.HTTPStatus)
		assert.Equal(t, "p", err.Provider)
	}
}

func TestMapHTTPError_Property_5xxAlwaysRetryable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		status := rapid.IntRange(500, 599).Draw(rt, "status")
		if !MapHTTPError(status, "x", "p").Retryable {
			rt.Fatalf("status %d should be retryable", status)
		}
	})
}

func TestReadErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bad (type: invalid)", ReadErrorMessage(strings.NewReader(`{"error":{"message":"bad","type":"invalid"}}`)))
	assert.Equal(t, "plain", ReadErrorMessage(strings.NewReader(`{"error":"plain"}`)))
	assert.Equal(t, "gateway down", ReadErrorMessage(strings.NewReader("gateway down\n")))
}

func TestArgumentsJSON(t *testing.T) {
	t.Parallel()

	var fn OpenAICompatFunction
	require.NoError(t, json.Unmarshal([]byte(`{"name":"f","arguments":"{\"a\":1}"}`), &fn))
	assert.JSONEq(t, `{"a":1}`, string(fn.Arguments))

	require.NoError(t, json.Unmarshal([]byte(`{"name":"f","arguments":{"b":2}}`), &fn))
	assert.JSONEq(t, `{"b":2}`, string(fn.Arguments))

	out, err := json.Marshal(OpenAICompatFunction{Name: "f"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"f","arguments":"{}"}`, string(out))
}
