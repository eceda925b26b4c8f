package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with op and wrapped error",
			err:  Wrap(fmt.Errorf("connection refused"), KindProvider, "hosting.CreateSite", "request failed"),
			want: "hosting.CreateSite: request failed: connection refused",
		},
		{
			name: "with op only",
			err:  Provider("dns.UpsertRecord", "invalid record name"),
			want: "dns.UpsertRecord: invalid record name",
		},
		{
			name: "message only",
			err:  New(KindTimeout, "deploy polling bound exceeded"),
			want: "deploy polling bound exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := StoreWrap(inner, "repo.Save", "write failed")
	assert.Equal(t, inner, errors.Unwrap(err))
}

func TestError_Is(t *testing.T) {
	err := Timeout("deploy.Poll", "bound exceeded")

	assert.True(t, errors.Is(err, &Error{Kind: KindTimeout}))
	assert.True(t, errors.Is(err, &Error{Kind: KindTimeout, Op: "deploy.Poll"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindTimeout, Op: "dns.Verify"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindProvider}))
}

func TestGetKind(t *testing.T) {
	assert.Equal(t, KindStore, GetKind(Store("repo.Save", "fail")))
	assert.Equal(t, KindUnknown, GetKind(fmt.Errorf("plain")))

	wrapped := fmt.Errorf("outer: %w", Validation("resolve", "bad input"))
	assert.Equal(t, KindValidation, GetKind(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ProviderTransport("hosting.Deploy", "503 from provider")))
	assert.False(t, IsRetryable(Provider("hosting.CreateSite", "invalid domain")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))

	wrapped := fmt.Errorf("step failed: %w", ProviderTransport("dns.Upsert", "network"))
	assert.True(t, IsRetryable(wrapped))
}

func TestRetryableHTTPStatus(t *testing.T) {
	retryable := []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	for _, code := range retryable {
		assert.True(t, RetryableHTTPStatus(code), "status %d", code)
	}

	for _, code := range []int{http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity} {
		assert.False(t, RetryableHTTPStatus(code), "status %d", code)
	}
}

func TestFromHTTPStatus(t *testing.T) {
	err := FromHTTPStatus("hosting.Deploy", http.StatusBadGateway, `{"error":"upstream"}`)
	require.NotNil(t, err)
	assert.Equal(t, KindProvider, err.Kind)
	assert.True(t, err.Retryable)
	assert.Equal(t, http.StatusBadGateway, err.Details["status"])

	rejected := FromHTTPStatus("hosting.CreateSite", http.StatusUnprocessableEntity, "")
	assert.False(t, rejected.Retryable)
}

func TestWithDetail(t *testing.T) {
	err := Provider("op", "msg").WithDetail("site_id", "abc").WithDetail("attempt", 2)
	assert.Equal(t, "abc", err.Details["site_id"])
	assert.Equal(t, 2, err.Details["attempt"])
}
