package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ForwardsRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(chiMiddleware.RequestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := context.WithValue(context.Background(), chiMiddleware.RequestIDKey, "req-7")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := NewClient(time.Second).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-7", got)
}

func TestClient_NoRequestIDLeavesHeaderUnset(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(chiMiddleware.RequestIDHeader)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := NewClient(time.Second).DoWithContext(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, got)
}

func TestIsTransientStatus(t *testing.T) {
	assert.True(t, IsTransientStatus(http.StatusServiceUnavailable))
	assert.True(t, IsTransientStatus(http.StatusTooManyRequests))
	assert.False(t, IsTransientStatus(http.StatusUnauthorized))
	assert.False(t, IsTransientStatus(http.StatusOK))
}
