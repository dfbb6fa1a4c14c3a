package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRequest(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantErr   bool
		wantCode  int
		wantCalls int32
	}{
		{name: "ok", statuses: []int{200}, wantCalls: 1},
		{name: "server error then ok", statuses: []int{503, 200}, wantCalls: 2},
		{name: "rate limited then ok", statuses: []int{429, 200}, wantCalls: 2},
		{name: "not found is permanent", statuses: []int{404}, wantErr: true, wantCode: 404, wantCalls: 1},
		{name: "retries exhausted", statuses: []int{500}, wantErr: true, wantCode: 500, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				i := int(calls.Add(1)) - 1
				if i >= len(tt.statuses) {
					i = len(tt.statuses) - 1
				}
				w.WriteHeader(tt.statuses[i])
				_, _ = w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			c := NewClient(ClientOptions{
				RequestsPerSec:  100,
				MaxRetries:      2,
				InitialInterval: time.Millisecond,
				MaxRetryTimeout: time.Second,
			})
			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
			require.NoError(t, err)

			resp, err := c.DoRequest(context.Background(), req)
			if tt.wantErr {
				require.Error(t, err)
				var statusErr *HTTPStatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, tt.wantCode, statusErr.StatusCode)
			} else {
				require.NoError(t, err)
				resp.Body.Close()
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestDoRequest_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(ClientOptions{RequestsPerSec: 1})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.DoRequest(ctx, req)
	assert.Error(t, err)
}
