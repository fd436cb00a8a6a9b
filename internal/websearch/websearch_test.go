package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallProviderRetriesBeforeSucceeding(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(providerResponse{Summary: "ok", Confidence: 0.8})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, MaxRetries: 3, BaseDelay: time.Millisecond}, nil)
	out := c.callProvider(context.Background(), "q", 3, "en")

	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 0.8, out.Confidence)
	assert.Equal(t, "ok", out.Summary)
}

func TestCallProviderGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, MaxRetries: 2, BaseDelay: time.Millisecond}, nil)
	out := c.callProvider(context.Background(), "q", 3, "en")

	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 0.0, out.Confidence)
}
