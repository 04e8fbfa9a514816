package collector

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

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

func TestHTMLTransport_Fetch(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/sale":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(ldPage2))
		case "/blocked":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("<html>Access Denied</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	tr := NewHTMLTransport(WithHTMLUserAgent("dn-test/1.0"), WithHTMLTimeout(5*time.Second))
	assert.Equal(t, domain.TransportDirect, tr.Mode())

	page, err := tr.Fetch(context.Background(), srv.URL+"/sale")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.ContentType, "text/html")
	assert.Contains(t, string(page.Body), "Leather Belt")
	assert.Equal(t, "dn-test/1.0", gotUA.Load())

	// Revisiting the same URL must fetch again.
	_, err = tr.Fetch(context.Background(), srv.URL+"/sale")
	require.NoError(t, err)

	blocked, err := tr.Fetch(context.Background(), srv.URL+"/blocked")
	require.NoError(t, err, "non-2xx pages are returned for classification")
	assert.Equal(t, http.StatusForbidden, blocked.StatusCode)
	assert.Contains(t, string(blocked.Body), "Access Denied")
}

func TestHTMLTransport_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := NewHTMLTransport(WithHTMLTimeout(2 * time.Second))
	_, err := tr.Fetch(context.Background(), url+"/sale")
	require.Error(t, err)

	var terr *domain.TransportError
	assert.True(t, errors.As(err, &terr))
}

func TestAPITransport_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(apiPage2))
	}))
	t.Cleanup(srv.Close)

	tr := NewAPITransport(WithAPIRetry(3, time.Millisecond, 5*time.Millisecond))
	page, err := tr.Fetch(context.Background(), srv.URL+"/api")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, string(page.Body), "Cap")
}

func TestAPITransport_PassesThroughFinalStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{name: "forbidden is not retried", status: http.StatusForbidden, wantCalls: 1},
		{name: "service unavailable after retries", status: http.StatusServiceUnavailable, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("blocked"))
			}))
			t.Cleanup(srv.Close)

			tr := NewAPITransport(WithAPIRetry(2, time.Millisecond, 2*time.Millisecond))
			page, err := tr.Fetch(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.status, page.StatusCode)
			assert.Equal(t, "blocked", string(page.Body))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestAPITransport_RequestBudget(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	rl := NewRateLimiter(1000, 10, WithMaxRequests(1))
	tr := NewAPITransport(WithAPIRateLimiter(rl))

	_, err := tr.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = tr.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestBudgetReached)
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1000, 5)
	for range 3 {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Equal(t, int64(3), rl.Count())
	assert.Equal(t, int64(-1), rl.Remaining())

	capped := NewRateLimiter(1000, 5, WithMaxRequests(2))
	require.NoError(t, capped.Wait(context.Background()))
	assert.Equal(t, int64(1), capped.Remaining())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewRateLimiter(0.001, 1)
	require.NoError(t, slow.Wait(context.Background()))
	assert.Error(t, slow.Wait(ctx))
}
