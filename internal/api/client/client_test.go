package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/discount-notifier/internal/api/handlers"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

func TestClient_ConnectionRefused(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1") // nothing listening
	_, err := c.LatestRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API server not running")
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.LatestRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (HTTP 500)")
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.False(t, IsStatus(err, http.StatusConflict))
}

func TestClient_TriggerRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       int
		wantErr      bool
		wantConflict bool
	}{
		{name: "accepted", status: http.StatusAccepted},
		{name: "already running", status: http.StatusConflict, wantErr: true, wantConflict: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/runs", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status":"run started"}`))
			}))
			defer srv.Close()

			err := New(srv.URL).TriggerRun(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantConflict, IsStatus(err, http.StatusConflict))
		})
	}
}

func TestClient_LatestRun(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"running": false,
			"summary": handlers.RunSummaryView{RunID: "run-1", Qualifying: 3, Notified: 2},
		})
	}))
	defer srv.Close()

	latest, err := New(srv.URL).LatestRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest.Summary)
	assert.Equal(t, "run-1", latest.Summary.RunID)
	assert.Equal(t, 2, latest.Summary.Notified)
}

func TestClient_Deliveries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs/run%2F1/deliveries", r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"deliveries": []handlers.DeliveryView{{
				RunID:   "run/1",
				Outcome: domain.DeliveryOutcome{Destination: "production", Delivered: true, Attempts: 2},
			}},
		})
	}))
	defer srv.Close()

	got, err := New(srv.URL).Deliveries(context.Background(), "run/1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Outcome.Attempts)
}

func TestClient_LedgerEntries(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ledger/entries", r.URL.Path)
		assert.Equal(t, "harrods", r.URL.Query().Get("retailer"))
		assert.Equal(t, "2026-03-14T00:00:00Z", r.URL.Query().Get("since"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entries": []domain.DedupEntry{{Key: "harrods|https://harrods.test/coat", FirstSeen: since}},
			"total":   7,
		})
	}))
	defer srv.Close()

	entries, total, err := New(srv.URL).LedgerEntries(context.Background(), EntryFilter{
		Retailer: "harrods",
		Since:    since,
		Limit:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].FirstSeen.Equal(since))
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()

	custom := &http.Client{}
	c := New("http://example.com", WithHTTPClient(custom))
	assert.Same(t, custom, c.httpClient)
}
