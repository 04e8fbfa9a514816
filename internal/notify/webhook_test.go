package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

func TestWebhookNotifier_Send(t *testing.T) {
	t.Parallel()

	var (
		received webhookPayload
		auth     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	w := NewWebhookNotifier("ops", srv.URL,
		WithHeaders(map[string]string{"Authorization": "Bearer abc"}),
		WithWebhookNowFunc(func() time.Time { return now }),
	)

	unknown := domain.Product{
		Retailer:     "Flannels",
		Name:         "mystery",
		URL:          "https://flannels.test/m",
		SalePrice:    decimal.NewFromInt(9),
		DiscoveredAt: foundAt,
	}

	err := w.Send(context.Background(), testEnvelope(testProduct("coat", 100, 25), unknown))
	require.NoError(t, err)

	assert.Equal(t, "Bearer abc", auth)
	assert.Equal(t, "products", received.Type)
	assert.Equal(t, "run-1", received.RunID)
	assert.Equal(t, "ops", received.Destination)
	assert.True(t, received.GeneratedAt.Equal(now))
	require.Len(t, received.Products, 2)

	coat := received.Products[0]
	assert.Equal(t, "Harrods", coat.Retailer)
	assert.Equal(t, "75.00", coat.DiscountPercent)
	assert.Equal(t, "100.00", coat.OriginalPrice)
	assert.Equal(t, "25.00", coat.SalePrice)
	assert.Equal(t, "GBP", coat.Currency)
	assert.Equal(t, "https://img.harrods.test/coat.jpg", coat.ImageURL)

	mystery := received.Products[1]
	assert.Empty(t, mystery.DiscountPercent)
	assert.Empty(t, mystery.OriginalPrice)
	assert.Equal(t, "GBP", mystery.Currency)
}

func TestWebhookNotifier_SendSummaryAndTest(t *testing.T) {
	t.Parallel()

	var got []webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		got = append(got, p)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhookNotifier("ops", srv.URL)
	require.NoError(t, w.SendSummary(context.Background(), &Summary{
		RunID: "run-2", ProductsScraped: 40, Qualifying: 2, Notified: 2, Retailers: []string{"Harrods"},
	}))
	require.NoError(t, w.SendTest(context.Background()))

	require.Len(t, got, 2)
	assert.Equal(t, "summary", got[0].Type)
	require.NotNil(t, got[0].Summary)
	assert.Equal(t, 40, got[0].Summary.ProductsScraped)
	assert.Equal(t, "test", got[1].Type)
	assert.Nil(t, got[1].Summary)
}

func TestWebhookNotifier_Rejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewWebhookNotifier("ops", srv.URL).Send(context.Background(), testEnvelope(testProduct("coat", 100, 25)))
	require.Error(t, err)
	assert.Equal(t, "endpoint returned 401", err.Error())
	assert.False(t, IsTransient(err))
}
