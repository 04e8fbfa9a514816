package handlers_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/discount-notifier/internal/api/handlers"
	"github.com/donaldgifford/discount-notifier/internal/store"
	storeMocks "github.com/donaldgifford/discount-notifier/internal/store/mocks"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

func TestHistoryHandler_ListEntries(t *testing.T) {
	t.Parallel()

	seen := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		query      string
		setupMock  func(*storeMocks.MockStore)
		wantStatus int
		wantBody   string
	}{
		{
			name: "no filters returns entries",
			setupMock: func(m *storeMocks.MockStore) {
				m.EXPECT().
					ListEntries(mock.Anything, mock.Anything).
					Return([]domain.DedupEntry{
						{Key: "harrods|https://harrods.test/coat", FirstSeen: seen},
					}, 1, nil).
					Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"total":1`,
		},
		{
			name:  "retailer and since filters",
			query: "?retailer=harrods&since=2026-03-14T00:00:00Z&order_by=key",
			setupMock: func(m *storeMocks.MockStore) {
				m.EXPECT().
					ListEntries(mock.Anything, mock.MatchedBy(func(q *store.EntryQuery) bool {
						return q.Retailer != nil && *q.Retailer == "harrods" &&
							q.Since != nil && q.Since.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) &&
							q.OrderBy == "key"
					})).
					Return(nil, 0, nil).
					Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"entries":[]`,
		},
		{
			name:       "bad since",
			query:      "?since=yesterday",
			setupMock:  func(*storeMocks.MockStore) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:  "store error",
			query: "?limit=10",
			setupMock: func(m *storeMocks.MockStore) {
				m.EXPECT().
					ListEntries(mock.Anything, mock.Anything).
					Return(nil, 0, errors.New("database is locked")).
					Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "ledger query failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ms := storeMocks.NewMockStore(t)
			tt.setupMock(ms)

			_, api := humatest.New(t)
			handlers.RegisterHistoryRoutes(api, handlers.NewHistoryHandler(ms))

			resp := api.Get("/api/v1/ledger/entries" + tt.query)
			require.Equal(t, tt.wantStatus, resp.Code)
			assert.Contains(t, resp.Body.String(), tt.wantBody)
		})
	}
}

func TestHistoryHandler_ListDeliveries(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)

	tests := []struct {
		name       string
		records    []store.DeliveryRecord
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name: "returns deliveries",
			records: []store.DeliveryRecord{{
				RunID:     "run-1",
				Outcome:   domain.DeliveryOutcome{Destination: "dev", Delivered: false, Attempts: 3, Error: "timeout"},
				CreatedAt: created,
			}},
			wantStatus: http.StatusOK,
			wantBody:   `"attempts":3`,
		},
		{
			name:       "unknown run",
			wantStatus: http.StatusNotFound,
			wantBody:   "run-1",
		},
		{
			name:       "store error",
			err:        errors.New("closed pool"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ms := storeMocks.NewMockStore(t)
			ms.EXPECT().ListDeliveries(mock.Anything, "run-1").Return(tt.records, tt.err).Once()

			_, api := humatest.New(t)
			handlers.RegisterHistoryRoutes(api, handlers.NewHistoryHandler(ms))

			resp := api.Get("/api/v1/runs/run-1/deliveries")
			require.Equal(t, tt.wantStatus, resp.Code)
			assert.Contains(t, resp.Body.String(), tt.wantBody)
		})
	}
}
