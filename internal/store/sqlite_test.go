package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/discount-notifier/internal/config"
	"github.com/donaldgifford/discount-notifier/internal/store"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

func setupSQLite(t *testing.T) store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), &config.LedgerConfig{
		Backend:    config.BackendSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Entries(t *testing.T) {
	t.Parallel()

	s := setupSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveEntries(ctx, []domain.DedupEntry{
		{Key: "acme|https://acme.test/p/1", FirstSeen: base.Add(-48 * time.Hour)},
		{Key: "acme|https://acme.test/p/2", FirstSeen: base.Add(-time.Hour)},
		{Key: "globex|https://globex.test/x", FirstSeen: base},
	}))

	t.Run("load since cutoff", func(t *testing.T) {
		entries, err := s.LoadEntries(ctx, base.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "acme|https://acme.test/p/2", entries[0].Key)
		assert.True(t, entries[0].FirstSeen.Equal(base.Add(-time.Hour)))
		assert.Equal(t, time.UTC, entries[0].FirstSeen.Location())
	})

	t.Run("list by retailer", func(t *testing.T) {
		retailer := "acme"
		entries, total, err := s.ListEntries(ctx, &store.EntryQuery{Retailer: &retailer, OrderBy: "key"})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, entries, 2)
		assert.Equal(t, "acme|https://acme.test/p/1", entries[0].Key)
	})

	t.Run("list with nil query", func(t *testing.T) {
		entries, total, err := s.ListEntries(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, "globex|https://globex.test/x", entries[0].Key)
	})
}

func TestSQLiteStore_UpsertRefreshesFirstSeen(t *testing.T) {
	t.Parallel()

	s := setupSQLite(t)
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(30 * 24 * time.Hour)

	require.NoError(t, s.SaveEntries(ctx, []domain.DedupEntry{{Key: "k", FirstSeen: old}}))
	require.NoError(t, s.SaveEntries(ctx, []domain.DedupEntry{{Key: "k", FirstSeen: fresh}}))

	entries, err := s.LoadEntries(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].FirstSeen.Equal(fresh))
}

func TestSQLiteStore_PruneEntries(t *testing.T) {
	t.Parallel()

	s := setupSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveEntries(ctx, []domain.DedupEntry{
		{Key: "a", FirstSeen: base.Add(-10 * 24 * time.Hour)},
		{Key: "b", FirstSeen: base.Add(-8 * 24 * time.Hour)},
		{Key: "c", FirstSeen: base},
	}))

	n, err := s.PruneEntries(ctx, base.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err := s.LoadEntries(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Key)
}

func TestSQLiteStore_Deliveries(t *testing.T) {
	t.Parallel()

	s := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDelivery(ctx, "run-1", domain.DeliveryOutcome{
		Destination: "discord-prod", Delivered: true, Attempts: 1, Products: 4, Elapsed: 250 * time.Millisecond,
	}))
	require.NoError(t, s.InsertDelivery(ctx, "run-1", domain.DeliveryOutcome{
		Destination: "webhook", Attempts: 3, Products: 4, Error: "status 500",
	}))
	require.NoError(t, s.InsertDelivery(ctx, "run-2", domain.DeliveryOutcome{Destination: "webhook"}))

	got, err := s.ListDeliveries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "discord-prod", got[0].Outcome.Destination)
	assert.True(t, got[0].Outcome.Delivered)
	assert.Equal(t, 250*time.Millisecond, got[0].Outcome.Elapsed)
	assert.False(t, got[0].CreatedAt.IsZero())

	assert.False(t, got[1].Outcome.Delivered)
	assert.Equal(t, 3, got[1].Outcome.Attempts)
	assert.Equal(t, "status 500", got[1].Outcome.Error)
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	s := setupSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := store.Open(context.Background(), &config.LedgerConfig{Backend: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown ledger backend "redis"`)
}
