// Package store defines the persistence abstraction for the de-duplication
// ledger and delivery history. Business logic depends on the Store
// interface, never on a concrete backend.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/donaldgifford/discount-notifier/internal/config"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// DeliveryRecord is one persisted delivery outcome.
type DeliveryRecord struct {
	RunID     string
	Outcome   domain.DeliveryOutcome
	CreatedAt time.Time
}

// Store defines the data access operations.
type Store interface {
	// Ledger entries
	LoadEntries(ctx context.Context, since time.Time) ([]domain.DedupEntry, error)
	SaveEntries(ctx context.Context, entries []domain.DedupEntry) error
	ListEntries(ctx context.Context, q *EntryQuery) ([]domain.DedupEntry, int, error)
	PruneEntries(ctx context.Context, before time.Time) (int64, error)

	// Deliveries
	InsertDelivery(ctx context.Context, runID string, o domain.DeliveryOutcome) error
	ListDeliveries(ctx context.Context, runID string) ([]DeliveryRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg and applies migrations.
func Open(ctx context.Context, cfg *config.LedgerConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		s, err = NewPostgresStore(ctx, cfg.Postgres.DSN())
	case config.BackendSQLite:
		s, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrating %s store: %w", cfg.Backend, err)
	}
	return s, nil
}
