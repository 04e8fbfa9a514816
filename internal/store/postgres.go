package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// LoadEntries returns every entry first seen at or after since.
func (s *PostgresStore) LoadEntries(ctx context.Context, since time.Time) ([]domain.DedupEntry, error) {
	rows, err := s.pool.Query(ctx, queryLoadEntriesPostgres, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("loading ledger entries: %w", err)
	}
	return collectEntries(rows)
}

// SaveEntries upserts entries in a single batch.
func (s *PostgresStore) SaveEntries(ctx context.Context, entries []domain.DedupEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(queryUpsertEntryPostgres, e.Key, e.FirstSeen.UTC())
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving %d ledger entries: %w", len(entries), err)
	}
	return nil
}

// ListEntries queries entries with optional filters, returning results and
// total count.
func (s *PostgresStore) ListEntries(ctx context.Context, q *EntryQuery) ([]domain.DedupEntry, int, error) {
	if q == nil {
		q = &EntryQuery{}
	}
	dataSQL, countSQL, args := q.toSQL(dialectPostgres)

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting ledger entries: %w", err)
	}

	rows, err := s.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying ledger entries: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// PruneEntries deletes entries first seen before the cutoff.
func (s *PostgresStore) PruneEntries(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, queryPruneEntriesPostgres, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning ledger entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertDelivery records one delivery outcome for a run.
func (s *PostgresStore) InsertDelivery(ctx context.Context, runID string, o domain.DeliveryOutcome) error {
	_, err := s.pool.Exec(ctx, queryInsertDeliveryPostgres,
		runID, o.Destination, o.Delivered, o.Attempts, o.Products, o.Error, o.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery for %s: %w", o.Destination, err)
	}
	return nil
}

// ListDeliveries returns the deliveries recorded for a run in insertion order.
func (s *PostgresStore) ListDeliveries(ctx context.Context, runID string) ([]DeliveryRecord, error) {
	rows, err := s.pool.Query(ctx, queryListDeliveriesPostgres, runID)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var (
			r         DeliveryRecord
			elapsedMS int64
		)
		if err := rows.Scan(
			&r.RunID, &r.Outcome.Destination, &r.Outcome.Delivered, &r.Outcome.Attempts,
			&r.Outcome.Products, &r.Outcome.Error, &elapsedMS, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		r.Outcome.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}
	return out, nil
}

func collectEntries(rows pgx.Rows) ([]domain.DedupEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DedupEntry, error) {
		var e domain.DedupEntry
		err := row.Scan(&e.Key, &e.FirstSeen)
		e.FirstSeen = e.FirstSeen.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning ledger entries: %w", err)
	}
	return entries, nil
}
