package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// SQLiteStore implements Store on a single SQLite file. Timestamps are stored
// as UTC unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return runSQLiteMigrations(ctx, s.db)
}

// LoadEntries returns every entry first seen at or after since.
func (s *SQLiteStore) LoadEntries(ctx context.Context, since time.Time) ([]domain.DedupEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryLoadEntriesSQLite, since.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("loading ledger entries: %w", err)
	}
	return scanSQLiteEntries(rows)
}

// SaveEntries upserts entries in one transaction.
func (s *SQLiteStore) SaveEntries(ctx context.Context, entries []domain.DedupEntry) (err error) {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ledger save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, queryUpsertEntrySQLite)
	if err != nil {
		return fmt.Errorf("preparing ledger upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err = stmt.ExecContext(ctx, e.Key, e.FirstSeen.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("saving ledger entry %q: %w", e.Key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing ledger save: %w", err)
	}
	return nil
}

// ListEntries queries entries with optional filters, returning results and
// total count.
func (s *SQLiteStore) ListEntries(ctx context.Context, q *EntryQuery) ([]domain.DedupEntry, int, error) {
	if q == nil {
		q = &EntryQuery{}
	}
	dataSQL, countSQL, args := q.toSQL(dialectSQLite)

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting ledger entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying ledger entries: %w", err)
	}
	entries, err := scanSQLiteEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// PruneEntries deletes entries first seen before the cutoff.
func (s *SQLiteStore) PruneEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, queryPruneEntriesSQLite, before.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning ledger entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned entries: %w", err)
	}
	return n, nil
}

// InsertDelivery records one delivery outcome for a run.
func (s *SQLiteStore) InsertDelivery(ctx context.Context, runID string, o domain.DeliveryOutcome) error {
	_, err := s.db.ExecContext(ctx, queryInsertDeliverySQLite,
		runID, o.Destination, boolToInt(o.Delivered), o.Attempts, o.Products, o.Error,
		o.Elapsed.Milliseconds(), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery for %s: %w", o.Destination, err)
	}
	return nil
}

// ListDeliveries returns the deliveries recorded for a run in insertion order.
func (s *SQLiteStore) ListDeliveries(ctx context.Context, runID string) ([]DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryListDeliveriesSQLite, runID)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var (
			r                   DeliveryRecord
			delivered           int
			elapsedMS, createMS int64
		)
		if err := rows.Scan(
			&r.RunID, &r.Outcome.Destination, &delivered, &r.Outcome.Attempts,
			&r.Outcome.Products, &r.Outcome.Error, &elapsedMS, &createMS,
		); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		r.Outcome.Delivered = delivered == 1
		r.Outcome.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		r.CreatedAt = time.UnixMilli(createMS).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}
	return out, nil
}

func scanSQLiteEntries(rows *sql.Rows) ([]domain.DedupEntry, error) {
	defer rows.Close()

	var entries []domain.DedupEntry
	for rows.Next() {
		var (
			e  domain.DedupEntry
			ms int64
		)
		if err := rows.Scan(&e.Key, &ms); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.FirstSeen = time.UnixMilli(ms).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger entries: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
