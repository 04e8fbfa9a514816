package store

// SQL query constants organized by entity and dialect.
// Backend methods reference these; only EntryQuery builds SQL dynamically.

// Migration bookkeeping.
const (
	queryCreateMigrationsPostgres = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	queryMigrationAppliedPostgres = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`

	queryRecordMigrationPostgres = `INSERT INTO schema_migrations (version) VALUES ($1)`

	queryCreateMigrationsSQLite = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`

	queryMigrationAppliedSQLite = `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`

	queryRecordMigrationSQLite = `INSERT INTO schema_migrations (version) VALUES (?)`
)

// Ledger entry queries.
const (
	queryLoadEntriesPostgres = `
		SELECT key, first_seen FROM dedup_entries
		WHERE first_seen >= $1
		ORDER BY first_seen ASC`

	// Re-notifying an expired key refreshes its first-seen time.
	queryUpsertEntryPostgres = `
		INSERT INTO dedup_entries (key, first_seen) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET first_seen = EXCLUDED.first_seen`

	queryPruneEntriesPostgres = `DELETE FROM dedup_entries WHERE first_seen < $1`

	queryLoadEntriesSQLite = `
		SELECT key, first_seen_ms FROM dedup_entries
		WHERE first_seen_ms >= ?
		ORDER BY first_seen_ms ASC`

	queryUpsertEntrySQLite = `
		INSERT INTO dedup_entries (key, first_seen_ms) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET first_seen_ms = excluded.first_seen_ms`

	queryPruneEntriesSQLite = `DELETE FROM dedup_entries WHERE first_seen_ms < ?`
)

// Delivery queries.
const (
	queryInsertDeliveryPostgres = `
		INSERT INTO deliveries (
			run_id, destination, delivered, attempts, products, error_text, elapsed_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	queryListDeliveriesPostgres = `
		SELECT run_id, destination, delivered, attempts, products, error_text, elapsed_ms, created_at
		FROM deliveries
		WHERE run_id = $1
		ORDER BY id ASC`

	queryInsertDeliverySQLite = `
		INSERT INTO deliveries (
			run_id, destination, delivered, attempts, products, error_text, elapsed_ms, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryListDeliveriesSQLite = `
		SELECT run_id, destination, delivered, attempts, products, error_text, elapsed_ms, created_at_ms
		FROM deliveries
		WHERE run_id = ?
		ORDER BY id ASC`
)
