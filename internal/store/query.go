package store

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	orderByKey = "key"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// EntryQuery defines optional filters for listing ledger entries.
type EntryQuery struct {
	Retailer *string    // matches the key prefix "<retailer>|"
	Since    *time.Time // first seen at or after
	Limit    int        // default 50
	Offset   int
	OrderBy  string // "first_seen", "key"
}

func (d dialect) placeholder(n int) string {
	if d == dialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func (d dialect) firstSeenColumn() string {
	if d == dialectSQLite {
		return "first_seen_ms"
	}
	return "first_seen"
}

func (d dialect) timeArg(t time.Time) any {
	if d == dialectSQLite {
		return t.UTC().UnixMilli()
	}
	return t.UTC()
}

// toSQL builds the data and count queries and their positional parameters
// for the given dialect.
func (q *EntryQuery) toSQL(d dialect) (dataSQL, countSQL string, args []any) {
	var conditions []string
	paramIdx := 1

	if q.Retailer != nil {
		conditions = append(conditions, "key LIKE "+d.placeholder(paramIdx)+` ESCAPE '\'`)
		args = append(args, escapeLike(*q.Retailer)+"|%")
		paramIdx++
	}

	if q.Since != nil {
		conditions = append(conditions, d.firstSeenColumn()+" >= "+d.placeholder(paramIdx))
		args = append(args, d.timeArg(*q.Since))
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderClause := d.firstSeenColumn() + " DESC"
	if q.OrderBy == orderByKey {
		orderClause = "key ASC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := max(q.Offset, 0)

	dataSQL = fmt.Sprintf(
		"SELECT key, %s FROM dedup_entries%s ORDER BY %s LIMIT %d OFFSET %d",
		d.firstSeenColumn(), whereClause, orderClause, limit, offset,
	)
	countSQL = "SELECT COUNT(*) FROM dedup_entries" + whereClause

	return dataSQL, countSQL, args
}

// escapeLike neutralizes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	return strings.NewReplacer(`%`, `\%`, `_`, `\_`).Replace(s)
}
