// Package ledger tracks which products have already triggered a
// notification so a key alerts at most once per run, and optionally at most
// once per retention window across runs.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/donaldgifford/discount-notifier/internal/store"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// DefaultRetention is how long a persisted key suppresses repeat alerts.
const DefaultRetention = 24 * time.Hour

// Ledger is the de-duplication ledger. All methods are safe for concurrent
// use; a single mutex serializes lookups and claims.
//
// Retention only expires entries loaded from the store. Keys claimed or
// recorded through this ledger stay suppressed for its whole lifetime, so a
// retention window shorter than a run cannot let a key alert twice.
type Ledger struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	claimed   map[string]struct{}
	store     store.Store
	retention time.Duration
	nowFunc   func() time.Time
	log       *slog.Logger
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithStore enables cross-run persistence.
func WithStore(s store.Store) Option {
	return func(l *Ledger) {
		l.store = s
	}
}

// WithRetention sets the window after which a key may alert again. Zero or
// negative disables expiry.
func WithRetention(d time.Duration) Option {
	return func(l *Ledger) {
		l.retention = d
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(f func() time.Time) Option {
	return func(l *Ledger) {
		l.nowFunc = f
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// New creates an empty ledger. Without a store it lives for one run.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		entries:   make(map[string]time.Time),
		claimed:   make(map[string]struct{}),
		retention: DefaultRetention,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// Open loads persisted entries that are still inside the retention window.
// It is a no-op without a store.
func (l *Ledger) Open(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	var since time.Time
	if l.retention > 0 {
		since = l.nowFunc().Add(-l.retention)
	}

	entries, err := l.store.LoadEntries(ctx, since)
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		if cur, ok := l.entries[e.Key]; !ok || e.FirstSeen.Before(cur) {
			l.entries[e.Key] = e.FirstSeen
		}
	}
	l.log.Debug("ledger loaded", "entries", len(entries), "since", since)
	return nil
}

// ShouldNotify reports whether key has not yet triggered a notification.
// Expired entries are evicted here.
func (l *Ledger) ShouldNotify(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.seenLocked(key)
}

// Record marks key as notified now. An existing live entry keeps its
// original first-seen time.
func (l *Ledger) Record(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.seenLocked(key) {
		l.entries[key] = l.nowFunc()
	}
	l.claimed[key] = struct{}{}
}

// Claim atomically checks and records key. It returns true for exactly one
// caller per key, so concurrent collectors cannot both notify the same key.
func (l *Ledger) Claim(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seenLocked(key) {
		return false
	}
	l.entries[key] = l.nowFunc()
	l.claimed[key] = struct{}{}
	return true
}

// Persist writes the given keys to the store with their first-seen times.
// Callers persist only keys whose delivery succeeded so failed deliveries
// alert again next run. Unknown keys are skipped.
func (l *Ledger) Persist(ctx context.Context, keys []string) error {
	if l.store == nil || len(keys) == 0 {
		return nil
	}

	l.mu.Lock()
	batch := make([]domain.DedupEntry, 0, len(keys))
	for _, k := range keys {
		if at, ok := l.entries[k]; ok {
			batch = append(batch, domain.DedupEntry{Key: k, FirstSeen: at})
		}
	}
	l.mu.Unlock()

	if err := l.store.SaveEntries(ctx, batch); err != nil {
		return fmt.Errorf("persisting ledger: %w", err)
	}
	l.log.Debug("ledger persisted", "entries", len(batch))
	return nil
}

// Prune evicts expired loaded entries from memory and expired rows from the
// store, returning the number of stored rows removed.
func (l *Ledger) Prune(ctx context.Context) (int64, error) {
	if l.retention <= 0 {
		return 0, nil
	}
	cutoff := l.nowFunc().Add(-l.retention)

	l.mu.Lock()
	for k, at := range l.entries {
		if _, mine := l.claimed[k]; !mine && at.Before(cutoff) {
			delete(l.entries, k)
		}
	}
	l.mu.Unlock()

	if l.store == nil {
		return 0, nil
	}
	n, err := l.store.PruneEntries(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning ledger: %w", err)
	}
	return n, nil
}

// Len returns the number of entries currently held, expired or not.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a snapshot of the held entries.
func (l *Ledger) Entries() []domain.DedupEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.DedupEntry, 0, len(l.entries))
	for k, at := range l.entries {
		out = append(out, domain.DedupEntry{Key: k, FirstSeen: at})
	}
	return out
}

func (l *Ledger) seenLocked(key string) bool {
	at, ok := l.entries[key]
	if !ok {
		return false
	}
	if _, mine := l.claimed[key]; mine {
		return true
	}
	if l.retention > 0 && l.nowFunc().Sub(at) > l.retention {
		delete(l.entries, key)
		return false
	}
	return true
}
