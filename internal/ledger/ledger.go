// Package ledger provides the durable, append-only record of accepted
// image requests and the queries admission control runs against it.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// epochSentinel is the "last timestamp" used for identities with no prior
// record. It sits far enough in the past that the computed gap always clears
// any realistic minimum-interval setting.
var epochSentinel = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

// Record is one accepted request. Identity is a one-way hash of the platform
// user id; the raw id is never persisted.
type Record struct {
	IsGroup   bool      `json:"is_group"`
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`
	Size      int       `json:"size"`
	Identity  uint64    `json:"identity"`
}

// Store is the durable backend behind the ledger.
// Implementations must have completed the write durably before Append returns.
type Store interface {
	// Load reads all prior records in insertion order. A missing or corrupt
	// store is not an error: implementations return an empty slice and start
	// fresh.
	Load(ctx context.Context) ([]Record, error)

	// Append durably persists rec. all is the full ledger including rec, for
	// backends with full-rewrite semantics (CSV); row-oriented backends may
	// ignore it.
	Append(ctx context.Context, rec Record, all []Record) error

	// Close releases resources held by the store.
	Close() error
}

// Ledger is the in-memory view over a Store. It owns the append path; no
// record is ever mutated or deleted. All methods are safe for concurrent use,
// but the admission sequence (query then conditionally append) must be
// serialized by the caller — see bot.Controller.
type Ledger struct {
	mu      sync.RWMutex
	store   Store
	records []Record
	// lastByIdentity caches max(timestamp) per identity for the interval check
	lastByIdentity map[uint64]time.Time
}

// New creates a Ledger backed by store, loading all prior records.
func New(ctx context.Context, store Store) (*Ledger, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	l := &Ledger{
		store:          store,
		records:        records,
		lastByIdentity: make(map[uint64]time.Time, len(records)),
	}
	for _, rec := range records {
		if rec.Timestamp.After(l.lastByIdentity[rec.Identity]) {
			l.lastByIdentity[rec.Identity] = rec.Timestamp
		}
	}
	return l, nil
}

// TimeSinceLast returns now minus the identity's most recent accepted
// timestamp. With no prior record the gap is measured from a fixed epoch
// sentinel, so it always exceeds any configured delay threshold.
func (l *Ledger) TimeSinceLast(identity uint64, now time.Time) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	last, ok := l.lastByIdentity[identity]
	if !ok {
		last = epochSentinel
	}
	return now.Sub(last)
}

// CountSince returns the number of the identity's records with a timestamp at
// or after ref.
func (l *Ledger) CountSince(identity uint64, ref time.Time) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, rec := range l.records {
		if rec.Identity == identity && !rec.Timestamp.Before(ref) {
			count++
		}
	}
	return count
}

// Append durably persists rec and adds it to the in-memory view. The
// timestamp is truncated to whole seconds so serialized and reloaded ledgers
// compare equal. If the store write fails, the in-memory state is unchanged
// and the error is propagated — the request cycle must treat it as fatal.
func (l *Ledger) Append(ctx context.Context, rec Record) error {
	rec.Timestamp = rec.Timestamp.Truncate(time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()

	all := append(l.records, rec)
	if err := l.store.Append(ctx, rec, all); err != nil {
		return fmt.Errorf("failed to persist usage record: %w", err)
	}

	l.records = all
	if rec.Timestamp.After(l.lastByIdentity[rec.Identity]) {
		l.lastByIdentity[rec.Identity] = rec.Timestamp
	}
	return nil
}

// Len returns the total number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of all records in insertion order.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Summary aggregates ledger contents for the admin surface.
type Summary struct {
	TotalRequests  int `json:"total_requests"`
	RequestsSince  int `json:"requests_since"`
	UniqueUsers    int `json:"unique_users"`
	GroupRequests  int `json:"group_requests"`
	SingleRequests int `json:"single_requests"`
}

// Summarize computes request totals, counting RequestsSince from ref.
func (l *Ledger) Summarize(ref time.Time) Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{TotalRequests: len(l.records), UniqueUsers: len(l.lastByIdentity)}
	for _, rec := range l.records {
		if !rec.Timestamp.Before(ref) {
			s.RequestsSince++
		}
		if rec.IsGroup {
			s.GroupRequests++
		} else {
			s.SingleRequests++
		}
	}
	return s
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
