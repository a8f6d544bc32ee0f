// Package routing maps operator-channel relay posts back to the users who
// triggered them.
package routing

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
)

// ErrStaleRoutingReference is returned when a relay post was already answered.
var ErrStaleRoutingReference = errors.New("routing: stale routing reference")

// Status is the outcome of Consume.
type Status int

const (
	// Unknown means the id was never recorded or has been evicted.
	Unknown Status = iota
	// Resolved means the entry was live and is now consumed.
	Resolved
	// Stale means the entry had already been consumed.
	Stale
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Err maps the status to its error; only Stale has one.
func (s Status) Err() error {
	if s == Stale {
		return ErrStaleRoutingReference
	}
	return nil
}

// Entry is a live routing record.
type Entry struct {
	UserID    int64
	CreatedAt time.Time
}

// Options bounds the table. Zero values disable the corresponding limit.
type Options struct {
	TTL           time.Duration
	MaxEntries    int
	SweepInterval time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[int]Entry
	// consumed holds tombstones: relay message id -> time of consumption.
	consumed map[int]time.Time
}

// Table is safe for concurrent use. Each id is owned by one shard, so
// Consume is a single lookup-and-delete under that shard's lock.
type Table struct {
	opts   Options
	shards [shardCount]shard
}

// NewTable returns an empty table.
func NewTable(opts Options) *Table {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Table{opts: opts}
	for i := range t.shards {
		t.shards[i].entries = make(map[int]Entry)
		t.shards[i].consumed = make(map[int]time.Time)
	}
	return t
}

func (t *Table) shardFor(relayMessageID int) *shard {
	return &t.shards[uint(relayMessageID)%shardCount]
}

// Record links relayMessageID to userID, overwriting any previous entry or tombstone.
func (t *Table) Record(relayMessageID int, userID int64) {
	sh := t.shardFor(relayMessageID)
	sh.mu.Lock()
	sh.entries[relayMessageID] = Entry{UserID: userID, CreatedAt: t.opts.Now()}
	delete(sh.consumed, relayMessageID)
	sh.mu.Unlock()
}

// Resolve looks up relayMessageID without consuming it.
func (t *Table) Resolve(relayMessageID int) (int64, bool) {
	sh := t.shardFor(relayMessageID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[relayMessageID]
	return e.UserID, ok
}

// Consume atomically resolves and removes relayMessageID. Of any number of
// concurrent calls for the same id at most one reports Resolved.
func (t *Table) Consume(relayMessageID int) (int64, Status) {
	sh := t.shardFor(relayMessageID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.entries[relayMessageID]; ok {
		delete(sh.entries, relayMessageID)
		sh.consumed[relayMessageID] = t.opts.Now()
		return e.UserID, Resolved
	}
	if _, ok := sh.consumed[relayMessageID]; ok {
		return 0, Stale
	}
	return 0, Unknown
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// SweepResult reports what a sweep removed.
type SweepResult struct {
	Expired    int
	Evicted    int
	Tombstones int
}

type aged struct {
	id int
	at time.Time
}

// Sweep drops entries and tombstones older than TTL, then trims live entries
// above MaxEntries oldest first. Tombstones are capped at MaxEntries as well.
func (t *Table) Sweep(now time.Time) SweepResult {
	var (
		res        SweepResult
		live, dead []aged
	)
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		for id, e := range sh.entries {
			if t.opts.TTL > 0 && now.Sub(e.CreatedAt) > t.opts.TTL {
				delete(sh.entries, id)
				res.Expired++
				continue
			}
			live = append(live, aged{id: id, at: e.CreatedAt})
		}
		for id, at := range sh.consumed {
			if t.opts.TTL > 0 && now.Sub(at) > t.opts.TTL {
				delete(sh.consumed, id)
				res.Tombstones++
				continue
			}
			dead = append(dead, aged{id: id, at: at})
		}
		sh.mu.Unlock()
	}

	res.Evicted = t.trim(live, func(sh *shard, a aged) bool {
		e, ok := sh.entries[a.id]
		if !ok || !e.CreatedAt.Equal(a.at) {
			return false
		}
		delete(sh.entries, a.id)
		return true
	})
	res.Tombstones += t.trim(dead, func(sh *shard, a aged) bool {
		at, ok := sh.consumed[a.id]
		if !ok || !at.Equal(a.at) {
			return false
		}
		delete(sh.consumed, a.id)
		return true
	})
	return res
}

// trim removes the oldest items beyond MaxEntries. drop re-checks the item
// under the shard lock since it may have changed after the snapshot.
func (t *Table) trim(items []aged, drop func(*shard, aged) bool) int {
	if t.opts.MaxEntries <= 0 || len(items) <= t.opts.MaxEntries {
		return 0
	}
	sort.Slice(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })
	removed := 0
	for _, a := range items[:len(items)-t.opts.MaxEntries] {
		sh := t.shardFor(a.id)
		sh.mu.Lock()
		if drop(sh, a) {
			removed++
		}
		sh.mu.Unlock()
	}
	return removed
}

// Run sweeps on SweepInterval until ctx is done.
func (t *Table) Run(ctx context.Context) {
	if t.opts.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(t.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			res := t.Sweep(t.opts.Now())
			if res.Expired+res.Evicted+res.Tombstones == 0 {
				continue
			}
			logger.LogEvent(ctx, logger.Routing, slog.LevelInfo, "routing.sweep",
				slog.String("status", "ok"),
				slog.Int("expired", res.Expired),
				slog.Int("evicted", res.Evicted),
				slog.Int("tombstones", res.Tombstones),
				slog.Int("routes", t.Len()),
				slog.Duration("duration", logger.Took(start)),
			)
		}
	}
}
