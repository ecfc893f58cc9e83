// Package state holds the authoritative in-memory model of locally-owned
// record intents: one entry per container, fed by the event handler and
// aged by a staleness sweep. It is the only state shared between the event
// subscription activity and the reconciliation timer (see §5 of the
// design), so every operation takes the package mutex.
package state

import (
	"sync"
	"time"

	"github.com/localdns/syncd/internal/clock"
	"github.com/localdns/syncd/internal/dnsrecord"
)

// Entry is a tracker row for one container.
type Entry struct {
	ContainerName    string
	ContainerCreated time.Time
	RecordIntents    []dnsrecord.Intent
	Status           dnsrecord.Status
	LastSeen         time.Time
}

// Tracker is the in-memory container-id -> Entry map. The zero value is not
// usable; construct with New.
type Tracker struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries map[string]*Entry
}

// New creates an empty Tracker using clk for LastSeen timestamps.
func New(clk clock.Clock) *Tracker {
	return &Tracker{clk: clk, entries: make(map[string]*Entry)}
}

// Upsert inserts or replaces the entry for id, refreshing LastSeen to now.
func (t *Tracker) Upsert(id, containerName string, containerCreated time.Time, intents []dnsrecord.Intent, status dnsrecord.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[id] = &Entry{
		ContainerName:    containerName,
		ContainerCreated: containerCreated,
		RecordIntents:    intents,
		Status:           status,
		LastSeen:         t.clk.Now(),
	}
}

// MarkRemoved sets the entry's status to removed and refreshes LastSeen. A
// no-op if id is not present -- the tracker never synthesizes an entry for
// an id it has not seen a start event for.
func (t *Tracker) MarkRemoved(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return
	}
	e.Status = dnsrecord.StatusRemoved
	e.LastSeen = t.clk.Now()
}

// AllDesiredRecordIntents returns the flat union of record intents over
// every entry whose status is running. A container marked removed
// contributes nothing, even though it remains in the tracker until reaped.
func (t *Tracker) AllDesiredRecordIntents() []dnsrecord.Intent {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []dnsrecord.Intent
	for _, e := range t.entries {
		if e.Status != dnsrecord.StatusRunning {
			continue
		}
		out = append(out, e.RecordIntents...)
	}
	return out
}

// RemoveStale deletes entries whose status is removed and whose LastSeen is
// older than ttl, returning the number reaped. Entries still running are
// never reaped here -- they stay authoritative as long as the container is
// alive.
func (t *Tracker) RemoveStale(ttl time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clk.Now()
	reaped := 0
	for id, e := range t.entries {
		if e.Status == dnsrecord.StatusRemoved && now.Sub(e.LastSeen) > ttl {
			delete(t.entries, id)
			reaped++
		}
	}
	return reaped
}

// Len returns the number of tracked container entries, running or removed.
// Used by the metrics gauge for tracker size.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns a copy of the entry for id, if present. Exposed for tests and
// diagnostics; not used on the hot path.
func (t *Tracker) Get(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}
