package state

import (
	"sync"
	"testing"
	"time"

	"github.com/localdns/syncd/internal/dnsrecord"
)

// mockClock implements clock.Clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{now: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
func (c *mockClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}
func (c *mockClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }
func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func intent(name, value string) dnsrecord.Intent {
	return dnsrecord.Intent{Record: dnsrecord.NewA(name, value), Hostname: "host-a"}
}

func TestUpsertThenDesiredIntents(t *testing.T) {
	clk := newMockClock(time.Now())
	tr := New(clk)

	tr.Upsert("c1", "web", time.Now(), []dnsrecord.Intent{intent("web.local", "10.0.0.1")}, dnsrecord.StatusRunning)

	got := tr.AllDesiredRecordIntents()
	if len(got) != 1 {
		t.Fatalf("len(desired) = %d, want 1", len(got))
	}
	if got[0].Record.Name != "web.local" {
		t.Errorf("Record.Name = %q, want web.local", got[0].Record.Name)
	}
}

func TestMarkRemovedExcludesFromDesired(t *testing.T) {
	clk := newMockClock(time.Now())
	tr := New(clk)

	tr.Upsert("c1", "web", time.Now(), []dnsrecord.Intent{intent("web.local", "10.0.0.1")}, dnsrecord.StatusRunning)
	tr.MarkRemoved("c1")

	if got := tr.AllDesiredRecordIntents(); len(got) != 0 {
		t.Errorf("len(desired) = %d, want 0 after removal", len(got))
	}
	// Still present until reaped.
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (entry persists until staleness sweep)", tr.Len())
	}
}

func TestMarkRemovedUnknownIDIsNoop(t *testing.T) {
	clk := newMockClock(time.Now())
	tr := New(clk)
	tr.MarkRemoved("ghost")
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tr.Len())
	}
}

func TestRemoveStaleReapsOnlyOldRemovedEntries(t *testing.T) {
	clk := newMockClock(time.Now())
	tr := New(clk)

	tr.Upsert("running", "web", time.Now(), []dnsrecord.Intent{intent("web.local", "10.0.0.1")}, dnsrecord.StatusRunning)
	tr.Upsert("removed-fresh", "api", time.Now(), nil, dnsrecord.StatusRunning)
	tr.Upsert("removed-stale", "db", time.Now(), nil, dnsrecord.StatusRunning)
	tr.MarkRemoved("removed-stale")

	clk.Advance(2 * time.Minute)
	tr.MarkRemoved("removed-fresh")
	tr.RemoveStale(time.Minute)

	if _, ok := tr.Get("running"); !ok {
		t.Error("running entry reaped, want kept (status never removed)")
	}
	if _, ok := tr.Get("removed-stale"); ok {
		t.Error("removed-stale entry kept, want reaped")
	}

	// removed-fresh was marked removed after the 2-minute jump, so its
	// LastSeen is still within the TTL when RemoveStale runs.
	if _, ok := tr.Get("removed-fresh"); !ok {
		t.Error("removed-fresh entry reaped, want kept until TTL elapses")
	}
}

func TestRemoveStaleKeepsRunningRegardlessOfAge(t *testing.T) {
	clk := newMockClock(time.Now())
	tr := New(clk)
	tr.Upsert("c1", "web", time.Now(), []dnsrecord.Intent{intent("web.local", "10.0.0.1")}, dnsrecord.StatusRunning)

	clk.Advance(time.Hour)
	tr.RemoveStale(time.Second)

	if _, ok := tr.Get("c1"); !ok {
		t.Error("running entry reaped, want kept")
	}
}
