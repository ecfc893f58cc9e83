package syncengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/events"

	"github.com/localdns/syncd/internal/config"
	"github.com/localdns/syncd/internal/containersource"
	"github.com/localdns/syncd/internal/dnsrecord"
	"github.com/localdns/syncd/internal/logging"
	"github.com/localdns/syncd/internal/registry"
	"github.com/localdns/syncd/internal/state"
)

// mockClock is a controllable clock.Clock for deterministic timer tests.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
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

// emptyAPI implements docker.API with no containers and a never-firing
// event stream, for tests exercising only the reconciliation side.
type emptyAPI struct {
	eventCh chan events.Message
	errCh   chan error
}

func newEmptyAPI() *emptyAPI {
	return &emptyAPI{eventCh: make(chan events.Message), errCh: make(chan error)}
}

func (a *emptyAPI) ListContainers(ctx context.Context) ([]container.Summary, error) {
	return nil, nil
}
func (a *emptyAPI) InspectContainer(ctx context.Context, id string) (container.InspectResponse, error) {
	return container.InspectResponse{}, nil
}
func (a *emptyAPI) Events(ctx context.Context) (<-chan events.Message, <-chan error) {
	return a.eventCh, a.errCh
}
func (a *emptyAPI) Close() error { return nil }

func newTestEngine(t *testing.T, reg registry.Registry) *Engine {
	t.Helper()
	cfg := config.NewTestConfig()
	cfg.Hostname = "host-a"
	log := logging.New(false)
	clk := &mockClock{now: time.Now()}
	tr := state.New(clk)
	src := containersource.New(newEmptyAPI(), cfg.Hostname, tr, clk, log)
	return New(cfg, log, clk, src, tr, reg, nil)
}

func TestTickRegistersDesiredIntents(t *testing.T) {
	reg := registry.NewMemory()
	e := newTestEngine(t, reg)

	e.tracker.Upsert("c1", "web", time.Now(), []dnsrecord.Intent{
		{Record: dnsrecord.NewA("web.local", "10.0.0.1"), Hostname: "host-a"},
	}, dnsrecord.StatusRunning)

	e.tick(context.Background())

	actual, err := reg.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(actual) != 1 || actual[0].Record.Name != "web.local" {
		t.Errorf("registry contents = %+v, want [web.local]", actual)
	}
}

func TestTickRemovesEntriesNoLongerDesired(t *testing.T) {
	reg := registry.NewMemory()
	e := newTestEngine(t, reg)

	e.tracker.Upsert("c1", "web", time.Now(), []dnsrecord.Intent{
		{Record: dnsrecord.NewA("web.local", "10.0.0.1"), Hostname: "host-a"},
	}, dnsrecord.StatusRunning)
	e.tick(context.Background())

	e.tracker.MarkRemoved("c1")
	e.tick(context.Background())

	actual, _ := reg.List(context.Background())
	if len(actual) != 0 {
		t.Errorf("registry contents = %+v, want empty after removal", actual)
	}
}

func TestTickIsNoopWhenRegistryListFails(t *testing.T) {
	e := newTestEngine(t, registry.NewMemory())
	e.tracker.Upsert("c1", "web", time.Now(), []dnsrecord.Intent{
		{Record: dnsrecord.NewA("web.local", "10.0.0.1"), Hostname: "host-a"},
	}, dnsrecord.StatusRunning)

	// tick against a registry whose List fails must return without
	// panicking; failingRegistry below stands in for the real backend.
	e.reg = failingRegistry{}
	e.tick(context.Background())
}

// failingRegistry always errors, to exercise tick's error-handling path
// without crashing the reconciliation loop.
type failingRegistry struct{}

func (failingRegistry) Register(ctx context.Context, intent dnsrecord.Intent) error { return errBoom }
func (failingRegistry) Remove(ctx context.Context, intent dnsrecord.Intent) error   { return errBoom }
func (failingRegistry) List(ctx context.Context) ([]dnsrecord.Intent, error)        { return nil, errBoom }
func (failingRegistry) LockTransaction(ctx context.Context, keys ...string) (registry.Unlock, error) {
	return nil, errBoom
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }

func TestSetPollIntervalUpdatesConfig(t *testing.T) {
	e := newTestEngine(t, registry.NewMemory())
	e.SetPollInterval(42 * time.Second)
	if got := e.cfg.PollInterval(); got != 42*time.Second {
		t.Errorf("PollInterval = %s, want 42s", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	e := newTestEngine(t, registry.NewMemory())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
