package containersource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/events"

	"github.com/localdns/syncd/internal/logging"
	"github.com/localdns/syncd/internal/state"
)

// fakeAPI implements docker.API for tests.
type fakeAPI struct {
	mu         sync.Mutex
	containers []container.Summary
	inspects   map[string]container.InspectResponse
	eventCh    chan events.Message
	errCh      chan error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		inspects: make(map[string]container.InspectResponse),
		eventCh:  make(chan events.Message, 8),
		errCh:    make(chan error, 1),
	}
}

func (f *fakeAPI) ListContainers(ctx context.Context) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers, nil
}

func (f *fakeAPI) InspectContainer(ctx context.Context, id string) (container.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.inspects[id]
	if !ok {
		return container.InspectResponse{}, errors.New("not found")
	}
	return info, nil
}

func (f *fakeAPI) Events(ctx context.Context) (<-chan events.Message, <-chan error) {
	return f.eventCh, f.errCh
}

func (f *fakeAPI) Close() error { return nil }

func inspectWithLabels(name string, labels map[string]string) container.InspectResponse {
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			Name:    name,
			Created: time.Now().Format(time.RFC3339Nano),
		},
		Config: &container.Config{Labels: labels},
	}
}

func TestSyncExistingUpsertsTracker(t *testing.T) {
	api := newFakeAPI()
	api.containers = []container.Summary{{ID: "c1"}}
	api.inspects["c1"] = inspectWithLabels("/web-1", map[string]string{
		"dnssync.record.a": "web.local=10.0.0.1",
	})

	tr := state.New(testClock{})
	src := New(api, "host-a", tr, testClock{}, logging.New(false))

	if err := src.syncExisting(context.Background()); err != nil {
		t.Fatalf("syncExisting: %v", err)
	}

	entry, ok := tr.Get("c1")
	if !ok {
		t.Fatal("tracker entry for c1 not found")
	}
	if len(entry.RecordIntents) != 1 || entry.RecordIntents[0].Record.Name != "web.local" {
		t.Errorf("RecordIntents = %+v, want [web.local]", entry.RecordIntents)
	}
	if entry.ContainerName != "web-1" {
		t.Errorf("ContainerName = %q, want web-1", entry.ContainerName)
	}
}

func TestHandleStartAndStopEvents(t *testing.T) {
	api := newFakeAPI()
	api.inspects["c1"] = inspectWithLabels("/web-1", map[string]string{
		"dnssync.names":  "web.local",
		"dnssync.host-ip": "10.0.0.5",
	})

	tr := state.New(testClock{})
	src := New(api, "host-a", tr, testClock{}, logging.New(false))

	src.handle(context.Background(), events.Message{
		Action: "start",
		Actor:  events.Actor{ID: "c1"},
	})
	if _, ok := tr.Get("c1"); !ok {
		t.Fatal("start event did not upsert tracker")
	}

	src.handle(context.Background(), events.Message{
		Action: "die",
		Actor:  events.Actor{ID: "c1"},
	})
	if len(tr.AllDesiredRecordIntents()) != 0 {
		t.Error("die event did not remove desired intents")
	}
}

func TestSyncExistingSkipsInspectFailure(t *testing.T) {
	api := newFakeAPI()
	api.containers = []container.Summary{{ID: "ghost"}}
	// No inspect registered for "ghost".

	tr := state.New(testClock{})
	src := New(api, "host-a", tr, testClock{}, logging.New(false))

	if err := src.syncExisting(context.Background()); err != nil {
		t.Fatalf("syncExisting: %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (inspect failure should not create an entry)", tr.Len())
	}
}

// testClock is a minimal clock.Clock for tests that don't exercise timing.
type testClock struct{}

func (testClock) Now() time.Time                         { return time.Now() }
func (testClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (testClock) Since(t time.Time) time.Duration        { return time.Since(t) }
