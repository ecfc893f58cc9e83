// Package containersource is the container-event source adapter (C4): it
// watches the local Docker daemon for lifecycle events, derives DNS record
// intents for each container via internal/recordbuilder, and feeds the
// result into the state tracker. The event stream is wrapped in a
// reconnect-with-backoff loop, grounded on the traefikturkey/joyride
// docker_watcher pattern, adapted to the moby/moby/client v2 option-struct
// API the teacher's docker.Client already uses.
package containersource

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/events"

	"github.com/localdns/syncd/internal/clock"
	"github.com/localdns/syncd/internal/dnsrecord"
	"github.com/localdns/syncd/internal/docker"
	"github.com/localdns/syncd/internal/logging"
	"github.com/localdns/syncd/internal/metrics"
	"github.com/localdns/syncd/internal/recordbuilder"
	"github.com/localdns/syncd/internal/state"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 5 * time.Minute
)

// Source watches the local container inventory and keeps tracker in sync.
type Source struct {
	api      docker.API
	hostname string
	tracker  *state.Tracker
	clk      clock.Clock
	log      *logging.Logger
}

// New builds a Source. hostname is stamped onto every intent this host
// asserts; tracker receives every Upsert/MarkRemoved call.
func New(api docker.API, hostname string, tracker *state.Tracker, clk clock.Clock, log *logging.Logger) *Source {
	return &Source{api: api, hostname: hostname, tracker: tracker, clk: clk, log: log}
}

// Run syncs the current container inventory into tracker, then watches the
// event stream, reconnecting with exponential backoff on any failure. It
// returns only when ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.syncExisting(ctx); err != nil {
			s.log.Warn("initial container sync failed", "error", err)
			if !s.sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialBackoff

		if err := s.watch(ctx); err != nil {
			s.log.Warn("container event stream error", "error", err)
			if !s.sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}

		// watch returned nil only on context cancellation.
		return nil
	}
}

// syncExisting lists every running container and upserts its derived
// intents into the tracker, establishing the baseline the event stream
// then maintains incrementally.
func (s *Source) syncExisting(ctx context.Context) error {
	summaries, err := s.api.ListContainers(ctx)
	if err != nil {
		return err
	}

	for _, summary := range summaries {
		s.upsertFromID(ctx, summary.ID)
	}
	return nil
}

// watch subscribes to the event stream and applies each event to the
// tracker until the stream errors or ctx is cancelled.
func (s *Source) watch(ctx context.Context) error {
	eventCh, errCh := s.api.Events(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case msg, ok := <-eventCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("container event stream closed")
			}
			s.handle(ctx, msg)
		}
	}
}

func (s *Source) handle(ctx context.Context, msg events.Message) {
	id := msg.Actor.ID
	metrics.ContainerEventsTotal.WithLabelValues(string(msg.Action)).Inc()
	switch msg.Action {
	case "start":
		s.upsertFromID(ctx, id)
	case "stop", "die", "destroy":
		s.tracker.MarkRemoved(id)
	}
}

// upsertFromID inspects container id, derives its record intents, and
// upserts the tracker entry. Inspect failures (e.g. the container exited
// between the event and the inspect call) are logged and skipped -- the
// next event for this id will retry.
func (s *Source) upsertFromID(ctx context.Context, id string) {
	info, err := s.api.InspectContainer(ctx, id)
	if err != nil {
		s.log.Warn("inspect container failed", "container_id", id, "error", err)
		return
	}

	var created time.Time
	if t, err := time.Parse(time.RFC3339Nano, info.Created); err == nil {
		created = t
	} else {
		created = s.clk.Now()
	}

	labels := map[string]string{}
	if info.Config != nil {
		labels = info.Config.Labels
	}

	primaryIP := primaryIPFromNetworkSettings(info)
	name := strings.TrimPrefix(info.Name, "/")

	intents := recordbuilder.Derive(s.hostname, container.Summary{Names: []string{info.Name}}, created, labels, primaryIP)
	if len(intents) == 0 {
		return
	}
	s.tracker.Upsert(id, name, created, intents, dnsrecord.StatusRunning)
}

// primaryIPFromNetworkSettings returns the IP address of an arbitrary
// attached network, for containers that declare dnssync.names without an
// explicit dnssync.host-ip override. Map iteration order is unspecified, so
// a container on several networks picks whichever one the runtime yields
// first -- callers needing a specific network should set LabelHostIP.
func primaryIPFromNetworkSettings(info container.InspectResponse) string {
	if info.NetworkSettings == nil {
		return ""
	}
	for _, ep := range info.NetworkSettings.Networks {
		if ep != nil && ep.IPAddress != "" {
			return ep.IPAddress
		}
	}
	return ""
}

func (s *Source) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
