// Package syncengine wires the container-event source, state tracker,
// reconciler, and registry into the daemon's two concurrent activities: the
// event subscription (continuously updating desired state) and the
// reconciliation timer (periodically converging the registry toward it).
// Grounded on the teacher's internal/engine/scheduler.go for the timer/reset
// shape, generalized from a single scan loop to the two-activity
// errgroup.Group this spec's concurrency model requires.
package syncengine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localdns/syncd/internal/audit"
	"github.com/localdns/syncd/internal/clock"
	"github.com/localdns/syncd/internal/config"
	"github.com/localdns/syncd/internal/containersource"
	"github.com/localdns/syncd/internal/dnsrecord"
	"github.com/localdns/syncd/internal/logging"
	"github.com/localdns/syncd/internal/metrics"
	"github.com/localdns/syncd/internal/reconcile"
	"github.com/localdns/syncd/internal/registry"
	"github.com/localdns/syncd/internal/state"
)

// Engine runs the reconciliation loop against a Registry, fed by a
// containersource.Source and a state.Tracker.
type Engine struct {
	cfg     *config.Config
	log     *logging.Logger
	clk     clock.Clock
	source  *containersource.Source
	tracker *state.Tracker
	reg     registry.Registry
	trail   *audit.Trail // optional; nil disables audit recording

	resetCh chan struct{}
}

// New builds an Engine. trail may be nil to disable audit recording.
func New(cfg *config.Config, log *logging.Logger, clk clock.Clock, source *containersource.Source, tracker *state.Tracker, reg registry.Registry, trail *audit.Trail) *Engine {
	return &Engine{
		cfg:     cfg,
		log:     log,
		clk:     clk,
		source:  source,
		tracker: tracker,
		reg:     reg,
		trail:   trail,
		resetCh: make(chan struct{}, 1),
	}
}

// Run starts both concurrent activities -- the event source and the
// reconciliation timer -- and blocks until ctx is cancelled or either
// activity returns a non-nil error.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.source.Run(ctx)
	})

	g.Go(func() error {
		return e.runReconcileLoop(ctx)
	})

	return g.Wait()
}

// runReconcileLoop performs an initial reconciliation pass immediately, then
// one pass per poll interval, plus a staleness sweep on the same tick.
// Exits when ctx is cancelled.
func (e *Engine) runReconcileLoop(ctx context.Context) error {
	e.log.Info("starting initial reconciliation pass")
	e.tick(ctx)

	for {
		select {
		case <-e.clk.After(e.cfg.PollInterval()):
			e.tick(ctx)
		case <-e.resetCh:
			e.log.Info("poll interval changed, resetting timer", "interval", e.cfg.PollInterval())
		case <-ctx.Done():
			e.log.Info("reconciliation loop stopped")
			return nil
		}
	}
}

// SetPollInterval updates the poll interval at runtime and wakes the
// reconciliation loop so the new interval takes effect on the next tick.
func (e *Engine) SetPollInterval(d time.Duration) {
	e.cfg.SetPollInterval(d)
	select {
	case e.resetCh <- struct{}{}:
	default:
	}
}

// tick runs one reconciliation pass: sweep stale tracker entries, compute
// desired vs actual, and apply the diff under a lock transaction.
func (e *Engine) tick(ctx context.Context) {
	start := e.clk.Now()
	defer func() {
		metrics.ReconcileDuration.Observe(e.clk.Since(start).Seconds())
		metrics.ReconcileRunsTotal.Inc()
	}()

	if reaped := e.tracker.RemoveStale(e.cfg.StalenessTTL()); reaped > 0 {
		metrics.StaleEntriesReapedTotal.Add(float64(reaped))
	}
	metrics.ContainersTracked.Set(float64(e.tracker.Len()))

	actual, err := e.reg.List(ctx)
	if err != nil {
		e.log.Warn("reconciliation pass: list registry failed", "error", err)
		metrics.RegistryErrorsTotal.WithLabelValues("list").Inc()
		return
	}

	desired := e.tracker.AllDesiredRecordIntents()
	metrics.RecordIntentsDesired.Set(float64(len(desired)))

	toAdd, toRemove := reconcile.Reconcile(desired, actual, e.cfg.Hostname)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return
	}

	e.apply(ctx, toAdd, toRemove)
}

// apply acquires the lock transaction covering every affected record name
// and applies removals before additions: renaming a record (same name, new
// value) must clear the old entry before the new one lands, or there would
// be a transient window where both the stale and fresh values are present.
func (e *Engine) apply(ctx context.Context, toAdd, toRemove []dnsrecord.Intent) {
	keys := make([]string, 0, len(toAdd)+len(toRemove))
	for _, i := range toAdd {
		keys = append(keys, i.Record.Name)
	}
	for _, i := range toRemove {
		keys = append(keys, i.Record.Name)
	}

	lockStart := e.clk.Now()
	release, err := e.reg.LockTransaction(ctx, keys...)
	metrics.LockWaitDuration.Observe(e.clk.Since(lockStart).Seconds())
	if err != nil {
		e.log.Warn("reconciliation pass: lock transaction failed", "error", err)
		metrics.RegistryErrorsTotal.WithLabelValues("lock").Inc()
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			e.log.Warn("reconciliation pass: lock release failed", "error", err)
		}
	}()

	for _, intent := range toRemove {
		err := e.reg.Remove(ctx, intent)
		e.record(audit.OpRemove, intent, err)
		if err != nil {
			e.log.Warn("remove record failed", "name", intent.Record.Name, "error", err)
			metrics.RegistryErrorsTotal.WithLabelValues("remove").Inc()
			continue
		}
		metrics.RecordsAppliedTotal.WithLabelValues("remove").Inc()
	}

	for _, intent := range toAdd {
		err := e.reg.Register(ctx, intent)
		e.record(audit.OpAdd, intent, err)
		if err != nil {
			e.log.Warn("register record failed", "name", intent.Record.Name, "error", err)
			metrics.RegistryErrorsTotal.WithLabelValues("register").Inc()
			continue
		}
		metrics.RecordsAppliedTotal.WithLabelValues("add").Inc()
	}
}

func (e *Engine) record(op audit.Operation, intent dnsrecord.Intent, applyErr error) {
	if e.trail == nil {
		return
	}
	if err := e.trail.Record(audit.FromIntent(op, intent, applyErr)); err != nil {
		e.log.Warn("audit record failed", "error", err)
	}
}
