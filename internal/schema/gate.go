package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/taxsync/internal/reconcile"
	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

const (
	// StampOption is the option row holding the applied schema version.
	StampOption = "taxonomy_schema_version"

	// UpdateHook names the deferred UpdateSchema job.
	UpdateHook = "taxonomy_update_schema"

	// DefaultDelay is how far in the future CheckSchema schedules the update.
	DefaultDelay = time.Minute

	// DefaultClaimLease is how long a claimed ticket is held before another
	// runner may assume its run died and take it over.
	DefaultClaimLease = 15 * time.Minute
)

// Store is the persisted state the gate reads and writes.
// *store.Store implements it.
type Store interface {
	GetOption(ctx context.Context, name string) (string, bool, error)
	SetOption(ctx context.Context, name, value string) error
	ScheduleOnce(ctx context.Context, hook string, runAt time.Time) (store.ScheduledJob, bool, error)
	Scheduled(ctx context.Context, hook string) (store.ScheduledJob, bool, error)
	ClaimScheduled(ctx context.Context, hook, ticket string, now time.Time, lease time.Duration) (bool, error)
	CompleteScheduled(ctx context.Context, hook, ticket string) error
}

var _ Store = (*store.Store)(nil)

// Trigger records why an update ran.
type Trigger string

const (
	TriggerDeferred  Trigger = "deferred"
	TriggerProvision Trigger = "provision"
	TriggerManual    Trigger = "manual"
)

// Gate is the Schema Version Gate for one store.
type Gate struct {
	store  Store
	engine *reconcile.Engine
	schema *taxonomy.Schema
	clock  Clock
	delay  time.Duration
	lease  time.Duration
	logger *slog.Logger

	// runMu serializes UpdateSchema within this process.
	runMu sync.Mutex
	// signal is poked when a ticket is scheduled (buffered, size 1).
	signal chan struct{}
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the clock used for scheduling. Default: time.Now.
func WithClock(c Clock) Option {
	return func(g *Gate) {
		g.clock = c
	}
}

// WithDelay sets the coalescing delay. Default: DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(g *Gate) {
		g.delay = d
	}
}

// WithClaimLease sets how long a claimed ticket is held. Default:
// DefaultClaimLease.
func WithClaimLease(d time.Duration) Option {
	return func(g *Gate) {
		g.lease = d
	}
}

// WithLogger sets the gate's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = l
	}
}

// NewGate creates a gate that applies sch through engine.
func NewGate(s Store, engine *reconcile.Engine, sch *taxonomy.Schema, opts ...Option) *Gate {
	g := &Gate{
		store:  s,
		engine: engine,
		schema: sch,
		clock:  systemClock{},
		delay:  DefaultDelay,
		lease:  DefaultClaimLease,
		logger: slog.Default(),
		signal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Version returns the expected schema version.
func (g *Gate) Version() string {
	return g.schema.Version
}

// CheckSchema schedules a deferred update if the stored stamp differs from
// the expected version and no ticket is outstanding. Returns true only when
// this call created the ticket.
func (g *Gate) CheckSchema(ctx context.Context) (bool, error) {
	stamp, ok, err := g.store.GetOption(ctx, StampOption)
	if err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	if ok && stamp == g.schema.Version {
		checks.WithLabelValues("current").Inc()
		return false, nil
	}

	job, scheduled, err := g.store.ScheduleOnce(ctx, UpdateHook, g.clock.Now().Add(g.delay))
	if err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	if !scheduled {
		checks.WithLabelValues("pending").Inc()
		g.logger.Debug("schema update already pending", "ticket", job.Ticket, "run_at", job.RunAt)
		return false, nil
	}

	checks.WithLabelValues("scheduled").Inc()
	g.logger.Info("schema update scheduled",
		"stored", stamp,
		"expected", g.schema.Version,
		"ticket", job.Ticket,
		"run_at", job.RunAt,
	)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case g.signal <- struct{}{}:
	default:
	}
	return true, nil
}

// Wait returns a channel that signals when a ticket may have been scheduled.
func (g *Gate) Wait() <-chan struct{} {
	return g.signal
}

// UpdateSchema synchronizes every managed taxonomy in order, then writes the
// stamp. A taxonomy whose pass aborts stops the run and the stamp is left
// unchanged. Absorbed per-term failures do not block the stamp.
func (g *Gate) UpdateSchema(ctx context.Context) ([]reconcile.Report, error) {
	return g.update(ctx, TriggerManual)
}

// Provision runs UpdateSchema immediately, for a tenant created moments ago.
func (g *Gate) Provision(ctx context.Context) ([]reconcile.Report, error) {
	return g.update(ctx, TriggerProvision)
}

func (g *Gate) update(ctx context.Context, trigger Trigger) ([]reconcile.Report, error) {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	g.logger.Info("schema update started", "trigger", string(trigger), "version", g.schema.Version)

	reports := make([]reconcile.Report, 0, len(g.schema.Taxonomies))
	for _, m := range g.schema.Taxonomies {
		report, err := g.engine.Sync(ctx, m)
		reports = append(reports, report)
		if err != nil {
			updates.WithLabelValues(string(trigger), "failure").Inc()
			g.logger.Error("schema update aborted, stamp left stale",
				"trigger", string(trigger),
				"taxonomy", m.ID(),
				"error", err,
			)
			return reports, fmt.Errorf("update schema: %s: %w", m.ID(), err)
		}
	}

	if err := g.store.SetOption(ctx, StampOption, g.schema.Version); err != nil {
		updates.WithLabelValues(string(trigger), "failure").Inc()
		return reports, fmt.Errorf("update schema: write stamp: %w", err)
	}

	updates.WithLabelValues(string(trigger), "success").Inc()
	g.logger.Info("schema update complete", "trigger", string(trigger), "version", g.schema.Version)
	return reports, nil
}

// RunDue claims and runs the outstanding ticket if its time has come.
// Returns the time the pending ticket becomes due when it is not yet due, and
// whether this call ran the update.
//
// The ticket is held for the whole run and removed only afterwards, so a
// CheckSchema during the run finds it pending instead of scheduling a second
// pass. A ticket whose stamp became current before it was claimed is retired
// without running.
func (g *Gate) RunDue(ctx context.Context) (next time.Time, ran bool, err error) {
	job, ok, err := g.store.Scheduled(ctx, UpdateHook)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, false, nil
	}
	now := g.clock.Now()
	if job.RunAt.After(now) {
		return job.RunAt, false, nil
	}
	if job.Claimed() && now.Before(job.ClaimedAt.Add(g.lease)) {
		g.logger.Debug("ticket running elsewhere", "ticket", job.Ticket, "claimed_at", job.ClaimedAt)
		return time.Time{}, false, nil
	}

	claimed, err := g.store.ClaimScheduled(ctx, UpdateHook, job.Ticket, now, g.lease)
	if err != nil {
		return time.Time{}, false, err
	}
	if !claimed {
		g.logger.Debug("ticket claimed elsewhere", "ticket", job.Ticket)
		return time.Time{}, false, nil
	}
	defer g.complete(ctx, job.Ticket)

	stamp, ok, err := g.store.GetOption(ctx, StampOption)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("run due: %w", err)
	}
	if ok && stamp == g.schema.Version {
		g.logger.Debug("ticket retired, stamp already current", "ticket", job.Ticket, "version", stamp)
		return time.Time{}, false, nil
	}

	_, err = g.update(ctx, TriggerDeferred)
	return time.Time{}, true, err
}

// complete removes a claimed ticket. Runs even when ctx was cancelled so the
// ticket is not left held until its lease expires.
func (g *Gate) complete(ctx context.Context, ticket string) {
	if err := g.store.CompleteScheduled(context.WithoutCancel(ctx), UpdateHook, ticket); err != nil {
		g.logger.Error("failed to release ticket", "ticket", ticket, "error", err)
	}
}

// Status describes the gate's persisted state.
type Status struct {
	Expected string              `json:"expected"`
	Stored   string              `json:"stored,omitempty"`
	Stamped  bool                `json:"stamped"`
	Current  bool                `json:"current"`
	Pending  *store.ScheduledJob `json:"pending,omitempty"`
}

// Status reads the stored stamp and any outstanding ticket.
func (g *Gate) Status(ctx context.Context) (Status, error) {
	st := Status{Expected: g.schema.Version}

	stamp, ok, err := g.store.GetOption(ctx, StampOption)
	if err != nil {
		return st, fmt.Errorf("status: %w", err)
	}
	st.Stored, st.Stamped = stamp, ok
	st.Current = ok && stamp == g.schema.Version

	job, ok, err := g.store.Scheduled(ctx, UpdateHook)
	if err != nil {
		return st, fmt.Errorf("status: %w", err)
	}
	if ok {
		st.Pending = &job
	}
	return st, nil
}
