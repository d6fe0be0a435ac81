package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

// TermStore is the subset of the term store the engine writes through.
// *store.Store implements it.
type TermStore interface {
	ListTerms(ctx context.Context, tax taxonomy.ID, filter taxonomy.ParentFilter) ([]taxonomy.Term, error)
	CreateTerm(ctx context.Context, tax taxonomy.ID, name string, parent taxonomy.TermID) (taxonomy.Term, error)
	RenameTerm(ctx context.Context, id taxonomy.TermID, newName string) error
	DeleteTerm(ctx context.Context, id taxonomy.TermID) error
	InvalidateCache(ctx context.Context, tax taxonomy.ID) error
}

var _ TermStore = (*store.Store)(nil)

// Engine applies directives and reconciles definitions against a TermStore.
//
// An Engine is stateless between calls and safe to share, but two passes over
// the same taxonomy must not overlap.
type Engine struct {
	store  TermStore
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine writing through s.
func New(s TermStore, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sync runs one full pass for a managed taxonomy: directives first, then
// structural reconciliation. If the directive phase cannot list the taxonomy
// the pass stops there, since renamed names must be in place before diffing.
func (e *Engine) Sync(ctx context.Context, m taxonomy.Managed) (Report, error) {
	start := e.now()
	tax := m.ID()

	dr, err := e.ApplyDirectives(ctx, tax, m.Directives)
	if err != nil {
		return Report{Taxonomy: tax, Directives: dr}, err
	}

	def := m.Definition
	report, err := e.Reconcile(ctx, &def)
	report.Directives = dr
	report.Duration = e.now().Sub(start)
	passDuration.WithLabelValues(string(tax)).Observe(report.Duration.Seconds())
	if err != nil {
		return report, err
	}

	e.logger.Info("taxonomy synchronized",
		"taxonomy", tax,
		"created", len(report.Created),
		"matched", report.Matched,
		"renamed", dr.Renamed,
		"deleted", dr.Deleted,
		"failures", report.FailureCount(),
		"duration", report.Duration,
	)
	return report, nil
}

// writeCtx tags ctx so the store's managed-taxonomy guard admits our writes.
func writeCtx(ctx context.Context) context.Context {
	return store.WithOrigin(ctx, store.OriginReconciler)
}

func (e *Engine) invalidate(ctx context.Context, tax taxonomy.ID) error {
	if err := e.store.InvalidateCache(ctx, tax); err != nil {
		return fmt.Errorf("invalidate %s: %w", tax, err)
	}
	return nil
}
