package tenant

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/taxsync/internal/config"
	"github.com/roach88/taxsync/internal/reconcile"
	"github.com/roach88/taxsync/internal/schema"
	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

// Sentinel errors returned by the registry. Wrapped; test with errors.Is.
var (
	ErrInvalidTenant  = errors.New("invalid tenant id")
	ErrUnknownTenant  = errors.New("tenant not provisioned")
	ErrAlreadyStarted = errors.New("registry already started")
)

// Tenant is one tenant's store and the machinery that keeps it current.
type Tenant struct {
	ID     string
	Store  *store.Store
	Engine *reconcile.Engine
	Gate   *schema.Gate

	worker *schema.Worker
}

// Registry opens and tracks tenants.
type Registry struct {
	cfg    *config.Config
	schema *taxonomy.Schema
	logger *slog.Logger
	clock  schema.Clock

	mu      sync.Mutex
	tenants map[string]*Tenant
	// group and runCtx are set while Start is running.
	group  *errgroup.Group
	runCtx context.Context
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger handed to every tenant component.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithClock sets the clock used by tenant gates. Default: wall clock.
func WithClock(c schema.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// NewRegistry creates a registry serving sch from the databases under
// cfg.DataDir.
func NewRegistry(cfg *config.Config, sch *taxonomy.Schema, opts ...Option) *Registry {
	r := &Registry{
		cfg:     cfg,
		schema:  sch,
		logger:  slog.Default(),
		tenants: make(map[string]*Tenant),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schema returns the schema every tenant is held to.
func (r *Registry) Schema() *taxonomy.Schema {
	return r.schema
}

// Tenant returns an existing tenant, opening its database if needed.
// Returns ErrUnknownTenant when no database exists for id.
func (r *Registry) Tenant(ctx context.Context, id string) (*Tenant, error) {
	if !config.ValidTenant(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenant, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tenants[id]; ok {
		return t, nil
	}
	if _, err := os.Stat(r.cfg.DatabasePath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, id)
		}
		return nil, fmt.Errorf("stat tenant %s: %w", id, err)
	}
	return r.openLocked(id)
}

// Open returns the tenant, creating its database if it does not exist.
func (r *Registry) Open(ctx context.Context, id string) (*Tenant, error) {
	if !config.ValidTenant(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenant, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tenants[id]; ok {
		return t, nil
	}
	if err := os.MkdirAll(r.cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return r.openLocked(id)
}

func (r *Registry) openLocked(id string) (*Tenant, error) {
	logger := r.logger.With("tenant", id)

	st, err := store.Open(r.cfg.DatabasePath(id),
		store.WithManaged(r.schema.IDs()...),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", id, err)
	}

	gateOpts := []schema.Option{
		schema.WithDelay(r.cfg.ScheduleDelay),
		schema.WithLogger(logger),
	}
	if r.clock != nil {
		gateOpts = append(gateOpts, schema.WithClock(r.clock))
	}

	eng := reconcile.New(st, reconcile.WithLogger(logger))
	gate := schema.NewGate(st, eng, r.schema, gateOpts...)
	t := &Tenant{
		ID:     id,
		Store:  st,
		Engine: eng,
		Gate:   gate,
		worker: schema.NewWorker(gate, schema.WithPollInterval(r.cfg.PollInterval)),
	}
	r.tenants[id] = t
	logger.Debug("tenant opened", "path", r.cfg.DatabasePath(id))

	if r.group != nil {
		r.startWorkerLocked(t)
	}
	return t, nil
}

// OpenAll opens every tenant that has a database in the data directory, so
// that Start runs their workers. Files whose name is not a valid tenant id
// are ignored.
func (r *Registry) OpenAll(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.cfg.DataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan data dir: %w", err)
	}

	var opened []string
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), filepath.Ext(r.cfg.DatabasePath("x")))
		if !ok || e.IsDir() || !config.ValidTenant(id) {
			continue
		}
		if _, err := r.Tenant(ctx, id); err != nil {
			return opened, err
		}
		opened = append(opened, id)
	}
	return opened, nil
}

// Provision creates the tenant if needed and brings it to the current schema
// before returning.
func (r *Registry) Provision(ctx context.Context, id string) ([]reconcile.Report, error) {
	t, err := r.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	reports, err := t.Gate.Provision(ctx)
	if err != nil {
		return reports, fmt.Errorf("provision %s: %w", id, err)
	}
	r.logger.Info("tenant provisioned", "tenant", id, "version", r.schema.Version)
	return reports, nil
}

// Tenants returns the ids of open tenants, sorted.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start runs the deferred-update worker of every open tenant, and of every
// tenant opened later, until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	r.mu.Lock()
	if r.group != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.group, r.runCtx = g, gctx
	// Holds the group open so workers can join after Wait has begun.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	for _, t := range r.tenants {
		r.startWorkerLocked(t)
	}
	r.mu.Unlock()

	err := g.Wait()

	r.mu.Lock()
	r.group, r.runCtx = nil, nil
	r.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Registry) startWorkerLocked(t *Tenant) {
	ctx := r.runCtx
	r.group.Go(func() error {
		if err := t.worker.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("tenant %s worker: %w", t.ID, err)
		}
		return nil
	})
}

// Close closes every tenant store. Stop Start first.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, t := range r.tenants {
		if err := t.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tenant %s: %w", id, err))
		}
		delete(r.tenants, id)
	}
	return errors.Join(errs...)
}
