package schema

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is how often a Worker looks for tickets scheduled by
// other processes.
const DefaultPollInterval = 30 * time.Second

// Worker runs deferred UpdateSchema tickets for one gate.
//
// It wakes when the gate schedules a ticket, when a pending ticket falls due,
// and on a fixed poll interval (tickets may be written by other processes
// sharing the database).
type Worker struct {
	gate     *Gate
	interval time.Duration
	logger   *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPollInterval sets the poll interval. Default: DefaultPollInterval.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.interval = d
	}
}

// WithWorkerLogger sets the worker's logger. Default: the gate's logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker creates a worker for g.
func NewWorker(g *Gate, opts ...WorkerOption) *Worker {
	w := &Worker{
		gate:     g,
		interval: DefaultPollInterval,
		logger:   g.logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes tickets until ctx is cancelled.
//
// Update failures are logged and the loop continues; the stale stamp is
// picked up by the next CheckSchema.
func (w *Worker) Run(ctx context.Context) error {
	poll := time.NewTicker(w.interval)
	defer poll.Stop()

	due := time.NewTimer(0)
	defer due.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.gate.Wait():
		case <-poll.C:
		case <-due.C:
		}

		next, ran, err := w.gate.RunDue(ctx)
		if err != nil {
			w.logger.Error("deferred schema update failed", "error", err)
		} else if ran {
			w.logger.Debug("deferred schema update ran")
		}

		if !next.IsZero() {
			wait := next.Sub(w.gate.clock.Now())
			if wait < 0 {
				wait = 0
			}
			if !due.Stop() {
				select {
				case <-due.C:
				default:
				}
			}
			due.Reset(wait)
		}
	}
}
