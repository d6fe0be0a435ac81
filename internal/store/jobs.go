package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScheduledJob is a deferred job ticket: one pending run of hook at RunAt.
//
// A claimed ticket stays in place while its run is in flight, so that
// ScheduleOnce keeps conflicting until CompleteScheduled removes it.
type ScheduledJob struct {
	Hook   string    `json:"hook"`
	Ticket string    `json:"ticket"`
	RunAt  time.Time `json:"run_at"`
	// ClaimedAt is zero until a runner claims the ticket.
	ClaimedAt time.Time `json:"claimed_at,omitempty"`
}

// Claimed reports whether a runner holds the ticket.
func (j ScheduledJob) Claimed() bool {
	return !j.ClaimedAt.IsZero()
}

// ScheduleOnce records a ticket for hook unless one is already outstanding.
//
// Uses ON CONFLICT(hook) DO NOTHING so that concurrent callers, even in
// separate processes, race on the primary key and exactly one wins. Returns
// the outstanding job and whether this call created it.
func (s *Store) ScheduleOnce(ctx context.Context, hook string, runAt time.Time) (job ScheduledJob, scheduled bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ScheduledJob{}, false, fmt.Errorf("schedule %s: begin tx: %w", hook, err)
	}
	defer tx.Rollback()

	ticket := uuid.Must(uuid.NewV7()).String()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (hook, ticket, run_at)
		VALUES (?, ?, ?)
		ON CONFLICT(hook) DO NOTHING
	`, hook, ticket, runAt.UnixMilli())
	if err != nil {
		return ScheduledJob{}, false, fmt.Errorf("schedule %s: insert: %w", hook, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ScheduledJob{}, false, fmt.Errorf("schedule %s: rows affected: %w", hook, err)
	}

	if rowsAffected > 0 {
		job = ScheduledJob{Hook: hook, Ticket: ticket, RunAt: time.UnixMilli(runAt.UnixMilli())}
		scheduled = true
	} else {
		// Conflict - a ticket is already outstanding, report it instead
		job, err = scanJob(tx.QueryRowContext(ctx, selectJob, hook))
		if err != nil {
			return ScheduledJob{}, false, fmt.Errorf("schedule %s: select existing: %w", hook, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ScheduledJob{}, false, fmt.Errorf("schedule %s: commit: %w", hook, err)
	}
	return job, scheduled, nil
}

// Scheduled returns the outstanding ticket for hook, if any.
func (s *Store) Scheduled(ctx context.Context, hook string) (ScheduledJob, bool, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, selectJob, hook))
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduledJob{}, false, nil
	}
	if err != nil {
		return ScheduledJob{}, false, fmt.Errorf("read scheduled %s: %w", hook, err)
	}
	return job, true, nil
}

// ClaimScheduled marks the ticket as running at now so that exactly one
// runner executes it. A claim older than lease is treated as abandoned and
// may be taken over. Returns false if another runner holds the ticket or it
// was replaced.
func (s *Store) ClaimScheduled(ctx context.Context, hook, ticket string, now time.Time, lease time.Duration) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs SET claimed_at = ?
		WHERE hook = ? AND ticket = ? AND (claimed_at = 0 OR claimed_at <= ?)
	`, now.UnixMilli(), hook, ticket, now.Add(-lease).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", hook, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: rows affected: %w", hook, err)
	}
	return n == 1, nil
}

// CompleteScheduled removes the ticket once its run has finished, allowing
// the next ScheduleOnce to succeed.
func (s *Store) CompleteScheduled(ctx context.Context, hook, ticket string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM scheduled_jobs WHERE hook = ? AND ticket = ?
	`, hook, ticket); err != nil {
		return fmt.Errorf("complete %s: %w", hook, err)
	}
	return nil
}

const selectJob = `
	SELECT hook, ticket, run_at, claimed_at FROM scheduled_jobs WHERE hook = ?
`

func scanJob(row *sql.Row) (ScheduledJob, error) {
	var (
		job       ScheduledJob
		runAt     int64
		claimedAt int64
	)
	if err := row.Scan(&job.Hook, &job.Ticket, &runAt, &claimedAt); err != nil {
		return ScheduledJob{}, err
	}
	job.RunAt = time.UnixMilli(runAt)
	if claimedAt != 0 {
		job.ClaimedAt = time.UnixMilli(claimedAt)
	}
	return job, nil
}
