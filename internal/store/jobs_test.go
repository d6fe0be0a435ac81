package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleOnce_SuppressesDuplicates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	runAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first, scheduled, err := s.ScheduleOnce(ctx, "update_schema", runAt)
	require.NoError(t, err)
	assert.True(t, scheduled)
	assert.NotEmpty(t, first.Ticket)
	assert.True(t, first.RunAt.Equal(runAt))

	second, scheduled, err := s.ScheduleOnce(ctx, "update_schema", runAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, scheduled)
	assert.Equal(t, first.Ticket, second.Ticket)
	assert.True(t, second.RunAt.Equal(runAt), "the outstanding ticket keeps its time")
}

func TestScheduleOnce_ConcurrentCallersOneWinner(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, scheduled, err := s.ScheduleOnce(ctx, "update_schema", time.Now())
			assert.NoError(t, err)
			if scheduled {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestClaimScheduled_ExactlyOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	job, _, err := s.ScheduleOnce(ctx, "update_schema", now)
	require.NoError(t, err)

	got, ok, err := s.Scheduled(ctx, "update_schema")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.Ticket, got.Ticket)
	assert.False(t, got.Claimed())

	claimed, err := s.ClaimScheduled(ctx, "update_schema", job.Ticket, now, time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimScheduled(ctx, "update_schema", job.Ticket, now.Add(time.Minute), time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, ok, err = s.Scheduled(ctx, "update_schema")
	require.NoError(t, err)
	require.True(t, ok, "a claimed ticket stays until completed")
	assert.True(t, got.Claimed())
	assert.True(t, got.ClaimedAt.Equal(now))
}

func TestClaimScheduled_HeldTicketBlocksScheduling(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	job, _, err := s.ScheduleOnce(ctx, "update_schema", now)
	require.NoError(t, err)
	claimed, err := s.ClaimScheduled(ctx, "update_schema", job.Ticket, now, time.Hour)
	require.NoError(t, err)
	require.True(t, claimed)

	_, scheduled, err := s.ScheduleOnce(ctx, "update_schema", now)
	require.NoError(t, err)
	assert.False(t, scheduled, "no new ticket while the claimed run is in flight")

	require.NoError(t, s.CompleteScheduled(ctx, "update_schema", job.Ticket))

	_, ok, err := s.Scheduled(ctx, "update_schema")
	require.NoError(t, err)
	assert.False(t, ok)

	_, scheduled, err = s.ScheduleOnce(ctx, "update_schema", now)
	require.NoError(t, err)
	assert.True(t, scheduled, "a fresh ticket can be scheduled once the run completes")
}

func TestClaimScheduled_AbandonedClaimTakenOver(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	job, _, err := s.ScheduleOnce(ctx, "update_schema", now)
	require.NoError(t, err)
	claimed, err := s.ClaimScheduled(ctx, "update_schema", job.Ticket, now, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = s.ClaimScheduled(ctx, "update_schema", job.Ticket, now.Add(9*time.Minute), 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = s.ClaimScheduled(ctx, "update_schema", job.Ticket, now.Add(10*time.Minute), 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimScheduled_WrongTicket(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.ScheduleOnce(ctx, "update_schema", time.Now())
	require.NoError(t, err)

	claimed, err := s.ClaimScheduled(ctx, "update_schema", "not-the-ticket", time.Now(), time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
}
