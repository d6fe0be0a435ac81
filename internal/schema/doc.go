// Package schema gates reconciliation on a persisted version stamp.
//
// The stamp records which version of the combined taxonomy definitions was
// last fully applied. CheckSchema compares it with the expected version and,
// on a mismatch, schedules one deferred UpdateSchema run a short delay in the
// future. The delay coalesces bursts of checks (many admin page loads) into a
// single run. While a ticket is outstanding further checks are no-ops.
//
// UpdateSchema synchronizes every managed taxonomy in declaration order and
// writes the stamp last. A crash or aborted pass leaves the stamp stale, so
// the next check schedules a retry; reconciliation is idempotent, so the retry
// only does the remaining work.
//
// Tickets live in the store's scheduled_jobs table and are claimed with a
// delete, so across any number of workers and processes a ticket runs once.
package schema
