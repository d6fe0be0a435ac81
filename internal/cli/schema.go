package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/taxsync/internal/reconcile"
	"github.com/roach88/taxsync/internal/schema"
	"github.com/roach88/taxsync/internal/tenant"
)

// SyncResult is the outcome of a schema update run.
type SyncResult struct {
	Tenant  string              `json:"tenant"`
	Version string              `json:"version"`
	Reports []reconcile.Summary `json:"reports"`
}

// Failures returns the number of absorbed failures across all taxonomies.
func (r SyncResult) Failures() int {
	n := 0
	for _, s := range r.Reports {
		n += s.Failures
	}
	return n
}

// RenderText implements textRenderer.
func (r SyncResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Tenant %s synchronized to %s\n", r.Tenant, r.Version)
	for _, s := range r.Reports {
		fmt.Fprintf(w, "  %s: %d created, %d matched, %d renamed, %d deleted, %d skipped, %d failed\n",
			s.Taxonomy, s.Created, s.Matched, s.Renamed, s.Deleted, s.Skipped, s.Failures)
	}
}

// StatusResult reports a tenant's schema stamp and pending ticket.
type StatusResult struct {
	Tenant string `json:"tenant"`
	schema.Status
	// Scheduled is set by check when that call created the ticket.
	Scheduled bool `json:"scheduled,omitempty"`
}

// RenderText implements textRenderer.
func (r StatusResult) RenderText(w io.Writer) {
	stored := r.Stored
	if !r.Stamped {
		stored = "(none)"
	}
	state := "stale"
	if r.Current {
		state = "current"
	}
	fmt.Fprintf(w, "Tenant:   %s\n", r.Tenant)
	fmt.Fprintf(w, "Expected: %s\n", r.Expected)
	fmt.Fprintf(w, "Stored:   %s (%s)\n", stored, state)
	if r.Pending != nil {
		fmt.Fprintf(w, "Pending:  ticket %s due %s", r.Pending.Ticket, r.Pending.RunAt.Format(time.RFC3339))
		if r.Pending.Claimed() {
			fmt.Fprintf(w, ", running since %s", r.Pending.ClaimedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
	if r.Scheduled {
		fmt.Fprintln(w, "Update scheduled.")
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a schema update now",
		Long: `Apply rename and delete directives, then create every missing term in
each managed taxonomy, and stamp the tenant with the definitions version.

The tenant database is created if it does not exist. Exits 1 when the run
completed but some terms could not be written.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, cmd, rootOpts.Config.DefaultTenant, func(ctx context.Context, reg *tenant.Registry, id string) ([]reconcile.Report, error) {
				t, err := reg.Open(ctx, id)
				if err != nil {
					return nil, err
				}
				return t.Gate.UpdateSchema(ctx)
			})
		},
	}
}

// NewProvisionCommand creates the provision command.
func NewProvisionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision <tenant>",
		Short: "Create a tenant and bring it to the current schema",
		Long: `Create the tenant's term store and run the schema update synchronously,
the same way a provisioning event does.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, cmd, args[0], func(ctx context.Context, reg *tenant.Registry, id string) ([]reconcile.Report, error) {
				return reg.Provision(ctx, id)
			})
		},
	}
}

type updateFunc func(ctx context.Context, reg *tenant.Registry, id string) ([]reconcile.Report, error)

func runUpdate(opts *RootOptions, cmd *cobra.Command, id string, update updateFunc) error {
	formatter := opts.formatter(cmd)

	reg, sch, err := openRegistry(opts)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer closeRegistry(opts, reg)

	reports, err := update(cmd.Context(), reg, id)
	if err != nil {
		if len(reports) == 0 {
			return failTenant(formatter, err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeRunFailed, err.Error())
	}

	result := SyncResult{Tenant: id, Version: sch.Version, Reports: reconcile.Summaries(reports)}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if n := result.Failures(); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d term(s) could not be written", n))
	}
	return nil
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Schedule a schema update if the tenant is stale",
		Long: `Compare the tenant's stored schema version with the definitions and, if
they differ and no update is pending, schedule one. The update itself is run
by a serving process.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd, true)
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the tenant's schema stamp and pending update",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd, false)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command, check bool) error {
	formatter := opts.formatter(cmd)
	id := opts.Config.DefaultTenant

	reg, _, err := openRegistry(opts)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer closeRegistry(opts, reg)

	ctx := cmd.Context()
	t, err := reg.Tenant(ctx, id)
	if err != nil {
		return failTenant(formatter, err)
	}

	result := StatusResult{Tenant: id}
	if check {
		if result.Scheduled, err = t.Gate.CheckSchema(ctx); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
	}
	if result.Status, err = t.Gate.Status(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	return formatter.Success(result)
}

func closeRegistry(opts *RootOptions, reg *tenant.Registry) {
	if err := reg.Close(); err != nil {
		opts.Logger.Error("error closing tenant stores", "error", err)
	}
}
