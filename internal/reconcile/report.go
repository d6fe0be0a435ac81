package reconcile

import (
	"time"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// DirectiveReport summarizes one ApplyDirectives call.
type DirectiveReport struct {
	Taxonomy taxonomy.ID `json:"taxonomy"`
	Renamed  int         `json:"renamed"`
	Deleted  int         `json:"deleted"`
	// Skipped counts directives whose source name was not in the store.
	Skipped  int        `json:"skipped"`
	Failures []*OpError `json:"-"`
}

// Report summarizes one pass over a taxonomy.
type Report struct {
	Taxonomy   taxonomy.ID     `json:"taxonomy"`
	Directives DirectiveReport `json:"directives"`
	// Created lists new terms in creation order.
	Created []taxonomy.Term `json:"created"`
	// Matched counts definition nodes that already existed.
	Matched int `json:"matched"`
	// Skipped counts definition nodes not attempted because their parent
	// could not be resolved.
	Skipped  int           `json:"skipped"`
	Failures []*OpError    `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Changed reports whether the pass modified the store.
func (r Report) Changed() bool {
	return len(r.Created) > 0 || r.Directives.Renamed > 0 || r.Directives.Deleted > 0
}

// FailureCount returns the number of absorbed failures in both phases.
func (r Report) FailureCount() int {
	return len(r.Failures) + len(r.Directives.Failures)
}

// Summary is the count-only view of a Report used in API and CLI output.
type Summary struct {
	Taxonomy taxonomy.ID `json:"taxonomy"`
	Created  int         `json:"created"`
	Matched  int         `json:"matched"`
	Skipped  int         `json:"skipped"`
	Renamed  int         `json:"renamed"`
	Deleted  int         `json:"deleted"`
	Failures int         `json:"failures"`
}

// Summary condenses r into counts.
func (r Report) Summary() Summary {
	return Summary{
		Taxonomy: r.Taxonomy,
		Created:  len(r.Created),
		Matched:  r.Matched,
		Skipped:  r.Skipped + r.Directives.Skipped,
		Renamed:  r.Directives.Renamed,
		Deleted:  r.Directives.Deleted,
		Failures: r.FailureCount(),
	}
}

// Summaries condenses a run's reports, keeping their order.
func Summaries(reports []Report) []Summary {
	out := make([]Summary, len(reports))
	for i, r := range reports {
		out[i] = r.Summary()
	}
	return out
}
