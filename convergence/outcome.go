package convergence

import "time"

// OutcomeKind distinguishes how a run ended.
type OutcomeKind string

const (
	// OutcomeConverged: no remaining target is still converging.
	OutcomeConverged OutcomeKind = "converged"
	// OutcomeTimeout: the wall-clock budget ran out first.
	OutcomeTimeout OutcomeKind = "timeout"
)

// Outcome summarises a finished run.
type Outcome struct {
	Kind    OutcomeKind
	Failed  int
	Rounds  int
	Elapsed time.Duration
}

// FailedCount returns the number of permanently failed targets.
// A timed-out run has no failure count.
func (o Outcome) FailedCount() (int, bool) {
	if o.Kind != OutcomeConverged {
		return 0, false
	}
	return o.Failed, true
}
