package track

import "time"

// progressCeiling caps every estimate below 100 so that only an observed
// terminal state can report completion.
const progressCeiling = 99

// Estimator produces advisory progress percentages from whatever signals
// the current poll surfaced, in strict priority order: fraction of
// expected output-producing nodes already done, then the static per-stage
// table keyed by the executing node, then linear interpolation against an
// expected total duration.
type Estimator struct {
	// Stages maps node id to the percentage reached when that node is the
	// one executing (or the highest one with recorded outputs).
	Stages map[string]int
	// ExpectedOutputs is the number of nodes expected to record outputs
	// before the job completes. Zero disables fractional estimation.
	ExpectedOutputs int
	// ExpectedDuration is the time-based fallback estimate. Zero disables
	// interpolation.
	ExpectedDuration time.Duration
}

// Estimate returns a percentage in [0, 99]. best is the highest estimate
// reported so far; the return value never regresses below it, keeping the
// advisory number monotonic across flaky polls.
func (e Estimator) Estimate(doneNodes []string, executing string, elapsed time.Duration, best int) int {
	pct := -1

	if e.ExpectedOutputs > 0 && len(doneNodes) > 0 {
		pct = len(doneNodes) * 100 / e.ExpectedOutputs
	}

	if pct < 0 {
		if p, ok := e.Stages[executing]; ok {
			pct = p
		} else {
			// The executing signal may be absent; fall back to the highest
			// stage already done.
			for _, id := range doneNodes {
				if p, ok := e.Stages[id]; ok && p > pct {
					pct = p
				}
			}
		}
	}

	if pct < 0 && e.ExpectedDuration > 0 {
		pct = int(elapsed * 100 / e.ExpectedDuration)
	}

	if pct < 0 {
		pct = 0
	}
	if pct > progressCeiling {
		pct = progressCeiling
	}
	if pct < best {
		pct = best
	}
	return pct
}
