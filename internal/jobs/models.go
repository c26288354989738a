// Package jobs drives remote backtest job lifecycles: submit, poll, cancel
// and results retrieval. The controller owns each job's local status record
// for the duration of its active lifecycle and guarantees that observed
// statuses never regress, even if the remote authority reports out of order.
package jobs

import "time"

// State is a job lifecycle state.
type State string

const (
	StateInitialized       State = "initialized"
	StateLoadingData       State = "loading_data"
	StatePreparingStrategy State = "preparing_strategy"
	StateRunning           State = "running"
	StateAnalyzing         State = "analyzing"
	StateCompleted         State = "completed"
	StateError             State = "error"
	StateCanceling         State = "canceling"
	StateCancelled         State = "cancelled"
)

// progressRank orders the main progression chain. Branch states (error,
// canceling, cancelled) are handled separately in canTransition.
var progressRank = map[State]int{
	StateInitialized:       0,
	StateLoadingData:       1,
	StatePreparingStrategy: 2,
	StateRunning:           3,
	StateAnalyzing:         4,
	StateCompleted:         5,
}

// IsTerminal reports whether s admits no further transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateInitialized, StateLoadingData, StatePreparingStrategy,
		StateRunning, StateAnalyzing, StateCompleted,
		StateError, StateCanceling, StateCancelled:
		return true
	}
	return false
}

// canTransition reports whether from may advance to to. Terminal states
// admit nothing; error and cancellation branches are reachable from any
// non-terminal state; the main chain only moves forward (skips allowed).
// A cancellation is advisory, so a canceling job may still complete.
func canTransition(from, to State) bool {
	if from == to {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StateError, StateCanceling, StateCancelled:
		return true
	case StateCompleted:
		return true
	}
	if from == StateCanceling {
		// Waiting on the cancel outcome; intermediate progress is moot.
		return false
	}
	fromRank, ok1 := progressRank[from]
	toRank, ok2 := progressRank[to]
	return ok1 && ok2 && toRank > fromRank
}

// Job is the local status record for one remote job. Its identity never
// changes; its status strictly advances per the transition rules above.
type Job struct {
	ID                  string     `json:"job_id"`
	Name                string     `json:"name"`
	Status              State      `json:"status"`
	Progress            float64    `json:"progress"`
	Message             string     `json:"message"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`

	cancelRequested bool
	terminalAt      time.Time
}

// Metrics is a read-only projection of a job's results: four quantities
// extracted best-effort from a loosely-structured results document.
type Metrics struct {
	WinRate     float64 `json:"win_rate"`
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
}
