package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"stratlab-sync/internal/client"
)

func TestTerminalStatesAdmitNoTransitions(t *testing.T) {
	all := []State{
		StateInitialized, StateLoadingData, StatePreparingStrategy,
		StateRunning, StateAnalyzing, StateCompleted,
		StateError, StateCanceling, StateCancelled,
	}
	for _, from := range []State{StateCompleted, StateError, StateCancelled} {
		for _, to := range all {
			if canTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
}

func TestMainChainOnlyMovesForward(t *testing.T) {
	chain := []State{
		StateInitialized, StateLoadingData, StatePreparingStrategy,
		StateRunning, StateAnalyzing, StateCompleted,
	}
	for i, from := range chain[:len(chain)-1] {
		for j, to := range chain {
			got := canTransition(from, to)
			want := j > i
			if got != want {
				t.Errorf("canTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestBranchStatesReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range []State{
		StateInitialized, StateLoadingData, StatePreparingStrategy,
		StateRunning, StateAnalyzing, StateCanceling,
	} {
		if !canTransition(from, StateError) {
			t.Errorf("%s must be able to transition to error", from)
		}
	}
	if !canTransition(StateCanceling, StateCancelled) {
		t.Error("canceling must be able to transition to cancelled")
	}
	if !canTransition(StateCanceling, StateCompleted) {
		t.Error("an advisory cancel must not prevent completion")
	}
	if canTransition(StateCanceling, StateRunning) {
		t.Error("canceling must not regress to the main chain")
	}
}

// Property: for any sequence of remote status reports, serial polls observe
// a non-decreasing status per the transition graph, and once terminal the
// record never changes again.
func TestProperty_PolledStatusesAreMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	reportable := []string{
		"initialized", "loading_data", "preparing_strategy", "running",
		"analyzing", "completed", "error", "canceling", "cancelled",
		"rebooting", // unknown status, must be ignored
	}

	properties.Property("serial polls never observe a regression", prop.ForAll(
		func(indices []int) bool {
			docs := make([]client.StatusDoc, 0, len(indices)+1)
			for _, idx := range indices {
				docs = append(docs, client.StatusDoc{Status: reportable[idx%len(reportable)]})
			}
			docs = append(docs, client.StatusDoc{Status: "completed"})

			api := &fakeAPI{statusQueue: docs}
			ctrl := NewController(api, Options{MaxRetained: 64}, zerolog.Nop())
			jobID, err := ctrl.Submit(context.Background(), validConfig())
			if err != nil {
				return false
			}

			var observed []Job
			for i := 0; i <= len(docs); i++ {
				job, err := ctrl.Poll(context.Background(), jobID)
				if err != nil {
					return false
				}
				observed = append(observed, job)
				if job.Status.IsTerminal() {
					break
				}
			}

			var terminalSeen *Job
			for i := 1; i < len(observed); i++ {
				prev, cur := observed[i-1], observed[i]
				if cur.Status != prev.Status && !canTransition(prev.Status, cur.Status) {
					return false
				}
				if cur.Progress < prev.Progress {
					return false
				}
				if terminalSeen != nil && cur.Status != terminalSeen.Status {
					return false
				}
				if cur.Status.IsTerminal() && terminalSeen == nil {
					terminalSeen = &observed[i]
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(0, 9)),
	))

	properties.TestingRun(t)
}
