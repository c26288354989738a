package readiness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func passing(ctx context.Context) (Status, string, error) {
	return StatusPassed, "ok", nil
}

func TestAllPassedVerdictIsReady(t *testing.T) {
	agg := New(nil, zerolog.Nop())
	agg.Register("a", "Check A", passing)
	agg.Register("b", "Check B", passing)

	verdict := agg.Run(context.Background())
	if !verdict.OK {
		t.Fatalf("expected ready verdict, got %+v", verdict)
	}
	if len(verdict.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(verdict.Checks))
	}
}

func TestSingleWarningMakesVerdictNotReady(t *testing.T) {
	agg := New(nil, zerolog.Nop())
	agg.Register("a", "Check A", passing)
	agg.Register("b", "Check B", func(ctx context.Context) (Status, string, error) {
		return StatusWarning, "nothing assigned", nil
	})
	agg.Register("c", "Check C", passing)

	verdict := agg.Run(context.Background())
	if verdict.OK {
		t.Fatal("one warning must make the whole verdict not ready")
	}
	if verdict.Checks[1].Status != StatusWarning {
		t.Fatalf("expected warning at position 1, got %+v", verdict.Checks)
	}
}

func TestFailingCheckDoesNotAbortOthers(t *testing.T) {
	var ran int32
	agg := New(nil, zerolog.Nop())
	agg.Register("a", "Check A", func(ctx context.Context) (Status, string, error) {
		atomic.AddInt32(&ran, 1)
		return StatusPassed, "ok", nil
	})
	agg.Register("b", "Check B", func(ctx context.Context) (Status, string, error) {
		return StatusFailed, "", errors.New("connection refused")
	})
	agg.Register("c", "Check C", func(ctx context.Context) (Status, string, error) {
		atomic.AddInt32(&ran, 1)
		return StatusPassed, "ok", nil
	})

	verdict := agg.Run(context.Background())
	if verdict.OK {
		t.Fatal("a failed check must make the verdict not ready")
	}
	if len(verdict.Checks) != 3 {
		t.Fatalf("the list must stay complete, got %d checks", len(verdict.Checks))
	}
	if got := atomic.LoadInt32(&ran); got != 2 {
		t.Fatalf("expected the other checks to run, got %d", got)
	}
	if verdict.Checks[1].Status != StatusFailed || verdict.Checks[1].Message == "" {
		t.Fatalf("expected descriptive failure, got %+v", verdict.Checks[1])
	}
}

func TestUnauthorizedSynthesizesWarningsWithoutRunningChecks(t *testing.T) {
	var ran int32
	agg := New(func() bool { return false }, zerolog.Nop())
	agg.Register("a", "Check A", func(ctx context.Context) (Status, string, error) {
		atomic.AddInt32(&ran, 1)
		return StatusPassed, "ok", nil
	})
	agg.Register("b", "Check B", func(ctx context.Context) (Status, string, error) {
		atomic.AddInt32(&ran, 1)
		return StatusPassed, "ok", nil
	})

	verdict := agg.Run(context.Background())
	if verdict.OK {
		t.Fatal("auth-pending must not read as ready")
	}
	for _, check := range verdict.Checks {
		if check.Status != StatusWarning || check.Message != "auth-pending" {
			t.Fatalf("expected synthesized auth-pending warning, got %+v", check)
		}
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("no remote call may be attempted while unauthorized")
	}
}

func TestChecksRunConcurrently(t *testing.T) {
	gate := make(chan struct{})
	slow := func(ctx context.Context) (Status, string, error) {
		<-gate
		return StatusPassed, "ok", nil
	}

	agg := New(nil, zerolog.Nop())
	agg.Register("a", "Check A", slow)
	agg.Register("b", "Check B", slow)

	done := make(chan Verdict, 1)
	go func() { done <- agg.Run(context.Background()) }()

	// Both checks must be parked on the gate at the same time; releasing it
	// once lets both finish.
	time.Sleep(20 * time.Millisecond)
	close(gate)

	select {
	case verdict := <-done:
		if !verdict.OK {
			t.Fatalf("expected ready verdict, got %+v", verdict)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("checks did not run concurrently")
	}
}

func TestCountCheckDomainRule(t *testing.T) {
	check := CountCheck("widgets", func(ctx context.Context) (int, error) { return 3, nil })
	status, msg, err := check(context.Background())
	if err != nil || status != StatusPassed || msg != "3 widgets" {
		t.Fatalf("got %v %q %v", status, msg, err)
	}

	check = CountCheck("widgets", func(ctx context.Context) (int, error) { return 0, nil })
	status, _, err = check(context.Background())
	if err != nil || status != StatusWarning {
		t.Fatalf("zero count must warn, got %v %v", status, err)
	}

	check = CountCheck("widgets", func(ctx context.Context) (int, error) { return 0, errors.New("boom") })
	status, _, err = check(context.Background())
	if err == nil || status != StatusFailed {
		t.Fatalf("remote failure must fail the check, got %v %v", status, err)
	}
}
