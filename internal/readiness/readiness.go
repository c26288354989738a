// Package readiness aggregates independent asynchronous checks into one
// actionable verdict. The verdict gates higher-risk actions, so it is
// all-or-nothing: a single warning or failure anywhere makes the whole
// readiness false.
package readiness

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Status is the outcome of a single readiness check.
type Status string

const (
	// StatusPassed means the check's domain rule is satisfied.
	StatusPassed Status = "passed"
	// StatusWarning means the state is known but insufficient. Not an error.
	StatusWarning Status = "warning"
	// StatusFailed means the check could not reach its authority.
	StatusFailed Status = "failed"
)

// Check is one itemized readiness result. Checks are immutable once
// produced; every aggregation run yields a wholly new list.
type Check struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Verdict is the aggregated readiness judgment. Derived, never persisted.
type Verdict struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

// CheckFunc runs one check's domain rule. A returned error marks the check
// failed without affecting any other check.
type CheckFunc func(ctx context.Context) (Status, string, error)

type registered struct {
	id    string
	label string
	run   CheckFunc
}

// Aggregator runs a fixed set of independent checks concurrently and folds
// them into a Verdict. It is gated on an externally supplied authorization
// signal: while unauthorized, checks are synthesized as warnings without any
// remote call.
type Aggregator struct {
	checks       []registered
	isAuthorized func() bool
	log          zerolog.Logger
}

// New creates an Aggregator. isAuthorized may be nil, meaning authorized.
func New(isAuthorized func() bool, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		isAuthorized: isAuthorized,
		log:          logger.With().Str("component", "readiness").Logger(),
	}
}

// Register adds a check. Output order follows registration order.
func (a *Aggregator) Register(id, label string, run CheckFunc) {
	a.checks = append(a.checks, registered{id: id, label: label, run: run})
}

// Run executes all checks concurrently and returns the aggregated verdict.
// Partial failure of one check never aborts the others, and the returned
// list is always complete and well formed.
func (a *Aggregator) Run(ctx context.Context) Verdict {
	checks := make([]Check, len(a.checks))

	if a.isAuthorized != nil && !a.isAuthorized() {
		for i, reg := range a.checks {
			checks[i] = Check{
				ID:      reg.id,
				Label:   reg.label,
				Status:  StatusWarning,
				Message: "auth-pending",
			}
		}
		return fold(checks)
	}

	var wg sync.WaitGroup
	for i, reg := range a.checks {
		wg.Add(1)
		go func(i int, reg registered) {
			defer wg.Done()
			checks[i] = a.runOne(ctx, reg)
		}(i, reg)
	}
	wg.Wait()

	verdict := fold(checks)
	a.log.Debug().Bool("ok", verdict.OK).Int("checks", len(checks)).Msg("Readiness computed")
	return verdict
}

func (a *Aggregator) runOne(ctx context.Context, reg registered) (out Check) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Str("check", reg.id).Interface("panic", r).Msg("Readiness check panicked")
			out = Check{
				ID:      reg.id,
				Label:   reg.label,
				Status:  StatusFailed,
				Message: fmt.Sprintf("check panicked: %v", r),
			}
		}
	}()

	status, message, err := reg.run(ctx)
	if err != nil {
		a.log.Warn().Err(err).Str("check", reg.id).Msg("Readiness check failed")
		return Check{
			ID:      reg.id,
			Label:   reg.label,
			Status:  StatusFailed,
			Message: err.Error(),
		}
	}
	return Check{ID: reg.id, Label: reg.label, Status: status, Message: message}
}

func fold(checks []Check) Verdict {
	ok := true
	for _, c := range checks {
		if c.Status != StatusPassed {
			ok = false
			break
		}
	}
	return Verdict{OK: ok, Checks: checks}
}

// CountCheck builds a CheckFunc over a count endpoint: a positive count
// passes, zero is a warning ("known but insufficient").
func CountCheck(noun string, count func(ctx context.Context) (int, error)) CheckFunc {
	return func(ctx context.Context) (Status, string, error) {
		n, err := count(ctx)
		if err != nil {
			return StatusFailed, "", err
		}
		if n > 0 {
			return StatusPassed, fmt.Sprintf("%d %s", n, noun), nil
		}
		return StatusWarning, fmt.Sprintf("no %s", noun), nil
	}
}
