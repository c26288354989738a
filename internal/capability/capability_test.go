package capability

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stratlab-sync/internal/client"
	"stratlab-sync/internal/probe"
)

type fakeSpec struct {
	mu    sync.Mutex
	calls int
	spec  *client.ServiceSpec
	err   error
}

func (f *fakeSpec) ServiceSpec(ctx context.Context) (*client.ServiceSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.spec, nil
}

func specWith(routes ...string) *client.ServiceSpec {
	paths := make(map[string]json.RawMessage, len(routes))
	for _, r := range routes {
		paths[r] = json.RawMessage(`{}`)
	}
	return &client.ServiceSpec{Paths: paths}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newDetector(api *fakeSpec, clock *manualClock) *Detector {
	return New(api, probe.Options{
		TTL:         time.Minute,
		MinInterval: 10 * time.Second,
		Clock:       clock.Now,
	}, zerolog.Nop())
}

func TestPresentAndAbsentFromFetchedDocument(t *testing.T) {
	api := &fakeSpec{spec: specWith("/api/backtests", "/api/backtests/compare")}
	d := newDetector(api, &manualClock{now: time.Unix(1700000000, 0)})

	if got := d.Has(context.Background(), "/api/backtests/compare"); got != Present {
		t.Fatalf("expected present, got %v", got)
	}
	if got := d.Has(context.Background(), "/api/export"); got != Absent {
		t.Fatalf("expected absent, got %v", got)
	}
	if api.calls != 1 {
		t.Fatalf("expected one spec fetch for both answers, got %d", api.calls)
	}
}

func TestUnavailableDocumentYieldsUnknownNotAbsent(t *testing.T) {
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	api := &fakeSpec{err: errors.New("service down")}
	d := newDetector(api, clock)

	// Two failed probes inside one throttle window: unknown both times,
	// only one underlying remote attempt.
	if got := d.Has(context.Background(), "/api/backtests"); got != Unknown {
		t.Fatalf("expected unknown on first failure, got %v", got)
	}
	clock.Advance(time.Second)
	if got := d.Has(context.Background(), "/api/backtests"); got != Unknown {
		t.Fatalf("expected unknown on second failure, got %v", got)
	}
	if api.calls != 1 {
		t.Fatalf("expected one remote attempt inside the throttle window, got %d", api.calls)
	}
}

func TestStaleDocumentStillAnswersWithLocalProvenance(t *testing.T) {
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	api := &fakeSpec{spec: specWith("/api/backtests")}
	d := newDetector(api, clock)

	if got := d.Has(context.Background(), "/api/backtests"); got != Present {
		t.Fatalf("expected present, got %v", got)
	}

	// Service goes down, TTL and throttle window elapse.
	api.mu.Lock()
	api.err = errors.New("service down")
	api.mu.Unlock()
	clock.Advance(2 * time.Minute)

	answer := d.HasDetail(context.Background(), "/api/backtests")
	if answer.Presence != Present {
		t.Fatalf("expected last-known-good present, got %v", answer.Presence)
	}
	if answer.Source != probe.SourceLocal {
		t.Fatalf("degraded-mode answer must carry local provenance, got %v", answer.Source)
	}
}

func TestResetForcesRefetch(t *testing.T) {
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	api := &fakeSpec{spec: specWith("/api/backtests")}
	d := newDetector(api, clock)

	d.Has(context.Background(), "/api/backtests")
	d.Reset()
	d.Has(context.Background(), "/api/backtests")

	if api.calls != 2 {
		t.Fatalf("expected refetch after reset, got %d calls", api.calls)
	}
}
