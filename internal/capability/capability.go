// Package capability discovers whether the remote service currently exposes
// a named optional route, from its self-description document. When the
// document cannot be fetched the answer is Unknown, never a guessed absence:
// callers keep prior behavior instead of switching to a degraded path early.
package capability

import (
	"context"

	"github.com/rs/zerolog"

	"stratlab-sync/internal/client"
	"stratlab-sync/internal/probe"
)

// Presence is the tri-state answer to "does the service expose route X?".
type Presence string

const (
	Present Presence = "present"
	Absent  Presence = "absent"
	Unknown Presence = "unknown"
)

// Answer carries a Presence together with the provenance of the document it
// was derived from, so callers can warn on last-known-good data.
type Answer struct {
	Presence Presence
	Source   probe.Source
}

// Detector answers capability questions via a throttled probe over the
// service's self-description document.
type Detector struct {
	probe *probe.Probe[client.ServiceSpec]
}

// specFetcher is the slice of the client the detector needs.
type specFetcher interface {
	ServiceSpec(ctx context.Context) (*client.ServiceSpec, error)
}

// New creates a Detector. opts supplies the TTL, throttle, gates and
// fallback-store wiring shared by all probes.
func New(api specFetcher, opts probe.Options, logger zerolog.Logger) *Detector {
	if opts.StoreKey == "" && opts.Store != nil {
		opts.StoreKey = "capability/service_spec"
	}
	fetch := func(ctx context.Context) (client.ServiceSpec, error) {
		spec, err := api.ServiceSpec(ctx)
		if err != nil {
			return client.ServiceSpec{}, err
		}
		return *spec, nil
	}
	return &Detector{
		probe: probe.New("service_spec", fetch, opts, logger),
	}
}

// Has reports whether the service exposes route.
func (d *Detector) Has(ctx context.Context, route string) Presence {
	return d.HasDetail(ctx, route).Presence
}

// HasDetail reports presence along with document provenance.
func (d *Detector) HasDetail(ctx context.Context, route string) Answer {
	res := d.probe.Get(ctx)
	if !res.Known() {
		return Answer{Presence: Unknown, Source: probe.SourceUnknown}
	}
	if res.Value.HasPath(route) {
		return Answer{Presence: Present, Source: res.Source}
	}
	return Answer{Presence: Absent, Source: res.Source}
}

// Routes returns the currently known route list, if any.
func (d *Detector) Routes(ctx context.Context) ([]string, probe.Source) {
	res := d.probe.Get(ctx)
	if !res.Known() {
		return nil, probe.SourceUnknown
	}
	return res.Value.Routes(), res.Source
}

// Reset clears the cached document and throttle state.
func (d *Detector) Reset() {
	d.probe.Reset()
}
