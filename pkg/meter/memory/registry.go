// Licensed to Apache Software Foundation (ASF) under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Apache Software Foundation (ASF) licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package memory

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/apache/skywalking-meter/pkg/logger"
	"github.com/apache/skywalking-meter/pkg/meter"
)

var _ meter.Registry = (*Registry)(nil)

// Registry is the default in-memory meter registry. Lookups are
// lock-light: the hot read path is a concurrent map load, and creation
// races are resolved with a conditional insert where the first writer
// wins and the loser's instance is discarded before it has observable
// side effects.
type Registry struct {
	log          *logger.Logger
	clock        meter.Clock
	poller       *Poller
	meters       sync.Map // id map key -> meter.Meter
	state        sync.Map // id map key -> any
	registered   sync.Map // id map key -> *aggregateMeter
	size         atomic.Int64
	maxNumMeters int64
	propagate    bool
	overflowed   atomic.Bool
}

// NewRegistry creates a registry using the given settings and time
// source. The raw clock also drives the gauge poller, so a *clock.Mock
// makes both measurements and polling deterministic in tests.
func NewRegistry(cfg *meter.Config, c clock.Clock) *Registry {
	r := &Registry{
		log:          logger.GetLogger("meter", "memory"),
		clock:        meter.WrapClock(c),
		maxNumMeters: int64(cfg.MaxNumMeters),
		propagate:    cfg.PropagateWarnings,
	}
	r.poller = newPoller(r.log, c, cfg.GaugePollingFrequency)
	return r
}

// NewDefaultRegistry creates a registry with default settings on the
// system clock.
func NewDefaultRegistry() *Registry {
	return NewRegistry(meter.NewConfig(), clock.New())
}

// Poller returns the background gauge poller as a run.Service. It only
// needs to be served when polled gauges are used; Each flushes pending
// polls regardless.
func (r *Registry) Poller() *Poller {
	return r.poller
}

// Clock returns the registry's time source.
func (r *Registry) Clock() meter.Clock {
	return r.clock
}

// CreateId builds an Id; invalid input logs and degrades to NoopId so
// downstream lookups short-circuit to no-op meters.
func (r *Registry) CreateId(name string, tags ...meter.Tag) *meter.Id {
	id, err := meter.NewId(name, tags...)
	if err != nil {
		r.log.Warn().Err(err).Str("name", name).Msg("invalid meter id, using noop")
		return meter.NoopId
	}
	return id
}

// Counter returns the counter registered under id, creating it on first
// lookup.
func (r *Registry) Counter(id *meter.Id) meter.Counter {
	m := r.getOrCreate(id, meter.KindCounter, func() meter.Meter {
		return NewCounter(id, r.clock)
	})
	if c, ok := m.(meter.Counter); ok {
		return c
	}
	return meter.NoopCounter
}

// Gauge returns the gauge registered under id, creating it on first
// lookup.
func (r *Registry) Gauge(id *meter.Id) meter.Gauge {
	m := r.getOrCreate(id, meter.KindGauge, func() meter.Meter {
		return NewGauge(id, r.clock)
	})
	if g, ok := m.(meter.Gauge); ok {
		return g
	}
	return meter.NoopGauge
}

// Timer returns the timer registered under id, creating it on first
// lookup.
func (r *Registry) Timer(id *meter.Id) meter.Timer {
	m := r.getOrCreate(id, meter.KindTimer, func() meter.Meter {
		return NewTimer(id, r.clock)
	})
	if t, ok := m.(meter.Timer); ok {
		return t
	}
	return meter.NoopTimer
}

// DistributionSummary returns the summary registered under id, creating
// it on first lookup.
func (r *Registry) DistributionSummary(id *meter.Id) meter.DistributionSummary {
	m := r.getOrCreate(id, meter.KindDistSummary, func() meter.Meter {
		return NewDistributionSummary(id, r.clock)
	})
	if d, ok := m.(meter.DistributionSummary); ok {
		return d
	}
	return meter.NoopDistributionSummary
}

// PollGauge registers a passively sampled gauge. The background poller
// invokes sample on every tick while alive reports true; once the
// target is gone the gauge is removed from the registry and the task
// unregisters itself.
func (r *Registry) PollGauge(id *meter.Id, alive func() bool, sample func() float64) {
	m := r.getOrCreate(id, meter.KindGauge, func() meter.Meter {
		return &Gauge{id: id, clock: r.clock, alive: alive}
	})
	g, ok := m.(meter.Gauge)
	if !ok {
		return
	}
	if g == meter.NoopGauge {
		return
	}
	key := id.MapKey()
	r.poller.Schedule(Task{
		Alive: alive,
		Poll:  func() { g.Set(sample()) },
		OnDrop: func() {
			if _, loaded := r.meters.LoadAndDelete(key); loaded {
				r.size.Add(-1)
			}
		},
	})
}

func (r *Registry) getOrCreate(id *meter.Id, kind meter.Kind, create func() meter.Meter) meter.Meter {
	if id == nil || id == meter.NoopId {
		return meter.NoopFor(kind)
	}
	key := id.MapKey()
	if v, ok := r.meters.Load(key); ok {
		return r.checkKind(id, kind, v.(meter.Meter))
	}
	if !r.belowBound(id) {
		return meter.NoopFor(kind)
	}
	created := create()
	actual, loaded := r.meters.LoadOrStore(key, created)
	if !loaded {
		r.size.Add(1)
		return created
	}
	// lost the creation race, the winner's instance is canonical
	return r.checkKind(id, kind, actual.(meter.Meter))
}

// belowBound checks the configured meter-count cap. Beyond the cap new
// ids resolve to no-op meters, a safety valve against cardinality
// explosions; this is logged once per overflow episode.
func (r *Registry) belowBound(id *meter.Id) bool {
	if r.size.Load() < r.maxNumMeters {
		return true
	}
	if r.overflowed.CompareAndSwap(false, true) {
		r.log.Warn().Str("id", id.String()).Int64("max", r.maxNumMeters).
			Msg("max number of meters reached, new ids resolve to no-op meters")
	}
	return false
}

func (r *Registry) checkKind(id *meter.Id, want meter.Kind, found meter.Meter) meter.Meter {
	if found.Kind() == want {
		return found
	}
	err := errors.Errorf("meter type collision for id %s: requested %s, found %s",
		id, want, found.Kind())
	if r.propagate {
		panic(err)
	}
	r.log.Warn().Err(err).Msg("returning no-op meter")
	return meter.NoopFor(want)
}

// Register merges an externally constructed meter. Multiple
// registrations under equal ids are summed when measured.
func (r *Registry) Register(m meter.Meter) {
	if m == nil || m.MeterId() == nil || m.MeterId() == meter.NoopId {
		return
	}
	id := m.MeterId()
	key := id.MapKey()
	if v, ok := r.registered.Load(key); ok {
		v.(*aggregateMeter).add(m)
		return
	}
	if !r.belowBound(id) {
		return
	}
	actual, loaded := r.registered.LoadOrStore(key, newAggregateMeter(id, m.Kind()))
	if !loaded {
		r.size.Add(1)
	}
	actual.(*aggregateMeter).add(m)
}

// State returns the auxiliary state object bound to id, creating it via
// the factory when absent. Collaborators use this to attach bookkeeping
// without widening the Meter interface.
func (r *Registry) State(id *meter.Id, create func() any) any {
	if id == nil || id == meter.NoopId {
		return nil
	}
	key := id.MapKey()
	if v, ok := r.state.Load(key); ok {
		return v
	}
	v, _ := r.state.LoadOrStore(key, create())
	return v
}

// Get returns the meter currently held for id, or nil.
func (r *Registry) Get(id *meter.Id) meter.Meter {
	if id == nil || id == meter.NoopId {
		return nil
	}
	if v, ok := r.meters.Load(id.MapKey()); ok {
		return v.(meter.Meter)
	}
	if v, ok := r.registered.Load(id.MapKey()); ok {
		return v.(*aggregateMeter)
	}
	return nil
}

// Each visits a snapshot of the currently held meters. Pending gauge
// polls are flushed first so iteration observes fresh gauge values.
func (r *Registry) Each(fn func(meter.Meter)) {
	r.poller.PollNow()
	r.meters.Range(func(_, v any) bool {
		fn(v.(meter.Meter))
		return true
	})
	r.registered.Range(func(_, v any) bool {
		fn(v.(*aggregateMeter))
		return true
	})
}

// RemoveExpired sweeps meters whose HasExpired reports true. It is
// intended to be invoked periodically by the embedding application.
func (r *Registry) RemoveExpired() {
	removed := false
	r.meters.Range(func(k, v any) bool {
		if v.(meter.Meter).HasExpired() {
			if _, loaded := r.meters.LoadAndDelete(k); loaded {
				r.state.Delete(k)
				r.size.Add(-1)
				removed = true
			}
		}
		return true
	})
	r.registered.Range(func(k, v any) bool {
		if v.(*aggregateMeter).HasExpired() {
			if _, loaded := r.registered.LoadAndDelete(k); loaded {
				r.size.Add(-1)
				removed = true
			}
		}
		return true
	})
	if removed && r.size.Load() < r.maxNumMeters {
		r.overflowed.Store(false)
	}
}

// Size returns the number of distinct meters currently held.
func (r *Registry) Size() int {
	return int(r.size.Load())
}
