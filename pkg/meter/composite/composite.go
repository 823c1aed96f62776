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

// Package composite provides a registry that fans out to a dynamic set
// of child registries behind the meter.Registry interface. Meter
// handles it returns are versioned swap wrappers that transparently
// re-resolve after membership changes, so long-lived handles follow the
// current composition without explicit re-lookup.
package composite

import (
	"sync"
	"sync/atomic"

	"github.com/apache/skywalking-meter/pkg/logger"
	"github.com/apache/skywalking-meter/pkg/meter"
)

var _ meter.Registry = (*Registry)(nil)

// registrySet is the immutable membership snapshot: the child array is
// replaced wholesale on every change, never mutated in place, so
// readers can use it without locks. version increases monotonically
// with each effective change.
type registrySet struct {
	registries []meter.Registry
	version    uint64
}

// Registry fans out meter operations to its child registries. Readers
// obtain the child array and version from a single atomic holder and
// never take the membership lock; the lock only guards Add and Remove.
type Registry struct {
	log   *logger.Logger
	clock meter.Clock
	mu    sync.Mutex
	set   atomic.Pointer[registrySet]
}

// NewRegistry creates a composite with the given initial children.
func NewRegistry(clock meter.Clock, children ...meter.Registry) *Registry {
	r := &Registry{
		log:   logger.GetLogger("meter", "composite"),
		clock: clock,
	}
	init := &registrySet{registries: append([]meter.Registry(nil), children...)}
	r.set.Store(init)
	return r
}

// Add appends a child registry. Adding a registry already present (by
// reference) is a no-op and does not bump the version, so outstanding
// swap handles are not needlessly invalidated.
func (r *Registry) Add(child meter.Registry) {
	if child == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.set.Load()
	for _, existing := range cur.registries {
		if existing == child {
			return
		}
	}
	next := make([]meter.Registry, 0, len(cur.registries)+1)
	next = append(next, cur.registries...)
	next = append(next, child)
	r.set.Store(&registrySet{registries: next, version: cur.version + 1})
}

// Remove drops a child registry by reference. Removing an absent
// registry is a no-op and does not bump the version.
func (r *Registry) Remove(child meter.Registry) {
	if child == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.set.Load()
	idx := -1
	for i, existing := range cur.registries {
		if existing == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	next := make([]meter.Registry, 0, len(cur.registries)-1)
	next = append(next, cur.registries[:idx]...)
	next = append(next, cur.registries[idx+1:]...)
	r.set.Store(&registrySet{registries: next, version: cur.version + 1})
}

// Version returns the current membership version.
func (r *Registry) Version() uint64 {
	return r.set.Load().version
}

// Clock returns the composite's time source.
func (r *Registry) Clock() meter.Clock {
	return r.clock
}

// CreateId builds an Id; invalid input degrades to NoopId.
func (r *Registry) CreateId(name string, tags ...meter.Tag) *meter.Id {
	id, err := meter.NewId(name, tags...)
	if err != nil {
		r.log.Warn().Err(err).Str("name", name).Msg("invalid meter id, using noop")
		return meter.NoopId
	}
	return id
}

// Counter returns a swap handle that resolves against the current
// membership on every use.
func (r *Registry) Counter(id *meter.Id) meter.Counter {
	if id == nil || id == meter.NoopId {
		return meter.NoopCounter
	}
	return newSwapCounter(r, id)
}

// Gauge returns a swap handle tracking the current membership.
func (r *Registry) Gauge(id *meter.Id) meter.Gauge {
	if id == nil || id == meter.NoopId {
		return meter.NoopGauge
	}
	return newSwapGauge(r, id)
}

// Timer returns a swap handle tracking the current membership.
func (r *Registry) Timer(id *meter.Id) meter.Timer {
	if id == nil || id == meter.NoopId {
		return meter.NoopTimer
	}
	return newSwapTimer(r, id)
}

// DistributionSummary returns a swap handle tracking the current
// membership.
func (r *Registry) DistributionSummary(id *meter.Id) meter.DistributionSummary {
	if id == nil || id == meter.NoopId {
		return meter.NoopDistributionSummary
	}
	return newSwapDistributionSummary(r, id)
}

// resolveCounter binds a counter against one membership snapshot:
// direct delegation for a single child, a fan-out meter for several,
// the shared no-op for none.
func (r *Registry) resolveCounter(id *meter.Id) meter.Counter {
	set := r.set.Load()
	switch len(set.registries) {
	case 0:
		return meter.NoopCounter
	case 1:
		return set.registries[0].Counter(id)
	default:
		cs := make([]meter.Counter, len(set.registries))
		for i, child := range set.registries {
			cs[i] = child.Counter(id)
		}
		return &compositeCounter{id: id, counters: cs}
	}
}

func (r *Registry) resolveGauge(id *meter.Id) meter.Gauge {
	set := r.set.Load()
	switch len(set.registries) {
	case 0:
		return meter.NoopGauge
	case 1:
		return set.registries[0].Gauge(id)
	default:
		gs := make([]meter.Gauge, len(set.registries))
		for i, child := range set.registries {
			gs[i] = child.Gauge(id)
		}
		return &compositeGauge{id: id, gauges: gs}
	}
}

func (r *Registry) resolveTimer(id *meter.Id) meter.Timer {
	set := r.set.Load()
	switch len(set.registries) {
	case 0:
		return meter.NoopTimer
	case 1:
		return set.registries[0].Timer(id)
	default:
		ts := make([]meter.Timer, len(set.registries))
		for i, child := range set.registries {
			ts[i] = child.Timer(id)
		}
		return &compositeTimer{id: id, clock: r.clock, timers: ts}
	}
}

func (r *Registry) resolveDistributionSummary(id *meter.Id) meter.DistributionSummary {
	set := r.set.Load()
	switch len(set.registries) {
	case 0:
		return meter.NoopDistributionSummary
	case 1:
		return set.registries[0].DistributionSummary(id)
	default:
		ds := make([]meter.DistributionSummary, len(set.registries))
		for i, child := range set.registries {
			ds[i] = child.DistributionSummary(id)
		}
		return &compositeDistributionSummary{id: id, summaries: ds}
	}
}

// Register fans the meter out to every current child.
func (r *Registry) Register(m meter.Meter) {
	for _, child := range r.set.Load().registries {
		child.Register(m)
	}
}

// Get returns the meter held by the first child that knows the id.
func (r *Registry) Get(id *meter.Id) meter.Meter {
	for _, child := range r.set.Load().registries {
		if m := child.Get(id); m != nil {
			return m
		}
	}
	return nil
}

// Each visits the meters of every current child.
func (r *Registry) Each(fn func(meter.Meter)) {
	for _, child := range r.set.Load().registries {
		child.Each(fn)
	}
}

// RemoveExpired sweeps every current child.
func (r *Registry) RemoveExpired() {
	for _, child := range r.set.Load().registries {
		child.RemoveExpired()
	}
}
