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

package composite

import (
	"sync/atomic"
	"time"

	"github.com/apache/skywalking-meter/pkg/meter"
)

// resolved pairs a bound meter with the membership version it was
// resolved at. The pair is published through one atomic pointer so a
// single operation always executes against one consistent resolution,
// never a torn mix of two.
type resolved[M meter.Meter] struct {
	version uint64
	m       M
}

// swap is the versioned indirection core shared by all swap handles.
// When the cached version matches the owner's current version, get is a
// plain pointer load; otherwise it pays one re-resolution. Two racing
// re-resolutions may both look up the meter, which is benign: both
// observe the same canonical instance for the id.
type swap[M meter.Meter] struct {
	owner   *Registry
	id      *meter.Id
	resolve func(*meter.Id) M
	cached  atomic.Pointer[resolved[M]]
}

func (s *swap[M]) get() M {
	version := s.owner.Version()
	if c := s.cached.Load(); c != nil && c.version == version {
		return c.m
	}
	m := s.resolve(s.id)
	s.cached.Store(&resolved[M]{version: version, m: m})
	return m
}

func (s *swap[M]) MeterId() *meter.Id {
	return s.id
}

func (s *swap[M]) Measure() []meter.Measurement {
	return s.get().Measure()
}

func (s *swap[M]) HasExpired() bool {
	return s.get().HasExpired()
}

type swapCounter struct {
	swap[meter.Counter]
}

func newSwapCounter(owner *Registry, id *meter.Id) *swapCounter {
	c := &swapCounter{}
	c.owner = owner
	c.id = id
	c.resolve = owner.resolveCounter
	return c
}

func (c *swapCounter) Kind() meter.Kind { return meter.KindCounter }
func (c *swapCounter) Increment()       { c.get().Increment() }
func (c *swapCounter) Add(delta float64) {
	c.get().Add(delta)
}
func (c *swapCounter) Count() float64 { return c.get().Count() }

type swapGauge struct {
	swap[meter.Gauge]
}

func newSwapGauge(owner *Registry, id *meter.Id) *swapGauge {
	g := &swapGauge{}
	g.owner = owner
	g.id = id
	g.resolve = owner.resolveGauge
	return g
}

func (g *swapGauge) Kind() meter.Kind { return meter.KindGauge }
func (g *swapGauge) Set(value float64) {
	g.get().Set(value)
}
func (g *swapGauge) Value() float64 { return g.get().Value() }

type swapTimer struct {
	swap[meter.Timer]
}

func newSwapTimer(owner *Registry, id *meter.Id) *swapTimer {
	t := &swapTimer{}
	t.owner = owner
	t.id = id
	t.resolve = owner.resolveTimer
	return t
}

func (t *swapTimer) Kind() meter.Kind { return meter.KindTimer }
func (t *swapTimer) Record(d time.Duration) {
	t.get().Record(d)
}
func (t *swapTimer) Time(fn func())           { t.get().Time(fn) }
func (t *swapTimer) Count() int64             { return t.get().Count() }
func (t *swapTimer) TotalTime() time.Duration { return t.get().TotalTime() }

type swapDistributionSummary struct {
	swap[meter.DistributionSummary]
}

func newSwapDistributionSummary(owner *Registry, id *meter.Id) *swapDistributionSummary {
	d := &swapDistributionSummary{}
	d.owner = owner
	d.id = id
	d.resolve = owner.resolveDistributionSummary
	return d
}

func (d *swapDistributionSummary) Kind() meter.Kind { return meter.KindDistSummary }
func (d *swapDistributionSummary) Record(amount int64) {
	d.get().Record(amount)
}
func (d *swapDistributionSummary) Count() int64       { return d.get().Count() }
func (d *swapDistributionSummary) TotalAmount() int64 { return d.get().TotalAmount() }
