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
	"sync/atomic"
	"time"

	"github.com/apache/skywalking-meter/pkg/meter"
)

// Counter is the in-memory implementation of meter.Counter.
type Counter struct {
	id    *meter.Id
	clock meter.Clock
	count atomicFloat64
}

// NewCounter creates a counter for the given id.
func NewCounter(id *meter.Id, clock meter.Clock) *Counter {
	return &Counter{id: id, clock: clock}
}

// MeterId returns the counter's id.
func (c *Counter) MeterId() *meter.Id { return c.id }

// Kind returns KindCounter.
func (c *Counter) Kind() meter.Kind { return meter.KindCounter }

// Increment adds one.
func (c *Counter) Increment() { c.Add(1) }

// Add accumulates delta; counters are monotonic so non-positive deltas
// are dropped.
func (c *Counter) Add(delta float64) {
	if delta > 0 {
		c.count.Add(delta)
	}
}

// Count returns the accumulated value.
func (c *Counter) Count() float64 { return c.count.Load() }

// Measure reports a single count sample.
func (c *Counter) Measure() []meter.Measurement {
	return []meter.Measurement{{
		Id:        c.id.WithTag(meter.StatisticKey, "count"),
		Timestamp: c.clock.WallTime(),
		Value:     c.count.Load(),
	}}
}

// HasExpired always reports false; counters live for the registry's
// lifetime.
func (c *Counter) HasExpired() bool { return false }

// Gauge is the in-memory implementation of meter.Gauge. A gauge created
// through Registry.PollGauge carries a liveness check; once the check
// reports false the gauge is expired and eligible for removal.
type Gauge struct {
	id    *meter.Id
	clock meter.Clock
	alive func() bool
	value atomicFloat64
}

// NewGauge creates an active gauge for the given id.
func NewGauge(id *meter.Id, clock meter.Clock) *Gauge {
	return &Gauge{id: id, clock: clock}
}

// MeterId returns the gauge's id.
func (g *Gauge) MeterId() *meter.Id { return g.id }

// Kind returns KindGauge.
func (g *Gauge) Kind() meter.Kind { return meter.KindGauge }

// Set stores the instantaneous value.
func (g *Gauge) Set(value float64) { g.value.Store(value) }

// Value returns the last set value.
func (g *Gauge) Value() float64 { return g.value.Load() }

// Measure reports a single gauge sample.
func (g *Gauge) Measure() []meter.Measurement {
	return []meter.Measurement{{
		Id:        g.id.WithTag(meter.StatisticKey, "gauge"),
		Timestamp: g.clock.WallTime(),
		Value:     g.value.Load(),
	}}
}

// HasExpired reports whether the polled target is gone.
func (g *Gauge) HasExpired() bool {
	return g.alive != nil && !g.alive()
}

// Timer is the in-memory implementation of meter.Timer.
type Timer struct {
	id    *meter.Id
	clock meter.Clock
	count atomic.Int64
	total atomic.Int64
}

// NewTimer creates a timer for the given id.
func NewTimer(id *meter.Id, clock meter.Clock) *Timer {
	return &Timer{id: id, clock: clock}
}

// MeterId returns the timer's id.
func (t *Timer) MeterId() *meter.Id { return t.id }

// Kind returns KindTimer.
func (t *Timer) Kind() meter.Kind { return meter.KindTimer }

// Record accumulates one event of the given duration. Negative
// durations are dropped.
func (t *Timer) Record(d time.Duration) {
	if d < 0 {
		return
	}
	t.count.Add(1)
	t.total.Add(int64(d))
}

// Time measures fn with the monotonic clock and records the elapsed
// duration.
func (t *Timer) Time(fn func()) {
	start := t.clock.MonotonicTime()
	fn()
	t.Record(time.Duration(t.clock.MonotonicTime() - start))
}

// Count returns the number of recorded events.
func (t *Timer) Count() int64 { return t.count.Load() }

// TotalTime returns the accumulated duration.
func (t *Timer) TotalTime() time.Duration {
	return time.Duration(t.total.Load())
}

// Measure reports count and totalTime (seconds) samples.
func (t *Timer) Measure() []meter.Measurement {
	now := t.clock.WallTime()
	return []meter.Measurement{
		{
			Id:        t.id.WithTag(meter.StatisticKey, "count"),
			Timestamp: now,
			Value:     float64(t.count.Load()),
		},
		{
			Id:        t.id.WithTag(meter.StatisticKey, "totalTime"),
			Timestamp: now,
			Value:     time.Duration(t.total.Load()).Seconds(),
		},
	}
}

// HasExpired always reports false.
func (t *Timer) HasExpired() bool { return false }

// DistributionSummary is the in-memory implementation of
// meter.DistributionSummary.
type DistributionSummary struct {
	id    *meter.Id
	clock meter.Clock
	count atomic.Int64
	total atomic.Int64
}

// NewDistributionSummary creates a summary for the given id.
func NewDistributionSummary(id *meter.Id, clock meter.Clock) *DistributionSummary {
	return &DistributionSummary{id: id, clock: clock}
}

// MeterId returns the summary's id.
func (d *DistributionSummary) MeterId() *meter.Id { return d.id }

// Kind returns KindDistSummary.
func (d *DistributionSummary) Kind() meter.Kind { return meter.KindDistSummary }

// Record accumulates one amount. Negative amounts are dropped.
func (d *DistributionSummary) Record(amount int64) {
	if amount < 0 {
		return
	}
	d.count.Add(1)
	d.total.Add(amount)
}

// Count returns the number of recorded amounts.
func (d *DistributionSummary) Count() int64 { return d.count.Load() }

// TotalAmount returns the accumulated amount.
func (d *DistributionSummary) TotalAmount() int64 { return d.total.Load() }

// Measure reports count and totalAmount samples.
func (d *DistributionSummary) Measure() []meter.Measurement {
	now := d.clock.WallTime()
	return []meter.Measurement{
		{
			Id:        d.id.WithTag(meter.StatisticKey, "count"),
			Timestamp: now,
			Value:     float64(d.count.Load()),
		},
		{
			Id:        d.id.WithTag(meter.StatisticKey, "totalAmount"),
			Timestamp: now,
			Value:     float64(d.total.Load()),
		},
	}
}

// HasExpired always reports false.
func (d *DistributionSummary) HasExpired() bool { return false }
