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
	"time"

	"github.com/apache/skywalking-meter/pkg/meter"
)

// The fan-out meters write to every child but report the first child's
// value for scalar reads. Measure is different: it sums samples across
// children per sub-id, which is what aggregated reporting consumes.
// First-child-wins for scalars is deliberate, not a missing sum.

func measureAll(ms []meter.Meter) []meter.Measurement {
	groups := make([][]meter.Measurement, 0, len(ms))
	for _, m := range ms {
		groups = append(groups, m.Measure())
	}
	return meter.SumMeasurements(groups...)
}

func allExpired(ms []meter.Meter) bool {
	for _, m := range ms {
		if !m.HasExpired() {
			return false
		}
	}
	return true
}

type compositeCounter struct {
	id       *meter.Id
	counters []meter.Counter
}

func (c *compositeCounter) MeterId() *meter.Id { return c.id }
func (c *compositeCounter) Kind() meter.Kind   { return meter.KindCounter }

func (c *compositeCounter) Increment() {
	for _, child := range c.counters {
		child.Increment()
	}
}

func (c *compositeCounter) Add(delta float64) {
	for _, child := range c.counters {
		child.Add(delta)
	}
}

func (c *compositeCounter) Count() float64 {
	return c.counters[0].Count()
}

func (c *compositeCounter) Measure() []meter.Measurement {
	return measureAll(c.meters())
}

func (c *compositeCounter) HasExpired() bool {
	return allExpired(c.meters())
}

func (c *compositeCounter) meters() []meter.Meter {
	ms := make([]meter.Meter, len(c.counters))
	for i, child := range c.counters {
		ms[i] = child
	}
	return ms
}

type compositeGauge struct {
	id     *meter.Id
	gauges []meter.Gauge
}

func (g *compositeGauge) MeterId() *meter.Id { return g.id }
func (g *compositeGauge) Kind() meter.Kind   { return meter.KindGauge }

func (g *compositeGauge) Set(value float64) {
	for _, child := range g.gauges {
		child.Set(value)
	}
}

func (g *compositeGauge) Value() float64 {
	return g.gauges[0].Value()
}

func (g *compositeGauge) Measure() []meter.Measurement {
	return measureAll(g.meters())
}

func (g *compositeGauge) HasExpired() bool {
	return allExpired(g.meters())
}

func (g *compositeGauge) meters() []meter.Meter {
	ms := make([]meter.Meter, len(g.gauges))
	for i, child := range g.gauges {
		ms[i] = child
	}
	return ms
}

type compositeTimer struct {
	id     *meter.Id
	clock  meter.Clock
	timers []meter.Timer
}

func (t *compositeTimer) MeterId() *meter.Id { return t.id }
func (t *compositeTimer) Kind() meter.Kind   { return meter.KindTimer }

func (t *compositeTimer) Record(d time.Duration) {
	for _, child := range t.timers {
		child.Record(d)
	}
}

// Time measures fn once on the registry clock and records the elapsed
// duration in every child, rather than re-running fn per child.
func (t *compositeTimer) Time(fn func()) {
	start := t.clock.MonotonicTime()
	fn()
	t.Record(time.Duration(t.clock.MonotonicTime() - start))
}

func (t *compositeTimer) Count() int64 {
	return t.timers[0].Count()
}

func (t *compositeTimer) TotalTime() time.Duration {
	return t.timers[0].TotalTime()
}

func (t *compositeTimer) Measure() []meter.Measurement {
	return measureAll(t.meters())
}

func (t *compositeTimer) HasExpired() bool {
	return allExpired(t.meters())
}

func (t *compositeTimer) meters() []meter.Meter {
	ms := make([]meter.Meter, len(t.timers))
	for i, child := range t.timers {
		ms[i] = child
	}
	return ms
}

type compositeDistributionSummary struct {
	id        *meter.Id
	summaries []meter.DistributionSummary
}

func (d *compositeDistributionSummary) MeterId() *meter.Id { return d.id }
func (d *compositeDistributionSummary) Kind() meter.Kind   { return meter.KindDistSummary }

func (d *compositeDistributionSummary) Record(amount int64) {
	for _, child := range d.summaries {
		child.Record(amount)
	}
}

func (d *compositeDistributionSummary) Count() int64 {
	return d.summaries[0].Count()
}

func (d *compositeDistributionSummary) TotalAmount() int64 {
	return d.summaries[0].TotalAmount()
}

func (d *compositeDistributionSummary) Measure() []meter.Measurement {
	return measureAll(d.meters())
}

func (d *compositeDistributionSummary) HasExpired() bool {
	return allExpired(d.meters())
}

func (d *compositeDistributionSummary) meters() []meter.Meter {
	ms := make([]meter.Meter, len(d.summaries))
	for i, child := range d.summaries {
		ms[i] = child
	}
	return ms
}
