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

package meter

import "time"

// Shared no-op meters, returned on error and capacity-overflow paths.
// They accept writes, report zero and never expire.
var (
	NoopCounter             Counter             = noopCounter{}
	NoopGauge               Gauge               = noopGauge{}
	NoopTimer               Timer               = noopTimer{}
	NoopDistributionSummary DistributionSummary = noopDistSummary{}
)

type noopMeter struct{}

func (noopMeter) MeterId() *Id          { return NoopId }
func (noopMeter) Measure() []Measurement { return nil }
func (noopMeter) HasExpired() bool      { return false }

type noopCounter struct{ noopMeter }

func (noopCounter) Kind() Kind      { return KindCounter }
func (noopCounter) Increment()      {}
func (noopCounter) Add(float64)     {}
func (noopCounter) Count() float64  { return 0 }

type noopGauge struct{ noopMeter }

func (noopGauge) Kind() Kind     { return KindGauge }
func (noopGauge) Set(float64)    {}
func (noopGauge) Value() float64 { return 0 }

type noopTimer struct{ noopMeter }

func (noopTimer) Kind() Kind                { return KindTimer }
func (noopTimer) Record(time.Duration)      {}
func (noopTimer) Time(fn func())            { fn() }
func (noopTimer) Count() int64              { return 0 }
func (noopTimer) TotalTime() time.Duration  { return 0 }

type noopDistSummary struct{ noopMeter }

func (noopDistSummary) Kind() Kind         { return KindDistSummary }
func (noopDistSummary) Record(int64)       {}
func (noopDistSummary) Count() int64       { return 0 }
func (noopDistSummary) TotalAmount() int64 { return 0 }

// NoopFor returns the shared no-op meter of the given kind.
func NoopFor(kind Kind) Meter {
	switch kind {
	case KindCounter:
		return NoopCounter
	case KindGauge:
		return NoopGauge
	case KindTimer:
		return NoopTimer
	case KindDistSummary:
		return NoopDistributionSummary
	default:
		return noopCounter{}
	}
}

// NoopRegistry is a disabled registry: every lookup resolves to a shared
// no-op meter and nothing is retained.
type NoopRegistry struct {
	clock Clock
}

// NewNoopRegistry returns a disabled registry.
func NewNoopRegistry() *NoopRegistry {
	return &NoopRegistry{clock: SystemClock()}
}

// CreateId always returns the sentinel NoopId.
func (*NoopRegistry) CreateId(string, ...Tag) *Id { return NoopId }

// Counter returns the shared no-op counter.
func (*NoopRegistry) Counter(*Id) Counter { return NoopCounter }

// Gauge returns the shared no-op gauge.
func (*NoopRegistry) Gauge(*Id) Gauge { return NoopGauge }

// Timer returns the shared no-op timer.
func (*NoopRegistry) Timer(*Id) Timer { return NoopTimer }

// DistributionSummary returns the shared no-op summary.
func (*NoopRegistry) DistributionSummary(*Id) DistributionSummary {
	return NoopDistributionSummary
}

// Register drops the meter.
func (*NoopRegistry) Register(Meter) {}

// Get always misses.
func (*NoopRegistry) Get(*Id) Meter { return nil }

// Each visits nothing.
func (*NoopRegistry) Each(func(Meter)) {}

// RemoveExpired does nothing.
func (*NoopRegistry) RemoveExpired() {}

// Clock returns the system clock.
func (r *NoopRegistry) Clock() Clock { return r.clock }
