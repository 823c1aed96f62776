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

// Kind discriminates the meter variants. Registries compare the kind
// found in their map against the kind requested to detect collisions
// without resorting to type assertions on concrete implementations.
type Kind uint8

// Meter kinds.
const (
	KindUnknown Kind = iota
	KindCounter
	KindGauge
	KindTimer
	KindDistSummary
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindTimer:
		return "timer"
	case KindDistSummary:
		return "distribution-summary"
	default:
		return "unknown"
	}
}

// Measurement is one sample reported by a meter: a sub-id, a wall-clock
// timestamp in epoch milliseconds and a value.
type Measurement struct {
	Id        *Id
	Timestamp int64
	Value     float64
}

// Meter is a stateful accumulator registered under an Id.
type Meter interface {
	// MeterId returns the identifier the meter was created with.
	MeterId() *Id
	// Kind returns the variant discriminant.
	Kind() Kind
	// Measure returns a point-in-time set of samples, possibly empty.
	Measure() []Measurement
	// HasExpired reports whether the registry may drop this meter.
	HasExpired() bool
}

// Counter measures a monotonically increasing value.
type Counter interface {
	Meter
	Increment()
	Add(delta float64)
	Count() float64
}

// Gauge holds an instantaneous value that can be set arbitrarily.
type Gauge interface {
	Meter
	Set(value float64)
	Value() float64
}

// Timer accumulates a count of events and their total duration.
type Timer interface {
	Meter
	Record(d time.Duration)
	// Time measures fn with the registry clock and records the elapsed
	// duration.
	Time(fn func())
	Count() int64
	TotalTime() time.Duration
}

// DistributionSummary tracks the count and total of recorded amounts,
// e.g. request payload sizes.
type DistributionSummary interface {
	Meter
	Record(amount int64)
	Count() int64
	TotalAmount() int64
}

// Registry is the lookup and create authority mapping Ids to Meters.
// Implementations must be safe for concurrent use; meter creation is
// lazy with first-writer-wins semantics on races.
type Registry interface {
	// CreateId builds an Id, returning NoopId when the input is invalid
	// so downstream lookups degrade to no-op meters.
	CreateId(name string, tags ...Tag) *Id

	Counter(id *Id) Counter
	Gauge(id *Id) Gauge
	Timer(id *Id) Timer
	DistributionSummary(id *Id) DistributionSummary

	// Register merges an externally constructed meter; multiple
	// registrations under equal ids are summed when measured.
	Register(m Meter)
	// Get returns the meter currently held for id, or nil.
	Get(id *Id) Meter
	// Each visits a snapshot of the currently held meters. Pending gauge
	// polls are flushed first so iteration sees fresh gauge values.
	Each(fn func(Meter))
	// RemoveExpired sweeps meters whose HasExpired reports true.
	RemoveExpired()
	// Clock returns the time source used for measurements.
	Clock() Clock
}

// StatisticKey tags the individual samples a meter reports, e.g.
// statistic=count and statistic=totalTime for a timer.
const StatisticKey = "statistic"
