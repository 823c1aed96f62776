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

	"github.com/apache/skywalking-meter/pkg/meter"
)

// aggregateMeter holds externally registered meters sharing one id.
// Measuring it sums the children's samples per sub-id. It expires once
// every remaining child has expired; expired children are pruned on the
// expiry check.
type aggregateMeter struct {
	id     *meter.Id
	kind   meter.Kind
	mu     sync.Mutex
	meters []meter.Meter
}

func newAggregateMeter(id *meter.Id, kind meter.Kind) *aggregateMeter {
	return &aggregateMeter{id: id, kind: kind}
}

func (a *aggregateMeter) add(m meter.Meter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.meters = append(a.meters, m)
}

func (a *aggregateMeter) MeterId() *meter.Id { return a.id }

func (a *aggregateMeter) Kind() meter.Kind { return a.kind }

func (a *aggregateMeter) Measure() []meter.Measurement {
	a.mu.Lock()
	defer a.mu.Unlock()
	groups := make([][]meter.Measurement, 0, len(a.meters))
	for _, m := range a.meters {
		if m.HasExpired() {
			continue
		}
		groups = append(groups, m.Measure())
	}
	return meter.SumMeasurements(groups...)
}

func (a *aggregateMeter) HasExpired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	live := a.meters[:0]
	for _, m := range a.meters {
		if !m.HasExpired() {
			live = append(live, m)
		}
	}
	for i := len(live); i < len(a.meters); i++ {
		a.meters[i] = nil
	}
	a.meters = live
	return len(a.meters) == 0
}
