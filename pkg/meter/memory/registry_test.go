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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apache/skywalking-meter/pkg/meter"
)

func newTestRegistry(t *testing.T, mutate func(*meter.Config)) *Registry {
	t.Helper()
	cfg := meter.NewConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewRegistry(cfg, clock.NewMock())
}

func TestRegistryLookupIdempotent(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, nil)

	// build equal ids independently, with tags in different order
	a := r.CreateId("requests",
		meter.Tag{Key: "method", Value: "GET"},
		meter.Tag{Key: "code", Value: "200"})
	b := r.CreateId("requests",
		meter.Tag{Key: "code", Value: "200"},
		meter.Tag{Key: "method", Value: "GET"})
	tester.True(a.Equal(b))

	r.Counter(a).Add(2)
	r.Counter(b).Increment()
	tester.Equal(float64(3), r.Counter(a).Count())
	tester.Equal(1, r.Size())
}

func TestRegistryTypeCollision(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, nil)

	id := r.CreateId("latency")
	timer := r.Timer(id)
	timer.Record(time.Second)

	g := r.Gauge(id)
	tester.Equal(meter.NoopGauge, g)
	g.Set(42)
	tester.Equal(float64(0), g.Value())

	// the original meter is unaffected by the collision
	tester.Equal(int64(1), r.Timer(id).Count())
	tester.Equal(time.Second, r.Timer(id).TotalTime())
}

func TestRegistryTypeCollisionPropagates(t *testing.T) {
	r := newTestRegistry(t, func(cfg *meter.Config) {
		cfg.PropagateWarnings = true
	})
	id := r.CreateId("latency")
	r.Timer(id)
	require.Panics(t, func() {
		r.Gauge(id)
	})
}

func TestRegistryMaxNumMeters(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, func(cfg *meter.Config) {
		cfg.MaxNumMeters = 2
	})

	first := r.Counter(r.CreateId("m0"))
	second := r.Counter(r.CreateId("m1"))
	first.Increment()
	second.Increment()
	tester.Equal(2, r.Size())

	overflow := r.Counter(r.CreateId("m2"))
	tester.Equal(meter.NoopCounter, overflow)
	overflow.Add(100)
	tester.Equal(float64(0), overflow.Count())
	tester.Equal(2, r.Size())

	// ids below the bound keep resolving to their live meters
	tester.Equal(float64(1), r.Counter(r.CreateId("m0")).Count())
}

func TestRegistryInvalidId(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, nil)

	id := r.CreateId("")
	tester.Same(meter.NoopId, id)
	tester.Equal(meter.NoopCounter, r.Counter(id))
	tester.Equal(meter.NoopTimer, r.Timer(id))
	tester.Nil(r.Get(id))
	tester.Equal(0, r.Size())
}

func TestRegistryConcurrentIncrements(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, nil)

	const goroutines = 16
	const increments = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// each goroutine resolves the counter independently, so
			// creation races are part of what this exercises
			c := r.Counter(r.CreateId("hits", meter.Tag{Key: "node", Value: "a"}))
			for j := 0; j < increments; j++ {
				c.Increment()
			}
		}()
	}
	wg.Wait()

	tester.Equal(float64(goroutines*increments),
		r.Counter(r.CreateId("hits", meter.Tag{Key: "node", Value: "a"})).Count())
	tester.Equal(1, r.Size())
}

func TestRegistryRegisterAggregates(t *testing.T) {
	tester := assert.New(t)
	mock := clock.NewMock()
	r := NewRegistry(meter.NewConfig(), mock)

	id := r.CreateId("external")
	c1 := NewCounter(id, r.Clock())
	c2 := NewCounter(id, r.Clock())
	r.Register(c1)
	r.Register(c2)
	c1.Add(2)
	c2.Add(3)

	m := r.Get(id)
	tester.NotNil(m)
	ms := m.Measure()
	tester.Len(ms, 1)
	tester.Equal(float64(5), ms[0].Value)
	tester.Equal(1, r.Size())
}

func TestRegistryState(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, nil)

	id := r.CreateId("cache")
	calls := 0
	create := func() any {
		calls++
		return &sync.Map{}
	}
	first := r.State(id, create)
	second := r.State(id, create)
	tester.Same(first, second)
	tester.Equal(1, calls)
	tester.Nil(r.State(meter.NoopId, create))
}

func TestRegistryEach(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, nil)

	for i := 0; i < 3; i++ {
		r.Counter(r.CreateId(fmt.Sprintf("c%d", i))).Increment()
	}
	var seen []string
	r.Each(func(m meter.Meter) {
		seen = append(seen, m.MeterId().Name())
	})
	tester.ElementsMatch([]string{"c0", "c1", "c2"}, seen)
}

func TestRegistryRemoveExpired(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, nil)

	alive := true
	r.PollGauge(r.CreateId("queue-depth"),
		func() bool { return alive },
		func() float64 { return 7 })
	r.Counter(r.CreateId("keep")).Increment()
	tester.Equal(2, r.Size())

	r.RemoveExpired()
	tester.Equal(2, r.Size(), "live meters survive the sweep")

	alive = false
	r.RemoveExpired()
	tester.Equal(1, r.Size())
	tester.Nil(r.Get(r.CreateId("queue-depth")))
	tester.NotNil(r.Get(r.CreateId("keep")))
}

func TestRegistryOverflowResets(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, func(cfg *meter.Config) {
		cfg.MaxNumMeters = 1
	})

	alive := true
	r.PollGauge(r.CreateId("g"), func() bool { return alive }, func() float64 { return 1 })
	tester.Equal(meter.NoopCounter, r.Counter(r.CreateId("blocked")))

	alive = false
	r.RemoveExpired()
	tester.Equal(0, r.Size())

	// capacity freed by the sweep is usable again
	c := r.Counter(r.CreateId("blocked"))
	c.Increment()
	tester.Equal(float64(1), c.Count())
}
