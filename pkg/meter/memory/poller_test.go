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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/apache/skywalking-meter/pkg/logger"
	"github.com/apache/skywalking-meter/pkg/meter"
)

func discardLogger() *logger.Logger {
	return logger.GetLogger("test")
}

func TestPolledGaugeValue(t *testing.T) {
	tester := assert.New(t)
	r := newTestRegistry(t, nil)

	var depth atomic.Int64
	depth.Store(5)
	id := r.CreateId("queue-depth")
	r.PollGauge(id,
		func() bool { return true },
		func() float64 { return float64(depth.Load()) })

	// Each flushes pending polls, so the snapshot sees a fresh sample
	// without the background loop running.
	var got float64
	r.Each(func(m meter.Meter) {
		got = m.(meter.Gauge).Value()
	})
	tester.Equal(float64(5), got)

	depth.Store(9)
	r.Each(func(meter.Meter) {})
	tester.Equal(float64(9), r.Gauge(id).Value())
}

func TestPollerAliveDrop(t *testing.T) {
	tester := assert.New(t)
	mock := clock.NewMock()
	p := newPoller(discardLogger(), mock, time.Second)

	alive := true
	dropped := false
	polls := 0
	p.Schedule(Task{
		Alive:  func() bool { return alive },
		Poll:   func() { polls++ },
		OnDrop: func() { dropped = true },
	})
	tester.Equal(1, p.TaskCount())

	p.PollNow()
	tester.Equal(1, polls)
	tester.False(dropped)

	alive = false
	p.PollNow()
	tester.Equal(1, polls, "a dead target is never polled")
	tester.True(dropped)
	tester.Equal(0, p.TaskCount())
}

func TestPollerPanicIsolation(t *testing.T) {
	tester := assert.New(t)
	mock := clock.NewMock()
	p := newPoller(discardLogger(), mock, time.Second)

	healthy := 0
	p.Schedule(Task{
		Alive: func() bool { return true },
		Poll:  func() { healthy++ },
	})
	faultyDropped := false
	p.Schedule(Task{
		Alive:  func() bool { return true },
		Poll:   func() { panic("sample failed") },
		OnDrop: func() { faultyDropped = true },
	})

	p.PollNow()
	tester.True(faultyDropped)
	tester.Equal(1, p.TaskCount())

	p.PollNow()
	tester.Equal(2, healthy, "the healthy task keeps being polled")
}

func TestPollerCancel(t *testing.T) {
	tester := assert.New(t)
	mock := clock.NewMock()
	p := newPoller(discardLogger(), mock, time.Second)

	polls := 0
	cancel := p.Schedule(Task{
		Alive: func() bool { return true },
		Poll:  func() { polls++ },
	})
	p.PollNow()
	cancel()
	p.PollNow()
	tester.Equal(1, polls)
	tester.Equal(0, p.TaskCount())
}

func TestPollerInterval(t *testing.T) {
	tester := assert.New(t)
	mock := clock.NewMock()
	p := newPoller(discardLogger(), mock, time.Minute)

	fast := 0
	slow := 0
	p.Schedule(Task{
		Interval: time.Second,
		Alive:    func() bool { return true },
		Poll:     func() { fast++ },
	})
	p.Schedule(Task{
		Interval: 10 * time.Second,
		Alive:    func() bool { return true },
		Poll:     func() { slow++ },
	})

	// advance the mock clock past the fast deadline only
	mock.Add(2 * time.Second)
	p.tick()
	tester.Equal(1, fast)
	tester.Equal(0, slow)

	mock.Add(10 * time.Second)
	p.tick()
	tester.Equal(2, fast)
	tester.Equal(1, slow)
}

func TestPollerServe(t *testing.T) {
	tester := assert.New(t)
	p := newPoller(discardLogger(), clock.New(), 5*time.Millisecond)

	var polls atomic.Int64
	p.Schedule(Task{
		Alive: func() bool { return true },
		Poll:  func() { polls.Add(1) },
	})

	stopped := p.Serve()
	tester.Eventually(func() bool {
		return polls.Load() >= 2
	}, time.Second, time.Millisecond)

	p.GracefulStop()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
