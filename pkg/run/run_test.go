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

package run_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apache/skywalking-meter/pkg/meter"
	"github.com/apache/skywalking-meter/pkg/meter/memory"
	"github.com/apache/skywalking-meter/pkg/meter/prom"
	"github.com/apache/skywalking-meter/pkg/run"
)

// stopper lets the test end the group from the outside: closing its
// channel makes the group interrupt every other service.
type stopper struct {
	ch   chan struct{}
	once sync.Once
}

func newStopper() *stopper {
	return &stopper{ch: make(chan struct{})}
}

func (s *stopper) Name() string { return "stopper" }

func (s *stopper) Serve() run.StopNotify { return s.ch }

func (s *stopper) GracefulStop() {
	s.once.Do(func() { close(s.ch) })
}

func TestGroupMeterLifecycle(t *testing.T) {
	tester := assert.New(t)
	g := run.NewGroup("meter-lifecycle")

	cfg := meter.NewConfig()
	promReg := prometheus.NewRegistry()
	export := prom.NewExportService(promReg)
	registered := g.Register(cfg, export)
	tester.Equal([]bool{true, true}, registered)

	fs := g.RegisterFlags()
	require.NoError(t, fs.Parse([]string{
		"--meter-gauge-polling-frequency", "5ms",
		"--meter-listener-addr", "127.0.0.1:0",
	}))

	// run the config phase up front so the parsed polling frequency is
	// available before the registry is built
	interrupted, err := g.RunConfig()
	require.NoError(t, err)
	tester.False(interrupted)
	tester.Equal(5*time.Millisecond, cfg.GaugePollingFrequency)

	r := memory.NewRegistry(cfg, clock.New())
	st := newStopper()
	g.Register(r.Poller(), st)

	done := make(chan error, 1)
	go func() {
		done <- g.Run(context.Background())
	}()
	g.WaitTillReady()

	var polled atomic.Int64
	r.PollGauge(r.CreateId("queue_depth"),
		func() bool { return true },
		func() float64 { return float64(polled.Add(1)) })
	require.Eventually(t, func() bool {
		return polled.Load() >= 2
	}, 2*time.Second, time.Millisecond, "poller never sampled the gauge")

	st.GracefulStop()
	select {
	case err := <-done:
		tester.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("group did not stop")
	}

	tester.Contains(g.ListUnits(), "gauge-poller")
	tester.Contains(g.ListUnits(), "meter-export")
}
