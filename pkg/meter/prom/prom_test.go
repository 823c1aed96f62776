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

package prom

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apache/skywalking-meter/pkg/meter"
)

func gatherFamily(t *testing.T, g prometheus.Gatherer, name string) *dto.MetricFamily {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %q not gathered", name)
	return nil
}

func TestPromCounter(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	r := NewRegistry(promReg, meter.SystemClock())

	c := r.Counter(r.CreateId("requests_total", meter.Tag{Key: "code", Value: "200"}))
	c.Increment()
	c.Add(2)
	tester.Equal(float64(3), c.Count())

	mf := gatherFamily(t, promReg, "requests_total")
	require.Len(t, mf.Metric, 1)
	m := mf.Metric[0]
	tester.Equal(float64(3), m.GetCounter().GetValue())
	require.Len(t, m.Label, 1)
	tester.Equal("code", m.Label[0].GetName())
	tester.Equal("200", m.Label[0].GetValue())
}

func TestPromGauge(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	r := NewRegistry(promReg, meter.SystemClock())

	g := r.Gauge(r.CreateId("queue_depth"))
	g.Set(7)
	g.Set(4)
	tester.Equal(float64(4), g.Value())

	mf := gatherFamily(t, promReg, "queue_depth")
	require.Len(t, mf.Metric, 1)
	tester.Equal(float64(4), mf.Metric[0].GetGauge().GetValue())
}

func TestPromTimer(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	r := NewRegistry(promReg, meter.SystemClock())

	timer := r.Timer(r.CreateId("latency"))
	timer.Record(250 * time.Millisecond)
	timer.Record(-time.Second)
	tester.Equal(int64(1), timer.Count())
	tester.Equal(250*time.Millisecond, timer.TotalTime())

	mf := gatherFamily(t, promReg, "latency")
	require.Len(t, mf.Metric, 1)
	h := mf.Metric[0].GetHistogram()
	tester.Equal(uint64(1), h.GetSampleCount())
	tester.Equal(0.25, h.GetSampleSum())
}

func TestPromDistributionSummary(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	r := NewRegistry(promReg, meter.SystemClock())

	d := r.DistributionSummary(r.CreateId("payload_bytes"))
	d.Record(3)
	d.Record(5)
	tester.Equal(int64(2), d.Count())
	tester.Equal(int64(8), d.TotalAmount())

	mf := gatherFamily(t, promReg, "payload_bytes")
	h := mf.Metric[0].GetHistogram()
	tester.Equal(uint64(2), h.GetSampleCount())
	tester.Equal(float64(8), h.GetSampleSum())
}

func TestPromSharedVector(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	r := NewRegistry(promReg, meter.SystemClock())

	// same name and tag keys, different values: one vector, two series
	r.Counter(r.CreateId("hits", meter.Tag{Key: "code", Value: "200"})).Increment()
	r.Counter(r.CreateId("hits", meter.Tag{Key: "code", Value: "500"})).Increment()

	mf := gatherFamily(t, promReg, "hits")
	tester.Len(mf.Metric, 2)
}

func TestPromDuplicateName(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	r := NewRegistry(promReg, meter.SystemClock())

	first := r.Counter(r.CreateId("requests", meter.Tag{Key: "method", Value: "GET"}))
	first.Increment()

	// same name with a different tag-key set cannot share a collector;
	// the lookup degrades instead of panicking into the caller
	var second meter.Counter
	require.NotPanics(t, func() {
		second = r.Counter(r.CreateId("requests", meter.Tag{Key: "code", Value: "200"}))
	})
	tester.Equal(meter.NoopCounter, second)
	second.Add(5)

	// same name as a different collector type degrades the same way
	var g meter.Gauge
	require.NotPanics(t, func() {
		g = r.Gauge(r.CreateId("requests", meter.Tag{Key: "method", Value: "GET"}))
	})
	tester.Equal(meter.NoopGauge, g)

	first.Increment()
	tester.Equal(float64(2), first.Count())
	mf := gatherFamily(t, promReg, "requests")
	require.Len(t, mf.Metric, 1)
	tester.Equal(float64(2), mf.Metric[0].GetCounter().GetValue())
}

func TestPromTimerTime(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	mock := clock.NewMock()
	r := NewRegistry(promReg, meter.WrapClock(mock))

	timer := r.Timer(r.CreateId("latency"))
	timer.Time(func() {
		mock.Add(2 * time.Second)
	})
	tester.Equal(int64(1), timer.Count())
	tester.Equal(2*time.Second, timer.TotalTime())

	mf := gatherFamily(t, promReg, "latency")
	h := mf.Metric[0].GetHistogram()
	tester.Equal(uint64(1), h.GetSampleCount())
	tester.Equal(float64(2), h.GetSampleSum())
}

func TestPromTypeCollision(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	r := NewRegistry(promReg, meter.SystemClock())

	id := r.CreateId("depth")
	g := r.Gauge(id)
	g.Set(1)

	tester.Equal(meter.NoopCounter, r.Counter(id))
	tester.Equal(float64(1), r.Gauge(id).Value(), "original meter unaffected")
}

func TestPromLookupIdempotent(t *testing.T) {
	tester := assert.New(t)
	promReg := prometheus.NewRegistry()
	r := NewRegistry(promReg, meter.SystemClock())

	a := r.CreateId("hits", meter.Tag{Key: "a", Value: "1"}, meter.Tag{Key: "b", Value: "2"})
	b := r.CreateId("hits", meter.Tag{Key: "b", Value: "2"}, meter.Tag{Key: "a", Value: "1"})
	tester.Same(r.Counter(a), r.Counter(b))
}

func TestSanitize(t *testing.T) {
	tester := assert.New(t)
	tester.Equal("http_requests_total", sanitize("http.requests-total"))
	tester.Equal("_0heap", sanitize("00heap"), "leading digit is replaced")
	tester.Equal("jvm_memory_used", sanitize("jvm.memory.used"))
}
