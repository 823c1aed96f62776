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

// Package prom bridges the meter.Registry surface onto prometheus
// collectors, so it can stand alone or join a composite next to the
// in-memory registry. Writes go to both a local instrument, which
// serves scalar reads and Measure, and the prometheus vector for the
// id's name and tag keys.
package prom

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/apache/skywalking-meter/pkg/logger"
	"github.com/apache/skywalking-meter/pkg/meter"
	"github.com/apache/skywalking-meter/pkg/meter/memory"
)

// DefBuckets is the default histogram boundaries for timers (seconds)
// and distribution summaries (amounts).
var DefBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

var _ meter.Registry = (*Registry)(nil)

// Registry is the prometheus backend adapter.
type Registry struct {
	log        *logger.Logger
	clock      meter.Clock
	reg        prometheus.Registerer
	mu         sync.Mutex
	meters     map[string]meter.Meter
	vecs       map[string]any
	registered []meter.Meter
}

// NewRegistry creates an adapter publishing through the given
// prometheus registerer.
func NewRegistry(reg prometheus.Registerer, clock meter.Clock) *Registry {
	return &Registry{
		log:    logger.GetLogger("meter", "prom"),
		clock:  clock,
		reg:    reg,
		meters: make(map[string]meter.Meter),
		vecs:   make(map[string]any),
	}
}

// Clock returns the adapter's time source.
func (r *Registry) Clock() meter.Clock { return r.clock }

// CreateId builds an Id; invalid input degrades to NoopId.
func (r *Registry) CreateId(name string, tags ...meter.Tag) *meter.Id {
	id, err := meter.NewId(name, tags...)
	if err != nil {
		r.log.Warn().Err(err).Str("name", name).Msg("invalid meter id, using noop")
		return meter.NoopId
	}
	return id
}

// Counter returns the counter bound to id, creating the prometheus
// counter vector for its name and tag keys on first use.
func (r *Registry) Counter(id *meter.Id) meter.Counter {
	m := r.getOrCreate(id, meter.KindCounter, func() meter.Meter {
		vec := r.counterVec(id)
		if vec == nil {
			return nil
		}
		return &counter{
			Counter: memory.NewCounter(id, r.clock),
			prom:    vec.WithLabelValues(tagValues(id)...),
		}
	})
	if c, ok := m.(meter.Counter); ok {
		return c
	}
	return meter.NoopCounter
}

// Gauge returns the gauge bound to id.
func (r *Registry) Gauge(id *meter.Id) meter.Gauge {
	m := r.getOrCreate(id, meter.KindGauge, func() meter.Meter {
		vec := r.gaugeVec(id)
		if vec == nil {
			return nil
		}
		return &gauge{
			Gauge: memory.NewGauge(id, r.clock),
			prom:  vec.WithLabelValues(tagValues(id)...),
		}
	})
	if g, ok := m.(meter.Gauge); ok {
		return g
	}
	return meter.NoopGauge
}

// Timer returns the timer bound to id; durations are observed in
// seconds on a histogram.
func (r *Registry) Timer(id *meter.Id) meter.Timer {
	m := r.getOrCreate(id, meter.KindTimer, func() meter.Meter {
		vec := r.histogramVec(id, "timer")
		if vec == nil {
			return nil
		}
		obs, _ := vec.GetMetricWithLabelValues(tagValues(id)...)
		return &timer{
			Timer: memory.NewTimer(id, r.clock),
			prom:  obs,
			clock: r.clock,
		}
	})
	if t, ok := m.(meter.Timer); ok {
		return t
	}
	return meter.NoopTimer
}

// DistributionSummary returns the summary bound to id; amounts are
// observed on a histogram.
func (r *Registry) DistributionSummary(id *meter.Id) meter.DistributionSummary {
	m := r.getOrCreate(id, meter.KindDistSummary, func() meter.Meter {
		vec := r.histogramVec(id, "summary")
		if vec == nil {
			return nil
		}
		obs, _ := vec.GetMetricWithLabelValues(tagValues(id)...)
		return &distributionSummary{
			DistributionSummary: memory.NewDistributionSummary(id, r.clock),
			prom:                obs,
		}
	})
	if d, ok := m.(meter.DistributionSummary); ok {
		return d
	}
	return meter.NoopDistributionSummary
}

func (r *Registry) getOrCreate(id *meter.Id, kind meter.Kind, create func() meter.Meter) meter.Meter {
	if id == nil || id == meter.NoopId {
		return meter.NoopFor(kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := id.MapKey()
	if m, ok := r.meters[key]; ok {
		if m.Kind() != kind {
			r.log.Warn().Str("id", id.String()).
				Str("requested", kind.String()).Str("found", m.Kind().String()).
				Msg("meter type collision, returning no-op meter")
			return meter.NoopFor(kind)
		}
		return m
	}
	m := create()
	if m == nil {
		// collector registration failed; do not cache so a later rename
		// or registry change can still succeed
		return meter.NoopFor(kind)
	}
	r.meters[key] = m
	return m
}

func (r *Registry) counterVec(id *meter.Id) *prometheus.CounterVec {
	key := "counter\xff" + vecKey(id)
	if v, ok := r.vecs[key]; ok {
		return v.(*prometheus.CounterVec)
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: sanitize(id.Name()),
		Help: id.Name(),
	}, tagKeys(id))
	vec, ok := registerVec(r, id, vec)
	if !ok {
		return nil
	}
	r.vecs[key] = vec
	return vec
}

func (r *Registry) gaugeVec(id *meter.Id) *prometheus.GaugeVec {
	key := "gauge\xff" + vecKey(id)
	if v, ok := r.vecs[key]; ok {
		return v.(*prometheus.GaugeVec)
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: sanitize(id.Name()),
		Help: id.Name(),
	}, tagKeys(id))
	vec, ok := registerVec(r, id, vec)
	if !ok {
		return nil
	}
	r.vecs[key] = vec
	return vec
}

func (r *Registry) histogramVec(id *meter.Id, kind string) *prometheus.HistogramVec {
	key := kind + "\xff" + vecKey(id)
	if v, ok := r.vecs[key]; ok {
		return v.(*prometheus.HistogramVec)
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    sanitize(id.Name()),
		Help:    id.Name(),
		Buckets: DefBuckets,
	}, tagKeys(id))
	vec, ok := registerVec(r, id, vec)
	if !ok {
		return nil
	}
	r.vecs[key] = vec
	return vec
}

// registerVec registers a collector, reusing the already registered one
// on an identical re-registration. A name clash with different label
// names or a different collector type logs and reports failure so the
// caller degrades to a no-op meter; registration never panics into the
// instrumented code path.
func registerVec[V prometheus.Collector](r *Registry, id *meter.Id, vec V) (V, bool) {
	err := r.reg.Register(vec)
	if err == nil {
		return vec, true
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(V); ok {
			return existing, true
		}
	}
	r.log.Warn().Err(err).Str("id", id.String()).
		Msg("conflicting collector registration, returning no-op meter")
	var zero V
	return zero, false
}

// Register keeps externally constructed meters so iteration sees them;
// their samples are not exported through prometheus.
func (r *Registry) Register(m meter.Meter) {
	if m == nil || m.MeterId() == nil || m.MeterId() == meter.NoopId {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, m)
}

// Get returns the meter currently held for id, or nil.
func (r *Registry) Get(id *meter.Id) meter.Meter {
	if id == nil || id == meter.NoopId {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meters[id.MapKey()]
}

// Each visits a snapshot of the currently held meters.
func (r *Registry) Each(fn func(meter.Meter)) {
	r.mu.Lock()
	snapshot := make([]meter.Meter, 0, len(r.meters)+len(r.registered))
	for _, m := range r.meters {
		snapshot = append(snapshot, m)
	}
	snapshot = append(snapshot, r.registered...)
	r.mu.Unlock()
	for _, m := range snapshot {
		fn(m)
	}
}

// RemoveExpired drops meters whose HasExpired reports true.
func (r *Registry) RemoveExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, m := range r.meters {
		if m.HasExpired() {
			delete(r.meters, key)
		}
	}
	live := r.registered[:0]
	for _, m := range r.registered {
		if !m.HasExpired() {
			live = append(live, m)
		}
	}
	r.registered = live
}

// vecKey identifies the vector for an id: its name plus tag keys.
func vecKey(id *meter.Id) string {
	var sb strings.Builder
	sb.WriteString(id.Name())
	id.Tags().Each(func(t meter.Tag) {
		sb.WriteByte('\xff')
		sb.WriteString(t.Key)
	})
	return sb.String()
}

func tagKeys(id *meter.Id) []string {
	keys := make([]string, 0, id.Tags().Len())
	id.Tags().Each(func(t meter.Tag) {
		keys = append(keys, sanitize(t.Key))
	})
	return keys
}

func tagValues(id *meter.Id) []string {
	values := make([]string, 0, id.Tags().Len())
	id.Tags().Each(func(t meter.Tag) {
		values = append(values, t.Value)
	})
	return values
}

// sanitize maps a name onto the prometheus identifier charset.
func sanitize(name string) string {
	var sb strings.Builder
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == ':':
			sb.WriteRune(c)
		case c >= '0' && c <= '9' && i > 0:
			sb.WriteRune(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

type counter struct {
	*memory.Counter
	prom prometheus.Counter
}

func (c *counter) Increment() { c.Add(1) }

func (c *counter) Add(delta float64) {
	if delta <= 0 {
		return
	}
	c.Counter.Add(delta)
	c.prom.Add(delta)
}

type gauge struct {
	*memory.Gauge
	prom prometheus.Gauge
}

func (g *gauge) Set(value float64) {
	g.Gauge.Set(value)
	g.prom.Set(value)
}

type timer struct {
	*memory.Timer
	prom  prometheus.Observer
	clock meter.Clock
}

func (t *timer) Record(d time.Duration) {
	if d < 0 {
		return
	}
	t.Timer.Record(d)
	if t.prom != nil {
		t.prom.Observe(d.Seconds())
	}
}

func (t *timer) Time(fn func()) {
	start := t.clock.MonotonicTime()
	fn()
	t.Record(time.Duration(t.clock.MonotonicTime() - start))
}

type distributionSummary struct {
	*memory.DistributionSummary
	prom prometheus.Observer
}

func (d *distributionSummary) Record(amount int64) {
	if amount < 0 {
		return
	}
	d.DistributionSummary.Record(amount)
	if d.prom != nil {
		d.prom.Observe(float64(amount))
	}
}
