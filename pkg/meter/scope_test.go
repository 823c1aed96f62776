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

package meter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apache/skywalking-meter/pkg/meter"
	"github.com/apache/skywalking-meter/pkg/meter/memory"
)

func TestScopeNamespace(t *testing.T) {
	tester := assert.New(t)
	registry := memory.NewDefaultRegistry()
	root := meter.NewScope(registry, "svc", "_")
	sub := root.SubScope("http").SubScope("server")
	tester.Equal("svc_http_server", sub.Namespace())
	// the parent scope is untouched
	tester.Equal("svc", root.Namespace())
}

func TestScopeConstTags(t *testing.T) {
	tester := assert.New(t)
	registry := memory.NewDefaultRegistry()
	scope := meter.NewScope(registry, "svc", "_").
		ConstTags(meter.Tag{Key: "region", Value: "us-east-1"})

	c := scope.Counter("requests", meter.Tag{Key: "code", Value: "200"})
	c.Increment()

	id := registry.CreateId("svc_requests",
		meter.Tag{Key: "region", Value: "us-east-1"},
		meter.Tag{Key: "code", Value: "200"})
	tester.Equal(float64(1), registry.Counter(id).Count())
}

func TestScopeTagOverride(t *testing.T) {
	tester := assert.New(t)
	registry := memory.NewDefaultRegistry()
	scope := meter.NewScope(registry, "svc", "_").
		ConstTags(meter.Tag{Key: "env", Value: "prod"})

	id := scope.CreateId("latency", meter.Tag{Key: "env", Value: "canary"})
	v, ok := id.Tags().Get("env")
	tester.True(ok)
	tester.Equal("canary", v, "per-meter tags override scope const tags")
}

func TestSumMeasurements(t *testing.T) {
	tester := assert.New(t)
	id, err := meter.NewId("x")
	tester.NoError(err)
	count := id.WithTag(meter.StatisticKey, "count")
	total := id.WithTag(meter.StatisticKey, "totalTime")

	merged := meter.SumMeasurements(
		[]meter.Measurement{
			{Id: count, Timestamp: 100, Value: 2},
			{Id: total, Timestamp: 100, Value: 0.5},
		},
		[]meter.Measurement{
			{Id: count, Timestamp: 150, Value: 3},
			{Id: total, Timestamp: 150, Value: 1.5},
		},
	)
	tester.Len(merged, 2)
	tester.Equal(float64(5), merged[0].Value)
	tester.Equal(int64(150), merged[0].Timestamp)
	tester.Equal(float64(2), merged[1].Value)
}
