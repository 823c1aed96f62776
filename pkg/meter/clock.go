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

import "github.com/benbjohnson/clock"

// Clock supplies the two time sources a registry needs: wall time for
// measurement timestamps and a monotonic reading for elapsed-time
// measurement. A mock implementation is substitutable for tests.
type Clock interface {
	// WallTime returns the current time in epoch milliseconds.
	WallTime() int64
	// MonotonicTime returns a reading in nanoseconds suitable only for
	// computing elapsed durations.
	MonotonicTime() int64
}

type wrappedClock struct {
	inner clock.Clock
}

// SystemClock returns a Clock backed by the real time.
func SystemClock() Clock {
	return wrappedClock{inner: clock.New()}
}

// WrapClock adapts any benbjohnson clock, e.g. a *clock.Mock for
// deterministic tests.
func WrapClock(c clock.Clock) Clock {
	return wrappedClock{inner: c}
}

func (w wrappedClock) WallTime() int64 {
	return w.inner.Now().UnixMilli()
}

func (w wrappedClock) MonotonicTime() int64 {
	return w.inner.Now().UnixNano()
}
