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

// Package cardinality bounds the tag values fed into meter ids. The
// limiters are pure string mappers applied by calling code before
// building an Id; values beyond the budget collapse to Rollup so a
// buggy dynamic tag cannot explode the meter count.
package cardinality

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Rollup is the replacement value for inputs beyond a limiter's budget.
const Rollup = "--others--"

// Limiter maps a raw tag value onto a bounded value domain.
type Limiter func(string) string

// First admits the first n distinct values it sees; everything after
// maps to Rollup.
func First(n int) Limiter {
	var mu sync.Mutex
	seen := make(map[string]struct{}, n)
	return func(value string) string {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := seen[value]; ok {
			return value
		}
		if len(seen) < n {
			seen[value] = struct{}{}
			return value
		}
		return Rollup
	}
}

// MostFrequent admits roughly the n most recently active values, an
// LRU approximation of frequency: a value already resident passes
// through, a newcomer is admitted once the set has room or after it
// displaces a stale entry, and maps to Rollup on its first sighting
// when the set is full.
func MostFrequent(n int) Limiter {
	cache, err := lru.New(n)
	if err != nil {
		// n < 1
		return func(string) string { return Rollup }
	}
	return func(value string) string {
		if _, ok := cache.Get(value); ok {
			return value
		}
		if cache.Len() < n {
			cache.Add(value, struct{}{})
			return value
		}
		cache.Add(value, struct{}{})
		return Rollup
	}
}
