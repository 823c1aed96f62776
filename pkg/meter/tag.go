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

// Package meter defines the dimensional metrics contracts: tags, ids,
// meters and the registry surface implemented by the backends.
package meter

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// sep separates keys and values in hashed and canonical encodings. It is
// not a valid byte inside a tag key or value.
const sep = '\xff'

// Tag is a single key-value dimension attached to an Id.
type Tag struct {
	Key   string
	Value string
}

// Valid reports whether both the key and the value are non-empty.
func (t Tag) Valid() bool {
	return t.Key != "" && t.Value != ""
}

// TagsFromPairs builds tags from alternating key, value strings.
// The input must have even length and no empty entries.
func TagsFromPairs(kv ...string) ([]Tag, error) {
	if len(kv)%2 != 0 {
		return nil, errors.Errorf("tag pairs must have even length, got %d", len(kv))
	}
	tags := make([]Tag, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		t := Tag{Key: kv[i], Value: kv[i+1]}
		if !t.Valid() {
			return nil, errors.Errorf("tag key and value must be non-empty, got %q=%q", t.Key, t.Value)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// TagsFromMap converts a plain map to a tag slice. Entries with empty
// keys or values are skipped.
func TagsFromMap(m map[string]string) []Tag {
	tags := make([]Tag, 0, len(m))
	for k, v := range m {
		t := Tag{Key: k, Value: v}
		if t.Valid() {
			tags = append(tags, t)
		}
	}
	return tags
}

// TagSet is an immutable collection of tags sorted lexicographically by
// key with unique keys. Every update operation returns a new TagSet and
// never mutates the receiver, so a TagSet may be shared freely across
// goroutines. The zero-length set is the shared EmptyTagSet singleton.
type TagSet struct {
	tags []Tag
	hash atomic.Uint64
}

var emptyTagSet = &TagSet{}

// EmptyTagSet returns the shared empty set.
func EmptyTagSet() *TagSet {
	return emptyTagSet
}

// NewTagSet builds a TagSet from the given tags. Later duplicates of a
// key overwrite earlier ones.
func NewTagSet(tags ...Tag) (*TagSet, error) {
	for _, t := range tags {
		if !t.Valid() {
			return nil, errors.Errorf("tag key and value must be non-empty, got %q=%q", t.Key, t.Value)
		}
	}
	if len(tags) == 0 {
		return emptyTagSet, nil
	}
	return &TagSet{tags: sortDedup(tags)}, nil
}

// Add returns a new TagSet with the tag inserted; an existing entry with
// the same key is overwritten.
func (ts *TagSet) Add(t Tag) (*TagSet, error) {
	return ts.AddAll([]Tag{t})
}

// AddAll returns a new TagSet merged with the given tags; for duplicate
// keys the incoming value wins, and among incoming duplicates the last
// one wins.
func (ts *TagSet) AddAll(tags []Tag) (*TagSet, error) {
	if len(tags) == 0 {
		return ts, nil
	}
	for _, t := range tags {
		if !t.Valid() {
			return nil, errors.Errorf("tag key and value must be non-empty, got %q=%q", t.Key, t.Value)
		}
	}
	if ts.Len() == 0 {
		return &TagSet{tags: sortDedup(tags)}, nil
	}
	in := sortStable(tags)
	merged := make([]Tag, 0, len(ts.tags)+len(in))
	i, j := 0, 0
	for i < len(ts.tags) && j < len(in) {
		k := lastOfRun(in, j)
		switch {
		case ts.tags[i].Key < in[k].Key:
			merged = append(merged, ts.tags[i])
			i++
		case ts.tags[i].Key > in[k].Key:
			merged = append(merged, in[k])
			j = k + 1
		default:
			merged = append(merged, in[k])
			i++
			j = k + 1
		}
	}
	merged = append(merged, ts.tags[i:]...)
	for j < len(in) {
		k := lastOfRun(in, j)
		merged = append(merged, in[k])
		j = k + 1
	}
	return &TagSet{tags: merged}, nil
}

// sortStable returns a copy of tags stably sorted by key so that for
// duplicate keys the original relative order is preserved.
func sortStable(tags []Tag) []Tag {
	out := make([]Tag, len(tags))
	copy(out, tags)
	slices.SortStableFunc(out, func(a, b Tag) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

// sortDedup sorts a copy of tags by key and collapses duplicate keys to
// the last value.
func sortDedup(tags []Tag) []Tag {
	sorted := sortStable(tags)
	out := sorted[:0:len(sorted)]
	for i := 0; i < len(sorted); {
		k := lastOfRun(sorted, i)
		out = append(out, sorted[k])
		i = k + 1
	}
	return out
}

// lastOfRun returns the index of the last entry sharing tags[i].Key in a
// key-sorted slice.
func lastOfRun(tags []Tag, i int) int {
	for i+1 < len(tags) && tags[i+1].Key == tags[i].Key {
		i++
	}
	return i
}

// Len returns the number of tags.
func (ts *TagSet) Len() int {
	return len(ts.tags)
}

// At returns the i-th tag in sorted key order.
func (ts *TagSet) At(i int) Tag {
	return ts.tags[i]
}

// Get returns the value bound to key.
func (ts *TagSet) Get(key string) (string, bool) {
	i, ok := slices.BinarySearchFunc(ts.tags, key, func(t Tag, k string) int {
		return strings.Compare(t.Key, k)
	})
	if !ok {
		return "", false
	}
	return ts.tags[i].Value, true
}

// Each calls fn for every tag in sorted key order.
func (ts *TagSet) Each(fn func(Tag)) {
	for _, t := range ts.tags {
		fn(t)
	}
}

// Tags returns a copy of the underlying entries.
func (ts *TagSet) Tags() []Tag {
	out := make([]Tag, len(ts.tags))
	copy(out, ts.tags)
	return out
}

// Equal reports whether both sets hold the same sorted entries.
func (ts *TagSet) Equal(other *TagSet) bool {
	if ts == other {
		return true
	}
	if other == nil || len(ts.tags) != len(other.tags) {
		return false
	}
	return slices.Equal(ts.tags, other.tags)
}

// Hash returns a hash over the canonical sorted encoding. The structure
// is immutable so the first computed value is cached.
func (ts *TagSet) Hash() uint64 {
	if h := ts.hash.Load(); h != 0 {
		return h
	}
	h := xxhash.Sum64(ts.appendEncoded(make([]byte, 0, len(ts.tags)*16)))
	if h == 0 {
		h = 1
	}
	ts.hash.Store(h)
	return h
}

// appendEncoded appends the canonical byte encoding used for map keys.
func (ts *TagSet) appendEncoded(b []byte) []byte {
	for _, t := range ts.tags {
		b = append(b, t.Key...)
		b = append(b, sep)
		b = append(b, t.Value...)
		b = append(b, sep)
	}
	return b
}

// String renders "k1=v1,k2=v2" in sorted key order.
func (ts *TagSet) String() string {
	var sb strings.Builder
	for i, t := range ts.tags {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(t.Key)
		sb.WriteByte('=')
		sb.WriteString(t.Value)
	}
	return sb.String()
}
