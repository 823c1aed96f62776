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

import (
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Id is an immutable dimensional metric identifier: a name plus a sorted
// unique TagSet. Derivation via WithTag returns a new Id and never
// mutates the receiver, so Ids built with the same final (name, tags)
// are interchangeable regardless of construction order.
type Id struct {
	name string
	tags *TagSet
	key  atomic.Pointer[string]
}

// NoopId is the distinguished sentinel returned when id construction
// fails or a registry is disabled. Registries special-case it and
// short-circuit to no-op meters. Compare by pointer identity.
var NoopId = &Id{name: "noop", tags: emptyTagSet}

// NewId builds an Id from a name and optional tags.
func NewId(name string, tags ...Tag) (*Id, error) {
	if name == "" {
		return nil, errors.New("id name must be non-empty")
	}
	ts, err := NewTagSet(tags...)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid tags for id %q", name)
	}
	return &Id{name: name, tags: ts}, nil
}

// Name returns the metric name.
func (id *Id) Name() string {
	return id.name
}

// Tags returns the tag set.
func (id *Id) Tags() *TagSet {
	return id.tags
}

// WithTag derives a new Id with the tag added, overwriting a prior value
// for the same key. An invalid key or value yields NoopId.
func (id *Id) WithTag(key, value string) *Id {
	return id.WithTags(Tag{Key: key, Value: value})
}

// WithTags derives a new Id with all tags merged in, last value winning
// for duplicate keys. Invalid input yields NoopId.
func (id *Id) WithTags(tags ...Tag) *Id {
	if id == NoopId {
		return NoopId
	}
	if len(tags) == 0 {
		return id
	}
	ts, err := id.tags.AddAll(tags)
	if err != nil {
		return NoopId
	}
	return &Id{name: id.name, tags: ts}
}

// Equal reports structural equality over (name, tags).
func (id *Id) Equal(other *Id) bool {
	if id == other {
		return true
	}
	if other == nil {
		return false
	}
	return id.name == other.name && id.tags.Equal(other.tags)
}

// Hash combines the name hash with the order-insensitive tag set hash.
func (id *Id) Hash() uint64 {
	return xxhash.Sum64String(id.name) ^ id.tags.Hash()
}

// MapKey returns the canonical string encoding used as the registry map
// key. It is computed once and cached; ids are immutable.
func (id *Id) MapKey() string {
	if k := id.key.Load(); k != nil {
		return *k
	}
	b := make([]byte, 0, len(id.name)+1+id.tags.Len()*16)
	b = append(b, id.name...)
	b = append(b, sep)
	b = id.tags.appendEncoded(b)
	k := string(b)
	id.key.Store(&k)
	return k
}

// String renders "name:k1=v1,k2=v2".
func (id *Id) String() string {
	if id.tags.Len() == 0 {
		return id.name
	}
	var sb strings.Builder
	sb.WriteString(id.name)
	sb.WriteByte(':')
	sb.WriteString(id.tags.String())
	return sb.String()
}
