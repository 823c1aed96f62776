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

// Scope is an immutable namespace wrapper over a Registry: it prefixes
// metric names and attaches const tags to every Id it produces. SubScope
// and ConstTags return new scopes and never mutate the receiver.
type Scope struct {
	registry Registry
	prefix   string
	sep      string
	tags     *TagSet
}

// NewScope creates a root scope with the given name prefix.
func NewScope(registry Registry, name, sep string) *Scope {
	return &Scope{
		registry: registry,
		prefix:   name,
		sep:      sep,
		tags:     emptyTagSet,
	}
}

// SubScope derives a scope with the name appended to the prefix.
func (s *Scope) SubScope(name string) *Scope {
	prefix := name
	if s.prefix != "" {
		prefix = s.prefix + s.sep + name
	}
	return &Scope{
		registry: s.registry,
		prefix:   prefix,
		sep:      s.sep,
		tags:     s.tags,
	}
}

// ConstTags derives a scope with the tags merged into its const set.
func (s *Scope) ConstTags(tags ...Tag) *Scope {
	merged, err := s.tags.AddAll(tags)
	if err != nil {
		merged = s.tags
	}
	return &Scope{
		registry: s.registry,
		prefix:   s.prefix,
		sep:      s.sep,
		tags:     merged,
	}
}

// Namespace returns the accumulated name prefix.
func (s *Scope) Namespace() string {
	return s.prefix
}

// CreateId builds an Id under this scope.
func (s *Scope) CreateId(name string, tags ...Tag) *Id {
	full := name
	if s.prefix != "" {
		full = s.prefix + s.sep + name
	}
	id := s.registry.CreateId(full, s.tags.Tags()...)
	return id.WithTags(tags...)
}

// Counter returns a counter scoped under the prefix and const tags.
func (s *Scope) Counter(name string, tags ...Tag) Counter {
	return s.registry.Counter(s.CreateId(name, tags...))
}

// Gauge returns a gauge scoped under the prefix and const tags.
func (s *Scope) Gauge(name string, tags ...Tag) Gauge {
	return s.registry.Gauge(s.CreateId(name, tags...))
}

// Timer returns a timer scoped under the prefix and const tags.
func (s *Scope) Timer(name string, tags ...Tag) Timer {
	return s.registry.Timer(s.CreateId(name, tags...))
}

// DistributionSummary returns a summary scoped under the prefix and
// const tags.
func (s *Scope) DistributionSummary(name string, tags ...Tag) DistributionSummary {
	return s.registry.DistributionSummary(s.CreateId(name, tags...))
}
