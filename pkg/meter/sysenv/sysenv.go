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

// Package sysenv extracts process-wide common tags from the
// environment. Variables of the form SWM_TAG_<KEY>=<value> become tags
// with the key lowercased, e.g. SWM_TAG_REGION=us-east-1 yields
// region=us-east-1. Callers attach the result to a Scope or merge it
// into ids at the application's wiring point.
package sysenv

import (
	"os"
	"strings"

	"github.com/apache/skywalking-meter/pkg/meter"
)

const tagPrefix = "SWM_TAG_"

// Tags extracts common tags from the process environment.
func Tags() []meter.Tag {
	return TagsFrom(os.Environ())
}

// TagsFrom extracts common tags from the given environment entries in
// "key=value" form.
func TagsFrom(environ []string) []meter.Tag {
	var tags []meter.Tag
	for _, entry := range environ {
		if !strings.HasPrefix(entry, tagPrefix) {
			continue
		}
		kv := strings.SplitN(entry[len(tagPrefix):], "=", 2)
		if len(kv) != 2 {
			continue
		}
		t := meter.Tag{Key: strings.ToLower(kv[0]), Value: kv[1]}
		if t.Valid() {
			tags = append(tags, t)
		}
	}
	return tags
}
