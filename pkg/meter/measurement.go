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

// SumMeasurements merges measurement slices from several meters sharing
// an id: values are summed per sub-id and the latest timestamp wins.
// The result preserves first-seen sub-id order.
func SumMeasurements(groups ...[]Measurement) []Measurement {
	var order []string
	merged := make(map[string]Measurement)
	for _, ms := range groups {
		for _, m := range ms {
			if m.Id == nil {
				continue
			}
			key := m.Id.MapKey()
			prev, ok := merged[key]
			if !ok {
				order = append(order, key)
				merged[key] = m
				continue
			}
			prev.Value += m.Value
			if m.Timestamp > prev.Timestamp {
				prev.Timestamp = m.Timestamp
			}
			merged[key] = prev
		}
	}
	if len(order) == 0 {
		return nil
	}
	out := make([]Measurement, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}
