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
	"time"

	"github.com/pkg/errors"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/apache/skywalking-meter/pkg/run"
)

// Defaults applied by NewConfig.
const (
	DefaultMaxNumMeters          = 10000
	DefaultGaugePollingFrequency = 10 * time.Second
)

// Config carries the registry settings. It implements run.Config so the
// settings bind to flags and environment variables; it can also be
// filled directly for embedded or test use.
type Config struct {
	// MaxNumMeters bounds the number of distinct meters a registry may
	// hold; lookups beyond the bound resolve to shared no-op meters.
	MaxNumMeters int
	// GaugePollingFrequency is the interval of the background gauge
	// poller.
	GaugePollingFrequency time.Duration
	// PropagateWarnings escalates type-collision warnings to panics.
	// Intended for test environments only.
	PropagateWarnings bool

	pollingFlag string
}

// NewConfig returns a Config with defaults.
func NewConfig() *Config {
	return &Config{
		MaxNumMeters:          DefaultMaxNumMeters,
		GaugePollingFrequency: DefaultGaugePollingFrequency,
	}
}

// Name identifies the unit for run.Group registration.
func (c *Config) Name() string {
	return "meter"
}

// FlagSet returns the meter flags.
func (c *Config) FlagSet() *run.FlagSet {
	fs := run.NewFlagSet("meter")
	fs.IntVar(&c.MaxNumMeters, "meter-max-num-meters", DefaultMaxNumMeters,
		"maximum number of distinct meters before lookups degrade to no-op")
	fs.StringVar(&c.pollingFlag, "meter-gauge-polling-frequency", DefaultGaugePollingFrequency.String(),
		"interval between background gauge polls, e.g. 10s or 1m30s")
	fs.BoolVar(&c.PropagateWarnings, "meter-propagate-warnings", false,
		"panic on meter type collisions instead of degrading to no-op")
	return fs
}

// Validate checks the stored values and resolves the polling flag.
func (c *Config) Validate() error {
	if c.MaxNumMeters <= 0 {
		return errors.New("meter-max-num-meters must be positive")
	}
	if c.pollingFlag != "" {
		d, err := str2duration.ParseDuration(c.pollingFlag)
		if err != nil {
			return errors.Wrapf(err, "invalid meter-gauge-polling-frequency %q", c.pollingFlag)
		}
		c.GaugePollingFrequency = d
	}
	if c.GaugePollingFrequency <= 0 {
		return errors.New("meter-gauge-polling-frequency must be positive")
	}
	return nil
}
