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

package prom

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apache/skywalking-meter/pkg/logger"
	"github.com/apache/skywalking-meter/pkg/run"
)

var (
	_ run.Service = (*exportService)(nil)
	_ run.Config  = (*exportService)(nil)

	errNoAddr = errors.New("no listen addr")
)

// NewExportService returns a service exposing the gatherer on an HTTP
// /metrics endpoint.
func NewExportService(gatherer prometheus.Gatherer) run.Service {
	return &exportService{
		gatherer: gatherer,
		closer:   run.NewCloser(1),
	}
}

type exportService struct {
	l          *logger.Logger
	svr        *http.Server
	closer     *run.Closer
	gatherer   prometheus.Gatherer
	listenAddr string
}

func (p *exportService) FlagSet() *run.FlagSet {
	flagSet := run.NewFlagSet("meter-export")
	flagSet.StringVar(&p.listenAddr, "meter-listener-addr", ":2121", "listen addr for the metrics endpoint")
	return flagSet
}

func (p *exportService) Validate() error {
	if p.listenAddr == "" {
		return errNoAddr
	}
	return nil
}

func (p *exportService) Name() string {
	return "meter-export"
}

func (p *exportService) Serve() run.StopNotify {
	p.l = logger.GetLogger(p.Name())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{}))
	p.svr = &http.Server{
		Addr:              p.listenAddr,
		ReadHeaderTimeout: 3 * time.Second,
		Handler:           mux,
	}
	go func() {
		defer p.closer.Done()
		p.l.Info().Str("listenAddr", p.listenAddr).Msg("start metric endpoint")
		_ = p.svr.ListenAndServe()
	}()
	return p.closer.CloseNotify()
}

func (p *exportService) GracefulStop() {
	_ = p.svr.Close()
	p.closer.CloseThenWait()
}
