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

package memory

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/apache/skywalking-meter/pkg/logger"
	"github.com/apache/skywalking-meter/pkg/run"
)

// Task is a periodic sampling job for a passive gauge. Alive is the
// explicit liveness check replacing weak references: once it reports
// false the task unregisters itself and OnDrop runs. A panic escaping
// Poll drops only this task; sibling tasks and the poller itself keep
// running.
type Task struct {
	// Interval between polls; the poller default applies when zero.
	Interval time.Duration
	// Alive reports whether the polled target still exists.
	Alive func() bool
	// Poll samples the target.
	Poll func()
	// OnDrop runs after the task is unregistered, e.g. to remove the
	// backing gauge from the registry. Optional.
	OnDrop func()
}

type pollTask struct {
	task Task
	next time.Time
}

// Poller runs all registered sampling tasks on one background
// goroutine. Overlapping passes are skipped rather than run
// concurrently: a skipped tick means a slightly stale sample, never
// duplicated work.
type Poller struct {
	log    *logger.Logger
	clk    clock.Clock
	closer *run.Closer
	gate   chan struct{}
	mu     sync.Mutex
	tasks  map[uint64]*pollTask
	seq    uint64
	every  time.Duration
}

var _ run.Service = (*Poller)(nil)

func newPoller(log *logger.Logger, clk clock.Clock, every time.Duration) *Poller {
	p := &Poller{
		log:    log.Named("poller"),
		clk:    clk,
		closer: run.NewCloser(1),
		gate:   make(chan struct{}, 1),
		tasks:  make(map[uint64]*pollTask),
		every:  every,
	}
	p.gate <- struct{}{}
	return p
}

// Name identifies the unit for run.Group registration.
func (p *Poller) Name() string {
	return "gauge-poller"
}

// Serve starts the polling loop.
func (p *Poller) Serve() run.StopNotify {
	go p.loop()
	return p.closer.CloseNotify()
}

// GracefulStop terminates the polling loop and waits for it to exit.
func (p *Poller) GracefulStop() {
	p.closer.CloseThenWait()
}

// Schedule registers a sampling task and returns a cancel function.
func (p *Poller) Schedule(t Task) (cancel func()) {
	if t.Poll == nil || t.Alive == nil {
		return func() {}
	}
	if t.Interval <= 0 {
		t.Interval = p.every
	}
	p.mu.Lock()
	id := p.seq
	p.seq++
	p.tasks[id] = &pollTask{task: t, next: p.clk.Now().Add(t.Interval)}
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.tasks, id)
		p.mu.Unlock()
	}
}

// PollNow runs every registered task once, regardless of its next
// deadline. Registry iteration calls it so snapshots observe fresh
// gauge values.
func (p *Poller) PollNow() {
	<-p.gate
	defer func() { p.gate <- struct{}{} }()
	p.runPass(p.clk.Now(), true)
}

func (p *Poller) loop() {
	defer p.closer.Done()
	timer := p.clk.Timer(p.sleep())
	defer timer.Stop()
	for {
		select {
		case <-p.closer.CloseNotify():
			return
		case <-timer.C:
			p.tick()
			timer.Reset(p.sleep())
		}
	}
}

// tick runs one scheduled pass unless a pass is already in flight.
func (p *Poller) tick() {
	select {
	case <-p.gate:
	default:
		return
	}
	defer func() { p.gate <- struct{}{} }()
	p.runPass(p.clk.Now(), false)
}

func (p *Poller) runPass(now time.Time, force bool) {
	type due struct {
		id uint64
		pt *pollTask
	}
	var ready []due
	p.mu.Lock()
	for id, pt := range p.tasks {
		if force || !pt.next.After(now) {
			pt.next = now.Add(pt.task.Interval)
			ready = append(ready, due{id: id, pt: pt})
		}
	}
	p.mu.Unlock()
	for _, d := range ready {
		p.runTask(d.id, d.pt)
	}
}

func (p *Poller) runTask(id uint64, pt *pollTask) {
	if !pt.task.Alive() {
		p.drop(id, pt, nil)
		return
	}
	defer func() {
		if cause := recover(); cause != nil {
			p.drop(id, pt, cause)
		}
	}()
	pt.task.Poll()
}

// drop unregisters a task after its target vanished or its sampling
// function panicked. Only this task is affected.
func (p *Poller) drop(id uint64, pt *pollTask, cause any) {
	p.mu.Lock()
	delete(p.tasks, id)
	p.mu.Unlock()
	if cause != nil {
		p.log.Warn().Interface("cause", cause).Msg("gauge sampling failed, dropping gauge")
	} else {
		p.log.Debug().Msg("polled target gone, dropping gauge")
	}
	if pt.task.OnDrop != nil {
		pt.task.OnDrop()
	}
}

// sleep computes the wait until the earliest task deadline.
func (p *Poller) sleep() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tasks) == 0 {
		return p.every
	}
	now := p.clk.Now()
	wait := p.every
	for _, pt := range p.tasks {
		if until := pt.next.Sub(now); until < wait {
			wait = until
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// TaskCount returns the number of registered sampling tasks.
func (p *Poller) TaskCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}
