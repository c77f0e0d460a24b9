//
// Copyright 2017 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watermark

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultInterval is the telemetry interval of the periodic view.
const DefaultInterval = 120 * time.Second

var ErrAlreadyStarted = errors.New("scheduler already started")

type windowResetter interface {
	SnapshotAndResetWindow() int
}

// Scheduler closes the periodic window every interval.
//
// When the interval is reconfigured, the tick already armed fires at
// its original deadline and the new interval is used from then on.
// The current window is neither cut short nor extended:
//
//   interval 120s, reconfigured to 5s at t=30s
//   ticks at:  120s, 125s, 130s, ...
type Scheduler struct {
	wr    windowResetter
	clock clock.Clock

	lk       sync.Mutex
	interval time.Duration
	running  bool
	closing  chan struct{}
	wg       sync.WaitGroup

	ticks int64
}

// NewScheduler returns a stopped scheduler. A nil clk means the real
// clock.
func NewScheduler(wr windowResetter, interval time.Duration, clk clock.Clock) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%v: %w", interval, ErrInvalidInterval)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{wr: wr, clock: clk, interval: interval}, nil
}

func (s *Scheduler) Start() error {
	s.lk.Lock()
	defer s.lk.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}
	s.running = true
	s.closing = make(chan struct{})

	// first deadline is relative to Start
	timer := s.clock.Timer(s.interval)

	s.wg.Add(1)
	go s.run(timer, s.closing)

	log.Printf("Scheduler: started, periodic watermarks every %v.", s.interval)
	return nil
}

// Stop stops the timer and waits for a tick in progress to finish.
// The window keeps accumulating until the scheduler is started again.
func (s *Scheduler) Stop() {
	s.lk.Lock()
	if !s.running {
		s.lk.Unlock()
		return
	}
	s.running = false
	close(s.closing)
	s.lk.Unlock()

	s.wg.Wait()
	log.Printf("Scheduler: stopped.")
}

// ConfigureInterval sets the interval used when the timer is next
// armed, i.e. after the pending tick.
func (s *Scheduler) ConfigureInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%v: %w", d, ErrInvalidInterval)
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	if d != s.interval {
		log.Printf("Scheduler: interval changed from %v to %v, effective after the next tick.", s.interval, d)
		s.interval = d
	}
	return nil
}

func (s *Scheduler) Interval() time.Duration {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.interval
}

// Ticks returns the number of completed ticks. A tick counts as
// complete once the timer has been re-armed for the next one.
func (s *Scheduler) Ticks() int64 {
	return atomic.LoadInt64(&s.ticks)
}

func (s *Scheduler) run(timer *clock.Timer, closing chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-timer.C:
			n := s.wr.SnapshotAndResetWindow()
			next := s.Interval()
			timer.Reset(next)
			atomic.AddInt64(&s.ticks, 1)
			if debug {
				log.Printf("Scheduler: closed window for %d entries, next in %v.", n, next)
			}

		case <-closing:
			timer.Stop()
			return
		}
	}
}
