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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tgres/wmd/resource"
)

type fakeResetter struct {
	called chan struct{}
}

func (f *fakeResetter) SnapshotAndResetWindow() int {
	if f.called != nil {
		f.called <- struct{}{}
	}
	return 0
}

// waitTicks waits for the scheduler goroutine to complete n ticks. The
// mock clock fires timers synchronously but the tick is handled in
// another goroutine.
func waitTicks(t *testing.T, s *Scheduler, n int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Ticks() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for tick %d, have %d", n, s.Ticks())
		}
		time.Sleep(time.Millisecond)
	}
}

func Test_NewScheduler_InvalidInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		if _, err := NewScheduler(&fakeResetter{}, d, nil); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("NewScheduler(%v): expected ErrInvalidInterval, got %v", d, err)
		}
	}
}

func Test_Scheduler_Ticks(t *testing.T) {
	mock := clock.NewMock()
	s, err := NewScheduler(&fakeResetter{}, 10*time.Second, mock)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.Start(); err != ErrAlreadyStarted {
		t.Errorf("second Start: expected ErrAlreadyStarted, got %v", err)
	}

	mock.Add(9 * time.Second)
	if s.Ticks() != 0 {
		t.Errorf("tick before the interval elapsed")
	}
	for i := int64(1); i <= 3; i++ {
		if i == 1 {
			mock.Add(time.Second)
		} else {
			mock.Add(10 * time.Second)
		}
		waitTicks(t, s, i)
	}
}

func Test_Scheduler_Reconfigure(t *testing.T) {
	mock := clock.NewMock()
	s, _ := NewScheduler(&fakeResetter{}, 120*time.Second, mock)
	s.Start()
	defer s.Stop()

	mock.Add(30 * time.Second)
	if err := s.ConfigureInterval(5 * time.Second); err != nil {
		t.Fatal(err)
	}
	if s.Interval() != 5*time.Second {
		t.Errorf("Interval() = %v, want 5s", s.Interval())
	}

	// the pending deadline (120s) is honored
	mock.Add(5 * time.Second)
	if s.Ticks() != 0 {
		t.Fatalf("window was cut short by reconfiguration")
	}
	mock.Add(85 * time.Second)
	waitTicks(t, s, 1)

	// then every 5s
	mock.Add(4 * time.Second)
	if s.Ticks() != 1 {
		t.Fatalf("tick before the new interval elapsed")
	}
	mock.Add(time.Second)
	waitTicks(t, s, 2)
	mock.Add(5 * time.Second)
	waitTicks(t, s, 3)
}

func Test_Scheduler_ReconfigureInvalid(t *testing.T) {
	s, _ := NewScheduler(&fakeResetter{}, time.Minute, clock.NewMock())
	for _, d := range []time.Duration{0, -5 * time.Second} {
		if err := s.ConfigureInterval(d); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("ConfigureInterval(%v): expected ErrInvalidInterval, got %v", d, err)
		}
	}
	if s.Interval() != time.Minute {
		t.Errorf("interval changed by a rejected value: %v", s.Interval())
	}
}

func Test_Scheduler_Stop(t *testing.T) {
	mock := clock.NewMock()
	fr := &fakeResetter{called: make(chan struct{}, 10)}
	s, _ := NewScheduler(fr, time.Second, mock)

	s.Start()
	s.Stop()
	s.Stop() // no-op

	mock.Add(5 * time.Second)
	select {
	case <-fr.called:
		t.Errorf("window reset after Stop")
	default:
	}

	// restartable, the first deadline is relative to the restart
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	mock.Add(time.Second)
	waitTicks(t, s, 1)
	select {
	case <-fr.called:
	default:
		t.Errorf("expected a window reset after restart")
	}
}

func Test_Engine(t *testing.T) {
	mock := clock.NewMock()
	e, err := NewEngine(testRegistry(t), DefaultInterval, mock)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	sched := e.Scheduler()

	e.Ingest(q(0), shared, 100)
	mock.Add(DefaultInterval)
	waitTicks(t, sched, 1)

	entry, _ := e.Peek(q(0), shared)
	if entry.Periodic != 100 || entry.WindowPeak != 0 {
		t.Errorf("after first tick: periodic %d (want 100), window %d (want 0)", entry.Periodic, entry.WindowPeak)
	}

	e.Ingest(q(0), shared, 50)
	mock.Add(DefaultInterval)
	waitTicks(t, sched, 2)

	if got := mustRead(t, e.Store, Periodic, q(0), shared); got != 50 {
		t.Errorf("periodic = %d, want 50", got)
	}
	if got := mustRead(t, e.Store, Persistent, q(0), shared); got != 100 {
		t.Errorf("persistent = %d, want 100", got)
	}

	if err := e.ConfigureInterval(0); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
	if err := e.ConfigureInterval(5); err != nil {
		t.Fatal(err)
	}
	if e.Interval() != 5*time.Second {
		t.Errorf("Interval() = %v, want 5s", e.Interval())
	}

	// clear the user view of PGs, queue views stay
	e.Ingest(pg(0), headroom, 9)
	e.Ingest(pg(0), headroom, 3)
	if n, err := e.Clear(User, Filter{Class: resource.PriorityGroup}); err != nil || n != 16 {
		t.Errorf("Clear = %d, %v; want 16, nil", n, err)
	}
	if got := mustRead(t, e.Store, User, pg(0), headroom); got != 3 {
		t.Errorf("pg0 headroom user = %d, want 3", got)
	}
	if got := mustRead(t, e.Store, User, q(0), shared); got != 100 {
		t.Errorf("q0 user = %d, want 100", got)
	}
}

func Test_Engine_ConfigureIntervalOverflow(t *testing.T) {
	e, err := NewEngine(testRegistry(t), DefaultInterval, clock.NewMock())
	if err != nil {
		t.Fatal(err)
	}
	// these do not fit in a time.Duration
	for _, seconds := range []int64{maxIntervalSeconds + 1, 18446744074} {
		if err := e.ConfigureInterval(int(seconds)); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("ConfigureInterval(%d): expected ErrInvalidInterval, got %v", seconds, err)
		}
	}
	if e.Interval() != DefaultInterval {
		t.Errorf("interval changed by a rejected value: %v", e.Interval())
	}

	if err := e.ConfigureInterval(int(maxIntervalSeconds)); err != nil {
		t.Errorf("longest interval rejected: %v", err)
	}
	if e.Interval() != time.Duration(maxIntervalSeconds)*time.Second {
		t.Errorf("Interval() = %v", e.Interval())
	}
}
