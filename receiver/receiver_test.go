//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
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

package receiver

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tgres/wmd/resource"
)

type fakeLogger struct {
	sync.Mutex
	last []byte
}

func (f *fakeLogger) Write(p []byte) (n int, err error) {
	f.Lock()
	defer f.Unlock()
	f.last = append([]byte(nil), p...)
	return len(p), nil
}

func (f *fakeLogger) String() string {
	f.Lock()
	defer f.Unlock()
	return string(f.last)
}

type fakeIngester struct {
	sync.Mutex
	known map[resource.ID]bool
	got   map[resource.ID][]uint64
}

func newFakeIngester(ids ...resource.ID) *fakeIngester {
	f := &fakeIngester{known: make(map[resource.ID]bool), got: make(map[resource.ID][]uint64)}
	for _, id := range ids {
		f.known[id] = true
	}
	return f
}

func (f *fakeIngester) Ingest(id resource.ID, kind resource.StatKind, raw uint64) error {
	f.Lock()
	defer f.Unlock()
	if !f.known[id] {
		return fmt.Errorf("%s/%s: unknown", id, kind)
	}
	f.got[id] = append(f.got[id], raw)
	return nil
}

type fakeSink struct {
	sync.Mutex
	counts map[string]float64
	gauges map[string]float64
}

func newFakeSink() *fakeSink {
	return &fakeSink{counts: make(map[string]float64), gauges: make(map[string]float64)}
}

func (f *fakeSink) AddCount(name string, v float64) {
	f.Lock()
	defer f.Unlock()
	f.counts[name] += v
}

func (f *fakeSink) SetGauge(name string, v float64) {
	f.Lock()
	defer f.Unlock()
	f.gauges[name] = v
}

type fakeSr struct {
	sync.Mutex
	counts map[string]float64
	gauges map[string]float64
}

func (f *fakeSr) reportStatCount(name string, v float64) {
	f.Lock()
	defer f.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]float64)
	}
	f.counts[name] += v
}

func (f *fakeSr) reportStatGauge(name string, v float64) {
	f.Lock()
	defer f.Unlock()
	if f.gauges == nil {
		f.gauges = make(map[string]float64)
	}
	f.gauges[name] = v
}

func Test_shard(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := resource.QueueID("Ethernet0", i)
		n := shard(id, 7)
		if n < 0 || n >= 7 {
			t.Errorf("shard(%v) out of range: %d", id, n)
		}
		if shard(id, 7) != n {
			t.Errorf("shard(%v) is not stable", id)
		}
	}
}

func Test_Receiver_New(t *testing.T) {
	r := New(newFakeIngester(), nil)
	if r.ReportStats {
		t.Errorf("no sink, ReportStats should be false")
	}
	r = New(newFakeIngester(), newFakeSink())
	if !r.ReportStats || r.NWorkers != 4 || cap(r.sCh) == 0 {
		t.Errorf("unexpected defaults: %+v", r)
	}
	// nil receiver must not panic
	var nr *Receiver
	nr.reportStatCount("foo", 1)
	nr.reportStatGauge("foo", 1)
}

func Test_Receiver_StartStop(t *testing.T) {
	var ids []resource.ID
	for i := 0; i < 10; i++ {
		ids = append(ids, resource.QueueID("Ethernet0", i))
	}
	ing := newFakeIngester(ids...)
	sink := newFakeSink()

	r := New(ing, sink)
	r.NWorkers = 3
	r.Start()

	for v := uint64(0); v < 10; v++ {
		for _, id := range ids {
			r.QueueSample(id, resource.SharedBufferBytes, v)
		}
	}
	r.QueueSample("queue:bogus:0", resource.SharedBufferBytes, 1)

	r.Stop()

	// per resource, samples are applied in the order queued
	for _, id := range ids {
		got := ing.got[id]
		if len(got) != 10 {
			t.Errorf("%v: got %d samples, want 10", id, len(got))
			continue
		}
		for i, v := range got {
			if v != uint64(i) {
				t.Errorf("%v: sample %d out of order: %v", id, i, got)
				break
			}
		}
	}

	if c := sink.counts["receiver.dispatcher.samples.total"]; c != 101 {
		t.Errorf("samples.total = %v, want 101", c)
	}
	if c := sink.counts["receiver.worker.samples.applied"]; c != 100 {
		t.Errorf("samples.applied = %v, want 100", c)
	}
	if c := sink.counts["receiver.worker.samples.rejected"]; c != 1 {
		t.Errorf("samples.rejected = %v, want 1", c)
	}
}
