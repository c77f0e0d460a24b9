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

// Package receiver manages the receiving end of the samples. Samples
// queued by the listeners are sharded by resource id across a set of
// workers which apply them to the watermark store, so that samples of
// any one resource are applied in the order they arrived.
package receiver

import (
	"hash/fnv"
	"os"
	"sync"

	"github.com/tgres/wmd/resource"
)

var debug bool

func init() {
	debug = os.Getenv("WMD_RCVR_DEBUG") != ""
}

// Ingester applies a raw sample. Implemented by watermark.Store.
type Ingester interface {
	Ingest(id resource.ID, kind resource.StatKind, raw uint64) error
}

// StatSink receives the receiver's own statistics, aggregated over
// one second.
type StatSink interface {
	AddCount(name string, v float64)
	SetGauge(name string, v float64)
}

type Receiver struct {
	ingester      Ingester
	sink          StatSink
	NWorkers      int
	ReportStats   bool
	sCh           chan *Sample
	workerChs     workerChannels
	pacedMetricCh chan *pacedMetric
	closing       chan struct{}
	workerWg      sync.WaitGroup
	dispatcherWg  sync.WaitGroup
	pacedMetricWg sync.WaitGroup
	reporterWg    sync.WaitGroup
}

// Sample is a raw reading of one stat of one resource, the form in
// which the listeners deliver data.
type Sample struct {
	ID    resource.ID
	Kind  resource.StatKind
	Value uint64
}

type workerChannels []chan *Sample

func (w workerChannels) queue(s *Sample) {
	w[shard(s.ID, len(w))] <- s
}

func shard(id resource.ID, n int) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(n))
}

// New returns a receiver applying samples to ing. If sink is nil, no
// statistics are reported.
func New(ing Ingester, sink StatSink) *Receiver {
	return &Receiver{
		ingester:      ing,
		sink:          sink,
		NWorkers:      4,
		sCh:           make(chan *Sample, 65536), // absorbs a burst from a full poll cycle
		ReportStats:   sink != nil,
		pacedMetricCh: make(chan *pacedMetric, 256),
	}
}

func (r *Receiver) Start() {
	doStart(r)
}

func (r *Receiver) Stop() {
	doStop(r)
}

func (r *Receiver) QueueSample(id resource.ID, kind resource.StatKind, v uint64) {
	r.sCh <- &Sample{ID: id, Kind: kind, Value: v}
}

func (r *Receiver) reportStatCount(name string, f float64) {
	if r != nil && r.ReportStats && f != 0 {
		r.pacedMetricCh <- &pacedMetric{pacedSum, name, f}
	}
}

func (r *Receiver) reportStatGauge(name string, f float64) {
	if r != nil && r.ReportStats {
		r.pacedMetricCh <- &pacedMetric{pacedGauge, name, f}
	}
}

type statReporter interface {
	reportStatCount(string, float64)
	reportStatGauge(string, float64)
}
