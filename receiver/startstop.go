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
	"log"
	"sync"
	"time"
)

type wrkCtl struct {
	wg, startWg *sync.WaitGroup
	id          string
}

func (w *wrkCtl) ident() string { return w.id }
func (w *wrkCtl) onEnter()      { w.wg.Add(1) }
func (w *wrkCtl) onExit()       { w.wg.Done() }
func (w *wrkCtl) onStarted()    { w.startWg.Done() }

type wController interface {
	ident() string
	onEnter()
	onExit()
	onStarted()
}

var startAllWorkers = func(r *Receiver, startWg *sync.WaitGroup) {
	startPacedMetricWorker(r, startWg)
	startWorkers(r, startWg)
	startReporters(r)
}

var doStart = func(r *Receiver) {
	log.Printf("Receiver: starting...")

	r.closing = make(chan struct{})

	var startWg sync.WaitGroup
	startAllWorkers(r, &startWg)

	// Wait for workers to start correctly
	startWg.Wait()
	log.Printf("Receiver: All workers running, starting dispatcher.")

	startWg.Add(1)
	go dispatcher(&wrkCtl{wg: &r.dispatcherWg, startWg: &startWg, id: "dispatcher"}, r.sCh, r, r.workerChs)
	startWg.Wait()

	log.Printf("Receiver: Ready.")
}

var stopDispatcher = func(r *Receiver) {
	log.Printf("Closing dispatcher channel...")
	close(r.sCh)
	r.dispatcherWg.Wait()
	log.Printf("Dispatcher finished.")
}

var doStop = func(r *Receiver) {
	stopDispatcher(r)
	stopAllWorkers(r)
}

var stopWorkers = func(workerChs []chan *Sample, workerWg *sync.WaitGroup) {
	log.Printf("stopWorkers(): closing all worker channels...")
	for _, ch := range workerChs {
		close(ch)
	}
	log.Printf("stopWorkers(): waiting for workers to finish...")
	workerWg.Wait()
	log.Printf("stopWorkers(): all workers finished.")
}

var stopReporters = func(closing chan struct{}, reporterWg *sync.WaitGroup) {
	if closing != nil {
		close(closing)
	}
	reporterWg.Wait()
}

var stopPacedMetricWorker = func(pacedMetricCh chan *pacedMetric, pacedMetricWg *sync.WaitGroup) {
	log.Printf("stopPacedMetricWorker(): closing paced metric channel...")
	close(pacedMetricCh)
	log.Printf("stopPacedMetricWorker(): waiting for paced metric worker to finish...")
	pacedMetricWg.Wait()
	log.Printf("stopPacedMetricWorker(): paced metric worker finished.")
}

var stopAllWorkers = func(r *Receiver) {
	// Order matters here: everything that reports stats must be
	// gone before the paced metric channel is closed.
	stopWorkers(r.workerChs, &r.workerWg)
	stopReporters(r.closing, &r.reporterWg)
	stopPacedMetricWorker(r.pacedMetricCh, &r.pacedMetricWg)
}

var startWorkers = func(r *Receiver, startWg *sync.WaitGroup) {

	r.workerChs = make([]chan *Sample, r.NWorkers)

	log.Printf("Starting %d workers...", r.NWorkers)
	startWg.Add(r.NWorkers)
	for i := 0; i < r.NWorkers; i++ {
		r.workerChs[i] = make(chan *Sample, 1024)
		go worker(&wrkCtl{wg: &r.workerWg, startWg: startWg, id: fmt.Sprintf("worker_%d", i)}, r.ingester, r.workerChs[i], r)
	}
}

var startPacedMetricWorker = func(r *Receiver, startWg *sync.WaitGroup) {
	log.Printf("Starting pacedMetricWorker...")
	startWg.Add(1)
	go pacedMetricWorker(&wrkCtl{wg: &r.pacedMetricWg, startWg: startWg, id: "pacedMetricWorker"}, r.pacedMetricCh, r.sink, time.Second)
}

var startReporters = func(r *Receiver) {
	if !r.ReportStats {
		return
	}
	r.reporterWg.Add(2)
	go func() {
		defer r.reporterWg.Done()
		reportDispatcherChannelFillPercent(r.sCh, r, time.Second, r.closing)
	}()
	go func() {
		defer r.reporterWg.Done()
		reportRuntime(r, 5*time.Second, r.closing)
	}()
}
