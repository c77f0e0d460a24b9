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
	"log"
	"time"
)

func reportDispatcherChannelFillPercent(sCh chan *Sample, sr statReporter, nap time.Duration, closing chan struct{}) {
	tick := time.NewTicker(nap)
	defer tick.Stop()

	cp := float64(cap(sCh))
	for {
		select {
		case <-closing:
			return
		case <-tick.C:
		}
		ln := float64(len(sCh))
		if cp > 0 {
			fillPct := (ln / cp) * 100
			sr.reportStatGauge("receiver.dispatcher.channel.fill_percent", fillPct)
			if fillPct > 75 {
				log.Printf("WARNING: dispatcher channel %v percent full!", fillPct)
			}
		}
		sr.reportStatGauge("receiver.dispatcher.channel.len", ln)
	}
}

var dispatcher = func(wc wController, sCh chan *Sample, sr statReporter, workerChs workerChannels) {
	wc.onEnter()
	defer wc.onExit()

	wc.onStarted()

	for s := range sCh {
		sr.reportStatCount("receiver.dispatcher.samples.total", 1)
		workerChs.queue(s)
	}
	log.Printf("dispatcher: channel closed, shutting down")
}
