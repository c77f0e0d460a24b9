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
)

var worker = func(wc wController, ing Ingester, workerCh chan *Sample, sr statReporter) {
	wc.onEnter()
	defer wc.onExit()

	log.Printf("  - %s started.", wc.ident())
	wc.onStarted()

	for s := range workerCh {
		if err := ing.Ingest(s.ID, s.Kind, s.Value); err != nil {
			// an unknown resource is the sender's problem, keep going
			if debug {
				log.Printf("%s: ignoring sample: %v", wc.ident(), err)
			}
			sr.reportStatCount("receiver.worker.samples.rejected", 1)
			continue
		}
		if debug {
			log.Printf("%s: applied %v/%v = %d", wc.ident(), s.ID, s.Kind, s.Value)
		}
		sr.reportStatCount("receiver.worker.samples.applied", 1)
	}
}
