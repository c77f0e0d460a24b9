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
	"sync"
	"testing"
	"time"
)

func Test_pacedMetricFlush(t *testing.T) {
	sums := map[string]float64{"foo": 123}
	gauges := map[string]*gaugeAvg{
		"bar":  {sum: 30, n: 3},
		"idle": {},
	}
	sink := newFakeSink()

	sums = pacedMetricFlush(sums, gauges, sink)

	if len(sums) > 0 {
		t.Errorf("pacedMetricFlush did not return empty sums")
	}
	if sink.counts["foo"] != 123 {
		t.Errorf("AddCount wasn't called: %v", sink.counts)
	}
	if sink.gauges["bar"] != 10 {
		t.Errorf("gauge should be averaged, got %v", sink.gauges["bar"])
	}
	if _, ok := sink.gauges["idle"]; ok {
		t.Errorf("gauge without values should not be flushed")
	}
	if gauges["bar"].n != 0 {
		t.Errorf("gauge not reset after flush")
	}

	// a nil sink is fine
	pacedMetricFlush(map[string]float64{"foo": 1}, gauges, nil)
}

func Test_pacedMetricWorker(t *testing.T) {
	sink := newFakeSink()
	ch := make(chan *pacedMetric)

	var wg, startWg sync.WaitGroup
	startWg.Add(1)
	go pacedMetricWorker(&wrkCtl{wg: &wg, startWg: &startWg, id: "pmw"}, ch, sink, time.Hour)
	startWg.Wait()

	ch <- &pacedMetric{pacedSum, "a", 1}
	ch <- &pacedMetric{pacedSum, "a", 2}
	ch <- &pacedMetric{pacedGauge, "g", 4}
	ch <- &pacedMetric{pacedGauge, "g", 6}
	close(ch)
	wg.Wait()

	if sink.counts["a"] != 3 {
		t.Errorf("sum a = %v, want 3", sink.counts["a"])
	}
	if sink.gauges["g"] != 5 {
		t.Errorf("gauge g = %v, want 5", sink.gauges["g"])
	}
}
