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

type pacedMetricType int

const (
	pacedSum pacedMetricType = iota
	pacedGauge
)

type pacedMetric struct {
	kind  pacedMetricType
	name  string
	value float64
}

// gaugeAvg averages the gauge values seen since the last flush.
type gaugeAvg struct {
	sum float64
	n   int
}

func (g *gaugeAvg) add(v float64) {
	g.sum += v
	g.n++
}

func (g *gaugeAvg) reset() float64 {
	v := g.sum / float64(g.n)
	g.sum, g.n = 0, 0
	return v
}

var pacedMetricFlush = func(sums map[string]float64, gauges map[string]*gaugeAvg, sink StatSink) map[string]float64 {
	if sink != nil {
		for name, sum := range sums {
			sink.AddCount(name, sum)
		}
	}
	for name, gauge := range gauges {
		if gauge.n == 0 {
			continue
		}
		v := gauge.reset()
		if sink != nil {
			sink.SetGauge(name, v)
		}
	}
	// NB: We do not reset the gauges map, it lives on
	return make(map[string]float64)
}

var pacedMetricWorker = func(wc wController, pacedMetricCh chan *pacedMetric, sink StatSink, frequency time.Duration) {
	wc.onEnter()
	defer wc.onExit()

	sums := make(map[string]float64)
	gauges := make(map[string]*gaugeAvg)

	tick := time.NewTicker(frequency)
	defer tick.Stop()

	log.Printf("%s: started.", wc.ident())
	wc.onStarted()

	for {
		select {
		case <-tick.C:
			sums = pacedMetricFlush(sums, gauges, sink)
		case ps, ok := <-pacedMetricCh:
			if !ok {
				pacedMetricFlush(sums, gauges, sink)
				return
			}
			switch ps.kind {
			case pacedSum:
				sums[ps.name] += ps.value
			case pacedGauge:
				if _, ok := gauges[ps.name]; !ok {
					gauges[ps.name] = &gaugeAvg{}
				}
				gauges[ps.name].add(ps.value)
			}
		}
	}
}
