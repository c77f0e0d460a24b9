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

// Package metrics exports the watermark views and the daemon's own
// statistics to Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tgres/wmd/resource"
	"github.com/tgres/wmd/watermark"
)

const namespace = "wmd"

type seqKey struct {
	view watermark.View
	key  resource.Key
}

type Exporter struct {
	registry   *prometheus.Registry
	watermarks *prometheus.GaugeVec
	counts     *prometheus.CounterVec
	gauges     *prometheus.GaugeVec

	lk   sync.Mutex
	seqs map[seqKey]uint64
}

// New creates an exporter with its own registry, which also carries
// the Go runtime and process collectors.
func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		watermarks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "watermark_bytes",
				Help:      "Buffer watermark in bytes, by view",
			},
			[]string{"view", "resource", "class", "subtype", "stat"},
		),
		counts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stat_total",
				Help:      "Internal counters of the daemon",
			},
			[]string{"stat"},
		),
		gauges: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stat",
				Help:      "Internal gauges of the daemon, averaged over a second",
			},
			[]string{"stat"},
		),
		seqs: make(map[seqKey]uint64),
	}
	e.registry.MustRegister(
		e.watermarks,
		e.counts,
		e.gauges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// ViewChanged updates the watermark gauge of a change. Changes older
// than the last one seen for the same view and pair are ignored.
func (e *Exporter) ViewChanged(c watermark.Change) {
	k := seqKey{c.View, c.Key()}

	e.lk.Lock()
	defer e.lk.Unlock()
	if seq, ok := e.seqs[k]; ok && seq > c.Seq {
		return
	}
	e.seqs[k] = c.Seq

	r := c.Resource
	e.watermarks.WithLabelValues(c.View.String(), r.Name, r.Class.String(), r.Subtype.String(), c.Kind.String()).Set(float64(c.Value))
}

func (e *Exporter) AddCount(name string, v float64) {
	if v < 0 {
		return // counters only go up
	}
	e.counts.WithLabelValues(name).Add(v)
}

func (e *Exporter) SetGauge(name string, v float64) {
	e.gauges.WithLabelValues(name).Set(v)
}

func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
