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

// Package publisher writes watermark view changes to storage.
//
// Changes arrive synchronously from the store on the sampling path, so
// ViewChanged only records them. A background loop writes what has
// accumulated every interval, or sooner when Flush is called, at most
// as often as the rate limit allows. Only the newest change of each
// (view, resource, stat) is kept, and a value equal to the last one
// written is not written again.
package publisher

import (
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tgres/wmd/resource"
	"github.com/tgres/wmd/serde"
	"github.com/tgres/wmd/watermark"
	"golang.org/x/time/rate"
)

var debug bool

func init() {
	debug = os.Getenv("WMD_PUB_DEBUG") != ""
}

// StatSink receives publishing statistics.
type StatSink interface {
	AddCount(name string, v float64)
	SetGauge(name string, v float64)
}

type Config struct {
	Interval            time.Duration // default 1s
	MaxFlushesPerSecond int           // 0 means unlimited
	CacheSize           int           // default 4096
	Clock               clock.Clock   // default real clock
	Stats               StatSink      // may be nil
}

type pendingKey struct {
	view watermark.View
	key  resource.Key
}

type Publisher struct {
	nFlushes, nRows, nSkipped, nErrors int64 // first, for 64-bit alignment

	db       serde.Flusher
	clock    clock.Clock
	interval time.Duration
	limiter  *rate.Limiter
	flushed  *lru.Cache // pendingKey -> flushedValue
	sink     StatSink

	lk      sync.Mutex
	pending map[pendingKey]watermark.Change

	wake    chan struct{}
	closing chan struct{}
	wg      sync.WaitGroup
}

type flushedValue struct {
	value, seq uint64
}

func New(db serde.Flusher, cfg Config) (*Publisher, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	p := &Publisher{
		db:       db,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		flushed:  cache,
		sink:     cfg.Stats,
		pending:  make(map[pendingKey]watermark.Change),
		wake:     make(chan struct{}, 1),
	}
	if mfs := cfg.MaxFlushesPerSecond; mfs > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(mfs), mfs)
	}
	return p, nil
}

// ViewChanged records a change. It is meant to be registered with
// watermark.Store.OnViewChanged. A change older (by Seq) than the one
// already pending for the same view and pair is dropped.
func (p *Publisher) ViewChanged(c watermark.Change) {
	k := pendingKey{c.View, c.Key()}
	p.lk.Lock()
	defer p.lk.Unlock()
	if old, ok := p.pending[k]; ok && old.Seq > c.Seq {
		return
	}
	p.pending[k] = c
}

// Flush asks the loop to write pending changes now rather than at
// the next interval. It does not wait.
func (p *Publisher) Flush() {
	select {
	case p.wake <- struct{}{}:
	default: // already requested
	}
}

func (p *Publisher) Start() {
	p.closing = make(chan struct{})
	ticker := p.clock.Ticker(p.interval)
	p.wg.Add(1)
	go p.run(ticker)
	log.Printf("Publisher: started, flushing every %v.", p.interval)
}

// Stop writes whatever is pending, ignoring the rate limit, and
// returns once that is done.
func (p *Publisher) Stop() {
	if p.closing == nil {
		return
	}
	close(p.closing)
	p.wg.Wait()
	p.closing = nil
	log.Printf("Publisher: stopped.")
}

func (p *Publisher) run(ticker *clock.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-p.closing:
			log.Printf("Publisher: final flush...")
			p.flush()
			return
		case <-ticker.C:
		case <-p.wake:
		}
		if p.limiter != nil && !p.limiter.Allow() {
			// pending changes stay put until the next tick
			p.reportCount("publisher.flush.limited", 1)
			continue
		}
		p.flush()
	}
}

// flush writes pending changes and returns the number of rows written.
func (p *Publisher) flush() int {
	p.lk.Lock()
	if len(p.pending) == 0 {
		p.lk.Unlock()
		return 0
	}
	batch := p.pending
	p.pending = make(map[pendingKey]watermark.Change, len(batch))
	p.lk.Unlock()

	now := p.clock.Now()
	rows := make([]serde.Row, 0, len(batch))
	keys := make([]pendingKey, 0, len(batch))
	var skipped int
	for k, c := range batch {
		if v, ok := p.flushed.Get(k); ok {
			fv := v.(flushedValue)
			if fv.seq >= c.Seq {
				// older than what was already written
				skipped++
				continue
			}
			if fv.value == c.Value {
				p.flushed.Add(k, flushedValue{fv.value, c.Seq})
				skipped++
				continue
			}
		}
		row := serde.RowFromChange(c)
		row.Updated = now
		rows = append(rows, row)
		keys = append(keys, k)
	}
	atomic.AddInt64(&p.nSkipped, int64(skipped))
	p.reportCount("publisher.rows.skipped", float64(skipped))
	if len(rows) == 0 {
		return 0
	}

	start := time.Now()
	sqlOps, err := p.db.FlushRows(rows)
	if err != nil {
		log.Printf("Publisher: error flushing %d rows: %v", len(rows), err)
		atomic.AddInt64(&p.nErrors, 1)
		p.reportCount("publisher.flush.errors", 1)
		p.requeue(batch, keys)
		return 0
	}

	for _, k := range keys {
		p.flushed.Add(k, flushedValue{batch[k].Value, batch[k].Seq})
	}
	atomic.AddInt64(&p.nFlushes, 1)
	atomic.AddInt64(&p.nRows, int64(len(rows)))
	p.reportCount("publisher.flush.count", 1)
	p.reportCount("publisher.flush.sql_ops", float64(sqlOps))
	p.reportCount("publisher.rows.written", float64(len(rows)))
	if p.sink != nil {
		p.sink.SetGauge("publisher.flush.duration_ms", time.Now().Sub(start).Seconds()*1000)
	}
	if debug {
		log.Printf("Publisher: flushed %d rows (%d unchanged skipped).", len(rows), skipped)
	}
	return len(rows)
}

// requeue puts back changes that failed to be written, unless a newer
// change for the same key arrived meanwhile.
func (p *Publisher) requeue(batch map[pendingKey]watermark.Change, keys []pendingKey) {
	p.lk.Lock()
	defer p.lk.Unlock()
	for _, k := range keys {
		if _, ok := p.pending[k]; !ok {
			p.pending[k] = batch[k]
		}
	}
}

func (p *Publisher) reportCount(name string, v float64) {
	if p.sink != nil && v != 0 {
		p.sink.AddCount(name, v)
	}
}

// Pending returns the number of changes waiting to be written.
func (p *Publisher) Pending() int {
	p.lk.Lock()
	defer p.lk.Unlock()
	return len(p.pending)
}

type Stats struct {
	Flushes, Rows, Skipped, Errors int64
}

func (p *Publisher) Stats() Stats {
	return Stats{
		Flushes: atomic.LoadInt64(&p.nFlushes),
		Rows:    atomic.LoadInt64(&p.nRows),
		Skipped: atomic.LoadInt64(&p.nSkipped),
		Errors:  atomic.LoadInt64(&p.nErrors),
	}
}
