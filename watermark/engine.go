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
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tgres/wmd/resource"
)

// Engine ties a Store to the Scheduler that closes its periodic
// window. Ingest, Clear, Read and OnViewChanged come from the Store.
type Engine struct {
	*Store
	sched *Scheduler
}

// NewEngine creates a store for every pair of reg. The scheduler is
// not started until Start is called. A nil clk means the real clock.
func NewEngine(reg *resource.Registry, interval time.Duration, clk clock.Clock) (*Engine, error) {
	store := NewStore(reg)
	sched, err := NewScheduler(store, interval, clk)
	if err != nil {
		return nil, err
	}
	return &Engine{Store: store, sched: sched}, nil
}

func (e *Engine) Start() error { return e.sched.Start() }
func (e *Engine) Stop()        { e.sched.Stop() }

// maxIntervalSeconds is the longest interval a time.Duration can hold.
const maxIntervalSeconds = math.MaxInt64 / int64(time.Second)

// ConfigureInterval sets the telemetry interval in seconds.
func (e *Engine) ConfigureInterval(seconds int) error {
	if seconds <= 0 || int64(seconds) > maxIntervalSeconds {
		return fmt.Errorf("%d seconds: %w", seconds, ErrInvalidInterval)
	}
	return e.sched.ConfigureInterval(time.Duration(seconds) * time.Second)
}

func (e *Engine) Interval() time.Duration { return e.sched.Interval() }

func (e *Engine) Scheduler() *Scheduler { return e.sched }
