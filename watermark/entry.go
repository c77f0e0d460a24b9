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
	"sync"

	"github.com/tgres/wmd/resource"
)

// Entry is a copy of the state kept for one (resource, kind) pair.
//
// This is how a single entry evolves, samples arriving left to right,
// with a periodic tick (T) and a user clear (C):
//
//   sample      100   50    T     30    C     20    T
//   window      100  100    0     30   30     30    0
//   periodic      0    0  100    100  100    100   30
//   persistent  100  100  100    100  100    100  100
//   user        100  100  100    100   30     30   30
//
// The user clear re-seeds the view with the last raw sample (30), not 0.
type Entry struct {
	WindowPeak    uint64
	Periodic      uint64
	Persistent    uint64
	User          uint64
	LastRawSample uint64
	Seq           uint64 // incremented on every mutation
}

// Value returns the exported value of a view.
func (e *Entry) Value(v View) uint64 {
	switch v {
	case Persistent:
		return e.Persistent
	case Periodic:
		return e.Periodic
	case User:
		return e.User
	}
	return 0
}

type entry struct {
	sync.Mutex
	res  *resource.Resource
	kind resource.StatKind
	Entry
}

// addSample applies a raw sample to all maxima. Returns whether the
// persistent and user values changed. Must be called with the lock
// held.
func (e *entry) addSample(v uint64) (persistent, user bool) {
	e.LastRawSample = v
	if v > e.WindowPeak {
		e.WindowPeak = v
	}
	if v > e.Persistent {
		e.Persistent = v
		persistent = true
	}
	if v > e.User {
		e.User = v
		user = true
	}
	e.Seq++
	return persistent, user
}

// snapshot freezes the window peak into the periodic view and starts
// a new window. Must be called with the lock held.
func (e *entry) snapshot() {
	e.Periodic = e.WindowPeak
	e.WindowPeak = 0
	e.Seq++
}

// clear re-seeds a persistent or user view with the last raw sample
// and reports whether the value changed. Must be called with the lock
// held.
func (e *entry) clear(v View) bool {
	var p *uint64
	switch v {
	case Persistent:
		p = &e.Persistent
	case User:
		p = &e.User
	default:
		return false
	}
	old := *p
	*p = e.LastRawSample
	e.Seq++
	return old != *p
}

// change builds the notification for a view. Must be called with the
// lock held.
func (e *entry) change(v View) Change {
	return Change{View: v, Resource: e.res, Kind: e.kind, Value: e.Value(v), Seq: e.Seq}
}
