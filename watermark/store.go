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
	"log"

	"github.com/tgres/wmd/resource"
)

// Store holds a watermark entry for every (resource, kind) pair of a
// registry. Entries are created up front and never removed, so the
// map is only read after NewStore returns and needs no lock. Each
// entry has its own lock; operations spanning many entries (Clear,
// SnapshotAndResetWindow) take them one at a time.
type Store struct {
	reg     *resource.Registry
	entries map[resource.Key]*entry
	order   []*entry
	obs     observers
}

func NewStore(reg *resource.Registry) *Store {
	keys := reg.Keys()
	s := &Store{
		reg:     reg,
		entries: make(map[resource.Key]*entry, len(keys)),
		order:   make([]*entry, 0, len(keys)),
	}
	for _, k := range keys {
		r, _ := reg.Lookup(k.ID)
		e := &entry{res: r, kind: k.Kind}
		s.entries[k] = e
		s.order = append(s.order, e)
	}
	return s
}

func (s *Store) Registry() *resource.Registry { return s.reg }

// Len returns the number of tracked entries.
func (s *Store) Len() int { return len(s.order) }

// OnViewChanged registers f to be called whenever the exported value
// of a view changes. The returned function unregisters it.
func (s *Store) OnViewChanged(f ChangeFunc) (unregister func()) {
	return s.obs.register(f)
}

func (s *Store) lookup(id resource.ID, kind resource.StatKind) (*entry, error) {
	e := s.entries[resource.Key{ID: id, Kind: kind}]
	if e == nil {
		return nil, fmt.Errorf("%s/%s: %w", id, kind, ErrInvalidResource)
	}
	return e, nil
}

// Ingest applies a raw sample. Nothing is mutated if the pair is not
// tracked.
func (s *Store) Ingest(id resource.ID, kind resource.StatKind, raw uint64) error {
	e, err := s.lookup(id, kind)
	if err != nil {
		return err
	}

	var (
		cs [2]Change
		n  int
	)
	e.Lock()
	persistent, user := e.addSample(raw)
	if persistent {
		cs[n] = e.change(Persistent)
		n++
	}
	if user {
		cs[n] = e.change(User)
		n++
	}
	e.Unlock()

	s.obs.notify(cs[:n]...)
	return nil
}

// Clear re-seeds the persistent or user view of every entry matching
// f with that entry's last raw sample. Returns the number of entries
// matched. ErrNoMatchingResource is returned (with 0) if none match.
func (s *Store) Clear(view View, f Filter) (int, error) {
	if view != Persistent && view != User {
		return 0, fmt.Errorf("%w: the %v view cannot be cleared", ErrInvalidView, view)
	}

	var matched, changed int
	for _, e := range s.order {
		if !f.Match(e.res, e.kind) {
			continue
		}
		matched++

		e.Lock()
		ok := e.clear(view)
		c := e.change(view)
		e.Unlock()

		if ok {
			changed++
			s.obs.notify(c)
		}
	}

	if matched == 0 {
		return 0, fmt.Errorf("clear %v %v: %w", view, f, ErrNoMatchingResource)
	}
	if debug {
		log.Printf("Store.Clear(): %v %v: %d matched, %d changed", view, f, matched, changed)
	}
	return matched, nil
}

// SnapshotAndResetWindow moves every window peak into the periodic
// view and zeroes the window. The periodic view is announced for
// every entry, changed or not. Returns the number of entries.
func (s *Store) SnapshotAndResetWindow() int {
	for _, e := range s.order {
		e.Lock()
		e.snapshot()
		c := e.change(Periodic)
		e.Unlock()

		s.obs.notify(c)
	}
	return len(s.order)
}

// Read returns the exported value of a view for one pair.
func (s *Store) Read(view View, id resource.ID, kind resource.StatKind) (uint64, error) {
	e, err := s.lookup(id, kind)
	if err != nil {
		return 0, err
	}
	e.Lock()
	defer e.Unlock()
	return e.Value(view), nil
}

// Peek returns a copy of the complete state of one pair.
func (s *Store) Peek(id resource.ID, kind resource.StatKind) (Entry, error) {
	e, err := s.lookup(id, kind)
	if err != nil {
		return Entry{}, err
	}
	e.Lock()
	defer e.Unlock()
	return e.Entry, nil
}

// Walk calls fn, in registry order, with the value of a view for every
// entry matching f, until fn returns false. Values are read one entry
// at a time, so Walk is not a consistent snapshot across entries.
func (s *Store) Walk(view View, f Filter, fn func(r *resource.Resource, kind resource.StatKind, value uint64) bool) {
	for _, e := range s.order {
		if !f.Match(e.res, e.kind) {
			continue
		}
		e.Lock()
		v := e.Value(view)
		e.Unlock()
		if !fn(e.res, e.kind, v) {
			return
		}
	}
}

// Announce calls fn with the current value of every view of every
// entry. Used to seed an observer registered after the fact.
func (s *Store) Announce(fn ChangeFunc) {
	for _, e := range s.order {
		e.Lock()
		cs := [...]Change{e.change(Persistent), e.change(Periodic), e.change(User)}
		e.Unlock()
		for _, c := range cs {
			fn(c)
		}
	}
}
