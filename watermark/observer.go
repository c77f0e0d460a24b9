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

// Change is sent to observers when the exported value of a view
// changes. Seq orders changes of the same entry; a sink that may see
// notifications out of order should keep the highest Seq.
type Change struct {
	View     View
	Resource *resource.Resource
	Kind     resource.StatKind
	Value    uint64
	Seq      uint64
}

func (c Change) Key() resource.Key {
	return resource.Key{ID: c.Resource.ID, Kind: c.Kind}
}

// ChangeFunc is called synchronously after a mutation, never with an
// entry lock held. It should not block for long, it runs on the
// sampling path.
type ChangeFunc func(Change)

type observerEntry struct {
	id int
	f  ChangeFunc
}

type observers struct {
	sync.RWMutex
	list []observerEntry
}

func (o *observers) register(f ChangeFunc) (unregister func()) {
	o.Lock()
	defer o.Unlock()

	var id int
	if len(o.list) > 0 {
		id = o.list[len(o.list)-1].id + 1
	}
	// copy on write, notify() iterates a snapshot without the lock
	list := make([]observerEntry, len(o.list), len(o.list)+1)
	copy(list, o.list)
	o.list = append(list, observerEntry{id: id, f: f})

	return func() {
		o.Lock()
		defer o.Unlock()

		list := make([]observerEntry, 0, len(o.list))
		for _, entry := range o.list {
			if entry.id != id {
				list = append(list, entry)
			}
		}
		o.list = list
	}
}

func (o *observers) notify(cs ...Change) {
	if len(cs) == 0 {
		return
	}
	o.RLock()
	list := o.list
	o.RUnlock()
	for _, entry := range list {
		for _, c := range cs {
			entry.f(c)
		}
	}
}
