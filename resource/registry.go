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

package resource

import (
	"fmt"
)

// Registry is the fixed set of resources known to the process. It is
// read-only once created and safe for concurrent use.
type Registry struct {
	byId  map[ID]*Resource
	order []*Resource
	keys  []Key
}

// NewRegistry validates the resources and builds a registry. The
// order of resources is preserved for iteration.
func NewRegistry(rs []Resource) (*Registry, error) {
	reg := &Registry{
		byId:  make(map[ID]*Resource, len(rs)),
		order: make([]*Resource, 0, len(rs)),
	}
	for i := range rs {
		r := rs[i] // copy, the caller keeps theirs
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, ok := reg.byId[r.ID]; ok {
			return nil, fmt.Errorf("duplicate resource id: %q", r.ID)
		}
		reg.byId[r.ID] = &r
		reg.order = append(reg.order, &r)
		for _, k := range r.Class.StatKinds() {
			reg.keys = append(reg.keys, Key{ID: r.ID, Kind: k})
		}
	}
	return reg, nil
}

func (reg *Registry) Lookup(id ID) (*Resource, bool) {
	r, ok := reg.byId[id]
	return r, ok
}

// Valid reports whether (id, kind) is a tracked pair.
func (reg *Registry) Valid(id ID, kind StatKind) bool {
	r, ok := reg.byId[id]
	return ok && r.Class.Applies(kind)
}

// Resources returns the resources in registration order. The slice
// must not be modified.
func (reg *Registry) Resources() []*Resource { return reg.order }

// Keys returns every tracked (resource, kind) pair in registration
// order. The slice must not be modified.
func (reg *Registry) Keys() []Key { return reg.keys }

func (reg *Registry) Len() int { return len(reg.order) }

// PortLayout describes the buffer resources of one port. When
// UnicastQueues is nil, the first half of the queues are unicast and
// the rest multicast.
type PortLayout struct {
	Name           string
	Queues         int
	UnicastQueues  *int
	PriorityGroups int
}

// QueueID and PGID build the resource ids Enumerate assigns.
func QueueID(port string, idx int) ID { return ID(fmt.Sprintf("queue:%s:%d", port, idx)) }
func PGID(port string, idx int) ID    { return ID(fmt.Sprintf("pg:%s:%d", port, idx)) }

// Enumerate expands port layouts into resources: queues first, then
// priority groups, port by port.
func Enumerate(ports []PortLayout) ([]Resource, error) {
	var result []Resource
	for _, p := range ports {
		if p.Name == "" {
			return nil, fmt.Errorf("port with empty name")
		}
		if p.Queues < 0 || p.PriorityGroups < 0 {
			return nil, fmt.Errorf("port %q: negative queue or priority group count", p.Name)
		}
		nuc := p.Queues / 2
		if p.UnicastQueues != nil {
			nuc = *p.UnicastQueues
		}
		if nuc < 0 || nuc > p.Queues {
			return nil, fmt.Errorf("port %q: unicast-queues (%d) must be between 0 and queues (%d)", p.Name, nuc, p.Queues)
		}
		for i := 0; i < p.Queues; i++ {
			st := Multicast
			if i < nuc {
				st = Unicast
			}
			result = append(result, Resource{
				ID:      QueueID(p.Name, i),
				Name:    fmt.Sprintf("%s:%d", p.Name, i),
				Class:   Queue,
				Subtype: st,
			})
		}
		for i := 0; i < p.PriorityGroups; i++ {
			result = append(result, Resource{
				ID:      PGID(p.Name, i),
				Name:    fmt.Sprintf("%s:%d", p.Name, i),
				Class:   PriorityGroup,
				Subtype: SubtypeNone,
			})
		}
	}
	return result, nil
}
