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

// Package resource describes the buffer consumers whose watermarks
// are tracked: egress queues and ingress priority groups. Resources
// and their attributes are fixed at startup.
//
// The zero value of Class, Subtype and StatKind is never a valid
// attribute of a resource, which lets filters use it to mean "any".
package resource

import (
	"fmt"
	"strings"
)

// ID is an opaque resource handle, e.g. "queue:Ethernet0:3".
type ID string

type Class int

const (
	Queue Class = iota + 1
	PriorityGroup
)

func (c Class) String() string {
	switch c {
	case Queue:
		return "queue"
	case PriorityGroup:
		return "priority-group"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// ParseClass accepts "queue", "priority-group" and "pg". An empty
// string parses as the zero Class.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "queue", "q":
		return Queue, nil
	case "priority-group", "pg":
		return PriorityGroup, nil
	}
	return 0, fmt.Errorf("invalid resource class: %q (valid: queue, priority-group)", s)
}

// Subtype is the traffic direction of a queue. Priority groups
// always have SubtypeNone.
type Subtype int

const (
	SubtypeNone Subtype = iota + 1
	Unicast
	Multicast
)

func (s Subtype) String() string {
	switch s {
	case SubtypeNone:
		return "none"
	case Unicast:
		return "unicast"
	case Multicast:
		return "multicast"
	}
	return fmt.Sprintf("Subtype(%d)", int(s))
}

// ParseSubtype accepts "unicast", "multicast" and "none". An empty
// string or "all" parses as the zero Subtype.
func ParseSubtype(s string) (Subtype, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return 0, nil
	case "none":
		return SubtypeNone, nil
	case "unicast", "uc":
		return Unicast, nil
	case "multicast", "mc":
		return Multicast, nil
	}
	return 0, fmt.Errorf("invalid queue type: %q (valid: unicast, multicast, all)", s)
}

type StatKind int

const (
	SharedBufferBytes StatKind = iota + 1
	HeadroomBytes
)

func (k StatKind) String() string {
	switch k {
	case SharedBufferBytes:
		return "shared"
	case HeadroomBytes:
		return "headroom"
	}
	return fmt.Sprintf("StatKind(%d)", int(k))
}

// Device counter field names, as found in the counters tables of the
// switch.
const (
	QueueSharedField    = "SAI_QUEUE_STAT_SHARED_WATERMARK_BYTES"
	PGSharedField       = "SAI_INGRESS_PRIORITY_GROUP_STAT_SHARED_WATERMARK_BYTES"
	PGHeadroomField     = "SAI_INGRESS_PRIORITY_GROUP_STAT_XOFF_ROOM_WATERMARK_BYTES"
	unknownCounterField = "UNKNOWN"
)

// Field returns the device counter field name for this kind of
// statistic for the given class.
func (k StatKind) Field(c Class) string {
	switch {
	case c == Queue && k == SharedBufferBytes:
		return QueueSharedField
	case c == PriorityGroup && k == SharedBufferBytes:
		return PGSharedField
	case c == PriorityGroup && k == HeadroomBytes:
		return PGHeadroomField
	}
	return unknownCounterField
}

// ParseStatKind accepts the short names ("shared", "headroom") as
// well as the device counter field names. An empty string or "all"
// parses as the zero StatKind.
func ParseStatKind(s string) (StatKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return 0, nil
	case "shared", "shared-buffer":
		return SharedBufferBytes, nil
	case "headroom", "xoff":
		return HeadroomBytes, nil
	}
	switch strings.TrimSpace(s) {
	case QueueSharedField, PGSharedField:
		return SharedBufferBytes, nil
	case PGHeadroomField:
		return HeadroomBytes, nil
	}
	return 0, fmt.Errorf("invalid statistic: %q (valid: shared, headroom)", s)
}

var statKindsByClass = map[Class][]StatKind{
	Queue:         {SharedBufferBytes},
	PriorityGroup: {SharedBufferBytes, HeadroomBytes},
}

// StatKinds returns the statistic kinds applicable to a class.
func (c Class) StatKinds() []StatKind {
	return statKindsByClass[c]
}

// Applies reports whether a statistic kind is tracked for the class.
func (c Class) Applies(k StatKind) bool {
	for _, kk := range statKindsByClass[c] {
		if kk == k {
			return true
		}
	}
	return false
}

// A Resource is a queue or a priority group. Name is the human
// readable "port:index" form used in operator output.
type Resource struct {
	ID      ID
	Name    string
	Class   Class
	Subtype Subtype
}

func (r *Resource) String() string {
	if r.Class == Queue {
		return fmt.Sprintf("%s(%s %s)", r.ID, r.Class, r.Subtype)
	}
	return fmt.Sprintf("%s(%s)", r.ID, r.Class)
}

func (r *Resource) validate() error {
	if r.ID == "" {
		return fmt.Errorf("resource with empty id")
	}
	switch r.Class {
	case Queue:
		if r.Subtype != Unicast && r.Subtype != Multicast {
			return fmt.Errorf("queue %q: subtype must be unicast or multicast, got %v", r.ID, r.Subtype)
		}
	case PriorityGroup:
		if r.Subtype == 0 {
			r.Subtype = SubtypeNone
		}
		if r.Subtype != SubtypeNone {
			return fmt.Errorf("priority group %q: cannot have subtype %v", r.ID, r.Subtype)
		}
	default:
		return fmt.Errorf("resource %q: invalid class %v", r.ID, r.Class)
	}
	if r.Name == "" {
		r.Name = string(r.ID)
	}
	return nil
}

// Key identifies one tracked (resource, statistic kind) pair.
type Key struct {
	ID   ID
	Kind StatKind
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.ID, k.Kind)
}
