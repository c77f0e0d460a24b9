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

import "testing"

func Test_ParseStatKind(t *testing.T) {
	for s, want := range map[string]StatKind{
		"shared":         SharedBufferBytes,
		"Headroom":       HeadroomBytes,
		"":               0,
		"all":            0,
		QueueSharedField: SharedBufferBytes,
		PGSharedField:    SharedBufferBytes,
		PGHeadroomField:  HeadroomBytes,
	} {
		got, err := ParseStatKind(s)
		if err != nil {
			t.Errorf("ParseStatKind(%q): unexpected error %v", s, err)
		}
		if got != want {
			t.Errorf("ParseStatKind(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseStatKind("bogus"); err == nil {
		t.Errorf("ParseStatKind(bogus): expected error")
	}
}

func Test_ParseClassSubtype(t *testing.T) {
	if c, _ := ParseClass("pg"); c != PriorityGroup {
		t.Errorf("pg should parse as PriorityGroup, got %v", c)
	}
	if c, _ := ParseClass("queue"); c != Queue {
		t.Errorf("queue should parse as Queue, got %v", c)
	}
	if _, err := ParseClass("port"); err == nil {
		t.Errorf("port is not a class")
	}
	if s, _ := ParseSubtype("all"); s != 0 {
		t.Errorf("all should parse as zero subtype, got %v", s)
	}
	if s, _ := ParseSubtype("multicast"); s != Multicast {
		t.Errorf("multicast should parse as Multicast, got %v", s)
	}
	if _, err := ParseSubtype("broadcast"); err == nil {
		t.Errorf("broadcast is not a subtype")
	}
}

func Test_StatKind_Field(t *testing.T) {
	if f := SharedBufferBytes.Field(Queue); f != QueueSharedField {
		t.Errorf("queue shared field: %q", f)
	}
	if f := HeadroomBytes.Field(PriorityGroup); f != PGHeadroomField {
		t.Errorf("pg headroom field: %q", f)
	}
	if f := HeadroomBytes.Field(Queue); f != unknownCounterField {
		t.Errorf("queues have no headroom field, got %q", f)
	}
}

func Test_Class_Applies(t *testing.T) {
	if Queue.Applies(HeadroomBytes) {
		t.Errorf("headroom does not apply to queues")
	}
	if !Queue.Applies(SharedBufferBytes) {
		t.Errorf("shared applies to queues")
	}
	if len(PriorityGroup.StatKinds()) != 2 {
		t.Errorf("priority groups track shared and headroom")
	}
}

func Test_NewRegistry(t *testing.T) {
	reg, err := NewRegistry([]Resource{
		{ID: "q0", Class: Queue, Subtype: Unicast},
		{ID: "pg0", Class: PriorityGroup},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d", reg.Len())
	}
	if len(reg.Keys()) != 3 {
		t.Errorf("expected 3 keys (1 queue + 2 pg), got %d", len(reg.Keys()))
	}
	pg, ok := reg.Lookup("pg0")
	if !ok || pg.Subtype != SubtypeNone {
		t.Errorf("pg0 should be registered with SubtypeNone: %v", pg)
	}
	if pg.Name != "pg0" {
		t.Errorf("name should default to id, got %q", pg.Name)
	}
	if reg.Valid("q0", HeadroomBytes) {
		t.Errorf("q0 headroom should not be valid")
	}
	if !reg.Valid("pg0", HeadroomBytes) {
		t.Errorf("pg0 headroom should be valid")
	}
	if reg.Valid("nope", SharedBufferBytes) {
		t.Errorf("unknown id should not be valid")
	}
}

func Test_NewRegistry_errors(t *testing.T) {
	bad := [][]Resource{
		{{ID: "q0", Class: Queue}},                                        // no subtype
		{{ID: "pg0", Class: PriorityGroup, Subtype: Unicast}},             // pg with subtype
		{{ID: "x", Class: Class(7)}},                                      // bad class
		{{ID: "", Class: PriorityGroup}},                                  // no id
		{{ID: "a", Class: PriorityGroup}, {ID: "a", Class: PriorityGroup}}, // dup
	}
	for i, rs := range bad {
		if _, err := NewRegistry(rs); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func Test_Enumerate(t *testing.T) {
	rs, err := Enumerate([]PortLayout{{Name: "Ethernet0", Queues: 16, PriorityGroups: 8}})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(rs) != 24 {
		t.Fatalf("expected 24 resources, got %d", len(rs))
	}
	for i := 0; i < 16; i++ {
		want := Unicast
		if i >= 8 {
			want = Multicast
		}
		if rs[i].Subtype != want {
			t.Errorf("queue %d: subtype %v, want %v", i, rs[i].Subtype, want)
		}
	}
	if rs[3].ID != QueueID("Ethernet0", 3) || rs[3].Name != "Ethernet0:3" {
		t.Errorf("unexpected queue naming: %v %q", rs[3].ID, rs[3].Name)
	}
	if rs[16].ID != PGID("Ethernet0", 0) || rs[16].Class != PriorityGroup {
		t.Errorf("unexpected pg: %v", rs[16])
	}

	three := 3
	rs, _ = Enumerate([]PortLayout{{Name: "Ethernet4", Queues: 4, UnicastQueues: &three}})
	if rs[2].Subtype != Unicast || rs[3].Subtype != Multicast {
		t.Errorf("unicast-queues override not honoured")
	}

	five := 5
	if _, err := Enumerate([]PortLayout{{Name: "Ethernet8", Queues: 4, UnicastQueues: &five}}); err == nil {
		t.Errorf("more unicast queues than queues should fail")
	}
	if _, err := Enumerate([]PortLayout{{Queues: 4}}); err == nil {
		t.Errorf("empty port name should fail")
	}
}
