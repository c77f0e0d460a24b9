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

package http

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tgres/wmd/resource"
	"github.com/tgres/wmd/watermark"
)

const port = "Ethernet0"

// 4 queues (2 unicast, 2 multicast) and 1 priority group
func testEngine(t *testing.T) *watermark.Engine {
	rs, err := resource.Enumerate([]resource.PortLayout{{Name: port, Queues: 4, PriorityGroups: 1}})
	if err != nil {
		t.Fatal(err)
	}
	reg, err := resource.NewRegistry(rs)
	if err != nil {
		t.Fatal(err)
	}
	e, err := watermark.NewEngine(reg, watermark.DefaultInterval, clock.NewMock())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

type fakeFlusher struct{ called int }

func (f *fakeFlusher) Flush() { f.called++ }

type queued struct {
	id   resource.ID
	kind resource.StatKind
	v    uint64
}

type fakeQueuer struct{ samples []queued }

func (f *fakeQueuer) QueueSample(id resource.ID, kind resource.StatKind, v uint64) {
	f.samples = append(f.samples, queued{id, kind, v})
}

func postForm(h http.HandlerFunc, vals url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/", strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func Test_WatermarksHandler(t *testing.T) {
	e := testEngine(t)
	e.Ingest(resource.QueueID(port, 0), resource.SharedBufferBytes, 100)
	e.Ingest(resource.QueueID(port, 3), resource.SharedBufferBytes, 300)
	e.Ingest(resource.PGID(port, 0), resource.HeadroomBytes, 50)

	h := WatermarksHandler(e)

	req := httptest.NewRequest("GET", "/watermarks?view=user&class=queue&subtype=multicast", nil)
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var rows []WatermarkRow
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 multicast queues, got %d: %v", len(rows), rows)
	}
	if rows[1].ID != string(resource.QueueID(port, 3)) || rows[1].Value != 300 || rows[1].Field != resource.QueueSharedField {
		t.Errorf("unexpected row: %+v", rows[1])
	}
	if rows[0].Value != 0 {
		t.Errorf("queue 2 should be 0, got %d", rows[0].Value)
	}

	// gzip
	req = httptest.NewRequest("GET", "/watermarks?view=persistent&class=pg&stat=headroom", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	h(w, req)
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("response not gzipped")
	}
	gz, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	rows = nil
	if err := json.NewDecoder(gz).Decode(&rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Value != 50 || rows[0].Stat != "headroom" {
		t.Errorf("unexpected rows: %+v", rows)
	}

	for _, q := range []string{"view=bogus", "view=user&class=bogus", "view=user&stat=bogus"} {
		w = httptest.NewRecorder()
		h(w, httptest.NewRequest("GET", "/watermarks?"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func Test_ClearHandler(t *testing.T) {
	e := testEngine(t)
	id := resource.QueueID(port, 0)
	e.Ingest(id, resource.SharedBufferBytes, 500)
	e.Ingest(id, resource.SharedBufferBytes, 20)

	fl := &fakeFlusher{}
	h := ClearHandler(e, fl)

	w := postForm(h, url.Values{"view": {"user"}, "class": {"queue"}, "subtype": {"unicast"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var res ClearResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Cleared != 2 || res.View != "user" {
		t.Errorf("unexpected result: %+v", res)
	}
	if fl.called != 1 {
		t.Errorf("Flush should be called once, called %d", fl.called)
	}
	if v, _ := e.Read(watermark.User, id, resource.SharedBufferBytes); v != 20 {
		t.Errorf("user view should be reseeded to 20, got %d", v)
	}
	if v, _ := e.Read(watermark.Persistent, id, resource.SharedBufferBytes); v != 500 {
		t.Errorf("persistent view should be untouched, got %d", v)
	}

	// queues have no headroom
	w = postForm(h, url.Values{"view": {"persistent"}, "class": {"queue"}, "stat": {"headroom"}})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	for _, vals := range []url.Values{
		{"view": {"periodic"}},
		{"view": {"bogus"}},
		{"view": {"user"}, "subtype": {"bogus"}},
	} {
		if w = postForm(h, vals); w.Code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", vals, w.Code)
		}
	}
	if fl.called != 1 {
		t.Errorf("Flush should not be called on failure, called %d", fl.called)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/clear?view=user", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: expected 405, got %d", w.Code)
	}
}

func Test_IntervalHandler(t *testing.T) {
	e := testEngine(t)
	h := IntervalHandler(e)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/interval", nil))
	var res IntervalResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Seconds != 120 {
		t.Errorf("expected 120, got %d", res.Seconds)
	}

	w = postForm(h, url.Values{"seconds": {"5"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if e.Interval() != 5*time.Second {
		t.Errorf("interval not changed: %v", e.Interval())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || res.Seconds != 5 {
		t.Errorf("expected 5 seconds in effect, got %+v (%v)", res, err)
	}

	for _, s := range []string{"0", "-1", "abc", "18446744074"} {
		if w = postForm(h, url.Values{"seconds": {s}}); w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", s, w.Code)
		}
	}
	if e.Interval() != 5*time.Second {
		t.Errorf("invalid interval must not change it: %v", e.Interval())
	}
}

func Test_SampleHandler(t *testing.T) {
	q := &fakeQueuer{}
	h := SampleHandler(q)

	vals := url.Values{
		"queue:Ethernet0:1/shared": {"1234"},
		"pg:Ethernet0:0/headroom":  {"7"},
	}
	// device field names are accepted, ids are sanitized
	vals.Set("pg:Ethernet 0:0/"+resource.PGSharedField, "8")
	w := postForm(h, vals)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(q.samples) != 3 {
		t.Fatalf("expected 3 samples, got %v", q.samples)
	}
	found := map[queued]bool{}
	for _, s := range q.samples {
		found[s] = true
	}
	for _, want := range []queued{
		{resource.QueueID(port, 1), resource.SharedBufferBytes, 1234},
		{resource.PGID(port, 0), resource.HeadroomBytes, 7},
		{"pg:Ethernet_0:0", resource.SharedBufferBytes, 8},
	} {
		if !found[want] {
			t.Errorf("sample %v not queued", want)
		}
	}

	q.samples = nil
	for _, vals := range []url.Values{
		{"queue:Ethernet0:1": {"1"}},
		{"queue:Ethernet0:1/all": {"1"}},
		{"queue:Ethernet0:1/bogus": {"1"}},
		{"queue:Ethernet0:1/shared": {"-1"}},
		{"queue:Ethernet0:1/shared": {"1", "x"}},
	} {
		if w = postForm(h, vals); w.Code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", vals, w.Code)
		}
	}
	if len(q.samples) != 0 {
		t.Errorf("nothing should be queued from a bad request: %v", q.samples)
	}
}
