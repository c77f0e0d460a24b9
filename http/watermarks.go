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

// Package http is the operator surface: reading the watermark views,
// clearing them, changing the telemetry interval and submitting
// samples.
package http

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tgres/wmd/resource"
	"github.com/tgres/wmd/watermark"
)

type viewWalker interface {
	Walk(view watermark.View, f watermark.Filter, fn func(r *resource.Resource, kind resource.StatKind, value uint64) bool)
}

type viewClearer interface {
	Clear(view watermark.View, f watermark.Filter) (int, error)
}

type intervalConfigurer interface {
	ConfigureInterval(seconds int) error
	Interval() time.Duration
}

// Flusher is told to publish right away after a clear, so that
// readers of the stored views see it without waiting for the next
// publish interval.
type Flusher interface {
	Flush()
}

// WatermarkRow is one entry of the GET /watermarks response.
type WatermarkRow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Class   string `json:"class"`
	Subtype string `json:"subtype"`
	Stat    string `json:"stat"`
	Field   string `json:"field"`
	Value   uint64 `json:"value"`
}

// ClearResult is the response of POST /clear.
type ClearResult struct {
	View    string `json:"view"`
	Filter  string `json:"filter"`
	Cleared int    `json:"cleared"`
	Error   string `json:"error,omitempty"`
}

type IntervalResult struct {
	Seconds int    `json:"seconds"`
	Error   string `json:"error,omitempty"`
}

func parseFilter(r *http.Request) (watermark.Filter, error) {
	return watermark.ParseFilter(r.FormValue("class"), r.FormValue("subtype"), r.FormValue("stat"))
}

func writeJson(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJson: %v", err)
	}
}

func recoverRequest(name string, w http.ResponseWriter) {
	if rc := recover(); rc != nil {
		log.Printf("%s: Recovered (this request is dropped): %v", name, rc)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// WatermarksHandler lists a view: GET /watermarks?view=user&class=queue&subtype=unicast&stat=shared.
// Every parameter but view is optional.
func WatermarksHandler(src viewWalker) http.HandlerFunc {
	return makeGzipHandler(func(w http.ResponseWriter, r *http.Request) {
		defer recoverRequest("WatermarksHandler", w)

		view, err := watermark.ParseView(r.FormValue("view"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, err := parseFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rows := []WatermarkRow{}
		src.Walk(view, f, func(res *resource.Resource, kind resource.StatKind, value uint64) bool {
			rows = append(rows, WatermarkRow{
				ID:      string(res.ID),
				Name:    res.Name,
				Class:   res.Class.String(),
				Subtype: res.Subtype.String(),
				Stat:    kind.String(),
				Field:   kind.Field(res.Class),
				Value:   value,
			})
			return true
		})
		writeJson(w, http.StatusOK, rows)
	})
}

// ClearHandler clears the persistent or user view of the matching
// entries: POST /clear with form values view, class, subtype, stat.
// A filter matching nothing is reported with 404.
func ClearHandler(c viewClearer, fl Flusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer recoverRequest("ClearHandler", w)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res := ClearResult{View: r.FormValue("view")}
		view, err := watermark.ParseView(res.View)
		if err != nil {
			res.Error = err.Error()
			writeJson(w, http.StatusBadRequest, res)
			return
		}
		res.View = view.String()
		f, err := parseFilter(r)
		if err != nil {
			res.Error = err.Error()
			writeJson(w, http.StatusBadRequest, res)
			return
		}
		res.Filter = f.String()

		n, err := c.Clear(view, f)
		res.Cleared = n
		switch {
		case errors.Is(err, watermark.ErrNoMatchingResource):
			res.Error = err.Error()
			writeJson(w, http.StatusNotFound, res)
			return
		case err != nil:
			res.Error = err.Error()
			writeJson(w, http.StatusBadRequest, res)
			return
		}

		log.Printf("ClearHandler: cleared %v watermarks %v: %d entries", view, f, n)
		if fl != nil {
			fl.Flush()
		}
		writeJson(w, http.StatusOK, res)
	}
}

// IntervalHandler reports the telemetry interval on GET and changes it
// on POST with form value seconds.
func IntervalHandler(c intervalConfigurer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer recoverRequest("IntervalHandler", w)

		switch r.Method {
		case http.MethodGet:
			writeJson(w, http.StatusOK, IntervalResult{Seconds: int(c.Interval() / time.Second)})
			return
		case http.MethodPost:
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "GET or POST required", http.StatusMethodNotAllowed)
			return
		}

		s := r.FormValue("seconds")
		seconds, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			writeJson(w, http.StatusBadRequest, IntervalResult{
				Seconds: int(c.Interval() / time.Second),
				Error:   fmt.Sprintf("invalid seconds %q: %v", s, err),
			})
			return
		}
		if err := c.ConfigureInterval(seconds); err != nil {
			writeJson(w, http.StatusBadRequest, IntervalResult{Seconds: int(c.Interval() / time.Second), Error: err.Error()})
			return
		}
		writeJson(w, http.StatusOK, IntervalResult{Seconds: int(c.Interval() / time.Second)})
	}
}

type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func makeGzipHandler(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			fn(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gzr := gzipResponseWriter{Writer: gz, ResponseWriter: w}
		fn(gzr, r)
	}
}
