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
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/tgres/wmd/misc"
	"github.com/tgres/wmd/resource"
)

type sampleQueuer interface {
	QueueSample(id resource.ID, kind resource.StatKind, v uint64)
}

// parseSampleKey splits "queue:Ethernet0:3/shared" into id and kind.
func parseSampleKey(key string) (resource.ID, resource.StatKind, error) {
	i := strings.LastIndex(key, "/")
	if i < 1 || i == len(key)-1 {
		return "", 0, fmt.Errorf("expected <resource-id>/<stat>, got %q", key)
	}
	kind, err := resource.ParseStatKind(key[i+1:])
	if err != nil {
		return "", 0, err
	}
	if kind == 0 {
		return "", 0, fmt.Errorf("%q: a sample needs a specific stat", key)
	}
	return resource.ID(misc.SanitizeId(key[:i])), kind, nil
}

// SampleHandler accepts samples as form values, e.g.
//
//   POST /sample
//   queue:Ethernet0:3/shared=1234&pg:Ethernet0:0/headroom=0
//
// Samples are queued, so an unknown resource is only detected (and
// logged) by the receiver. Malformed input is rejected with 400 and
// nothing from the request is queued.
func SampleHandler(q sampleQueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer recoverRequest("SampleHandler", w)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			log.Printf("SampleHandler: error from ParseForm(): %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type sample struct {
			id   resource.ID
			kind resource.StatKind
			v    uint64
		}
		var samples []sample
		for key, vals := range r.PostForm {
			id, kind, err := parseSampleKey(key)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			for _, valStr := range vals {
				v, err := strconv.ParseUint(strings.TrimSpace(valStr), 10, 64)
				if err != nil {
					log.Printf("SampleHandler: error parsing %q", valStr)
					http.Error(w, fmt.Sprintf("%s: invalid value %q", key, valStr), http.StatusBadRequest)
					return
				}
				samples = append(samples, sample{id, kind, v})
			}
		}

		for _, s := range samples {
			q.QueueSample(s.id, s.kind, s.v)
		}
		fmt.Fprintf(w, "%d\n", len(samples))
	}
}
