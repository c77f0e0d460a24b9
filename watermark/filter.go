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
	"strings"

	"github.com/tgres/wmd/resource"
)

// Filter selects entries by resource attributes. A zero field matches
// anything, so the zero Filter matches every entry.
type Filter struct {
	Class   resource.Class
	Subtype resource.Subtype
	Kind    resource.StatKind
}

func (f Filter) Match(r *resource.Resource, k resource.StatKind) bool {
	if f.Class != 0 && f.Class != r.Class {
		return false
	}
	if f.Subtype != 0 && f.Subtype != r.Subtype {
		return false
	}
	if f.Kind != 0 && f.Kind != k {
		return false
	}
	return true
}

func (f Filter) String() string {
	parts := make([]string, 0, 3)
	if f.Class != 0 {
		parts = append(parts, "class="+f.Class.String())
	}
	if f.Subtype != 0 {
		parts = append(parts, "subtype="+f.Subtype.String())
	}
	if f.Kind != 0 {
		parts = append(parts, "stat="+f.Kind.String())
	}
	if len(parts) == 0 {
		return "{all}"
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, " "))
}

// ParseFilter builds a filter from its textual parts, any of which
// may be empty.
func ParseFilter(class, subtype, stat string) (Filter, error) {
	var (
		f   Filter
		err error
	)
	if f.Class, err = resource.ParseClass(class); err != nil {
		return f, err
	}
	if f.Subtype, err = resource.ParseSubtype(subtype); err != nil {
		return f, err
	}
	if f.Kind, err = resource.ParseStatKind(stat); err != nil {
		return f, err
	}
	return f, nil
}
