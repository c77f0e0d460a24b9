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

// Package watermark keeps peak buffer occupancy for every tracked
// (resource, statistic kind) pair and exposes it through three views
// with independent reset rules:
//
//   Persistent - peak since start or the last persistent clear
//   Periodic   - peak of the last completed telemetry interval
//   User       - peak since start or the last user clear
//
// Samples raise all three maxima at once. A periodic tick freezes the
// window peak into the Periodic view and starts a new window. A clear
// resets Persistent or User, for the entries matching a Filter, to the
// most recent raw sample rather than to zero, so that a resource which
// is still congested keeps reporting its current level.
package watermark

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var debug bool

func init() {
	debug = os.Getenv("WMD_DEBUG") != ""
}

var (
	// ErrInvalidResource is returned for a (resource, kind) pair
	// that is not tracked, e.g. headroom on a queue.
	ErrInvalidResource = errors.New("invalid resource")

	// ErrNoMatchingResource is returned by Clear when the filter
	// matches nothing. It is not fatal, an operator may
	// legitimately target an empty subset.
	ErrNoMatchingResource = errors.New("no matching resource")

	// ErrInvalidInterval is returned for a non-positive interval,
	// the previous interval stays in effect.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrInvalidView is returned when clearing a view that cannot be
	// cleared (Periodic) or an unknown view.
	ErrInvalidView = errors.New("invalid view")
)

type View int

const (
	Persistent View = iota
	Periodic
	User
)

// Views lists all views in a stable order.
var Views = []View{Persistent, Periodic, User}

func (v View) String() string {
	switch v {
	case Persistent:
		return "persistent"
	case Periodic:
		return "periodic"
	case User:
		return "user"
	}
	return fmt.Sprintf("View(%d)", int(v))
}

// Table is the name external readers know the view by.
func (v View) Table() string {
	return strings.ToUpper(v.String()) + "_WATERMARKS"
}

func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "persistent", "persistent-watermark":
		return Persistent, nil
	case "periodic":
		return Periodic, nil
	case "user", "watermark":
		return User, nil
	}
	return 0, fmt.Errorf("%w: %q (valid: persistent, periodic, user)", ErrInvalidView, s)
}
