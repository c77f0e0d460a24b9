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

// Package serde stores the exported watermark views where other
// processes can read them, one table per view, one row per resource
// and stat.
package serde

import (
	"time"

	"github.com/tgres/wmd/watermark"
)

// Row is the stored value of one view for one resource and stat.
type Row struct {
	View    watermark.View
	Name    string // resource name
	Stat    string // counter field name, e.g. SAI_QUEUE_STAT_SHARED_WATERMARK_BYTES
	Value   uint64
	Updated time.Time
}

// RowFromChange converts a view change notification to a row, leaving
// Updated for the caller to set.
func RowFromChange(c watermark.Change) Row {
	return Row{
		View:  c.View,
		Name:  c.Resource.Name,
		Stat:  c.Kind.Field(c.Resource.Class),
		Value: c.Value,
	}
}

type Flusher interface {
	// FlushRows inserts or replaces rows. Returns the number of
	// statements executed.
	FlushRows(rows []Row) (sqlOps int, err error)
}

type Fetcher interface {
	// FetchRows returns every stored row of a view, sorted by name
	// and stat.
	FetchRows(view watermark.View) ([]Row, error)
}

// This thing knows how to store watermark views in some storage.
type SerDe interface {
	Fetcher() Fetcher
	Flusher() Flusher
	// Truncate empties every view table. Values from a previous run
	// are meaningless, this is called once at startup.
	Truncate() error
	Close() error
}
