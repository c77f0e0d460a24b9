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

package serde

import (
	"sort"
	"sync"

	"github.com/tgres/wmd/watermark"
)

type rowKey struct {
	name, stat string
}

type memSerDe struct {
	*sync.RWMutex
	tables map[watermark.View]map[rowKey]Row
}

// Returns a SerDe which keeps everything in memory.
func NewMemSerDe() *memSerDe {
	m := &memSerDe{RWMutex: &sync.RWMutex{}}
	m.Truncate()
	return m
}

func (m *memSerDe) Fetcher() Fetcher { return m }
func (m *memSerDe) Flusher() Flusher { return m }
func (m *memSerDe) Close() error     { return nil }

func (m *memSerDe) Truncate() error {
	m.Lock()
	defer m.Unlock()
	m.tables = make(map[watermark.View]map[rowKey]Row, len(watermark.Views))
	for _, v := range watermark.Views {
		m.tables[v] = make(map[rowKey]Row)
	}
	return nil
}

func (m *memSerDe) FlushRows(rows []Row) (int, error) {
	m.Lock()
	defer m.Unlock()
	for _, r := range rows {
		if t := m.tables[r.View]; t != nil {
			t[rowKey{r.Name, r.Stat}] = r
		}
	}
	return len(rows), nil
}

func (m *memSerDe) FetchRows(view watermark.View) ([]Row, error) {
	m.RLock()
	defer m.RUnlock()
	result := make([]Row, 0, len(m.tables[view]))
	for _, r := range m.tables[view] {
		result = append(result, r)
	}
	sortRows(result)
	return result, nil
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Stat < rows[j].Stat
	})
}
