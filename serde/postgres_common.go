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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/tgres/wmd/watermark"
)

// tableName returns the quoted table of a view, e.g. for prefix "wmd_"
// "wmd_persistent_watermarks".
func tableName(prefix string, v watermark.View) string {
	return pq.QuoteIdentifier(prefix + strings.ToLower(v.Table()))
}

func createSql(table string) string {
	return fmt.Sprintf(`
       CREATE TABLE IF NOT EXISTS %[1]s (
       name TEXT NOT NULL,
       stat TEXT NOT NULL,
       value BIGINT NOT NULL DEFAULT 0,
       updated TIMESTAMPTZ NOT NULL DEFAULT now(),
       PRIMARY KEY (name, stat));
    `, table)
}

// A batch of rows is passed as parallel arrays and unnested, so any
// number of rows costs one statement.
func upsertSql(table string) string {
	return fmt.Sprintf(`
       INSERT INTO %[1]s AS w (name, stat, value, updated)
         SELECT n, s, v, $4 FROM UNNEST($1::TEXT[], $2::TEXT[], $3::BIGINT[]) AS u(n, s, v)
       ON CONFLICT (name, stat) DO UPDATE SET value = EXCLUDED.value, updated = EXCLUDED.updated
    `, table)
}

func fetchSql(table string) string {
	return fmt.Sprintf("SELECT name, stat, value, updated FROM %[1]s ORDER BY name, stat", table)
}

// bigint clamps v to the range of a Postgres BIGINT.
func bigint(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

type rowColumns struct {
	names, stats []string
	values       []int64
	updated      time.Time
}

// splitRows groups rows by view into columns. A (name, stat) pair
// appearing more than once keeps the last value, Postgres refuses to
// update the same row twice in one statement. Updated is the latest
// of the group.
func splitRows(rows []Row) map[watermark.View]*rowColumns {
	result := make(map[watermark.View]*rowColumns)
	seen := make(map[watermark.View]map[rowKey]int)
	for _, r := range rows {
		cols := result[r.View]
		if cols == nil {
			cols = &rowColumns{}
			result[r.View] = cols
			seen[r.View] = make(map[rowKey]int)
		}
		if r.Updated.After(cols.updated) {
			cols.updated = r.Updated
		}
		k := rowKey{r.Name, r.Stat}
		if i, ok := seen[r.View][k]; ok {
			cols.values[i] = bigint(r.Value)
			continue
		}
		seen[r.View][k] = len(cols.names)
		cols.names = append(cols.names, r.Name)
		cols.stats = append(cols.stats, r.Stat)
		cols.values = append(cols.values, bigint(r.Value))
	}
	return result
}
