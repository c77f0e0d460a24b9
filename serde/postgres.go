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
	"database/sql"
	"fmt"
	"log"

	"github.com/lib/pq"
	"github.com/tgres/wmd/watermark"
)

type pgSerDe struct {
	dbConn *sql.DB
	prefix string
	upsert map[watermark.View]*sql.Stmt
	fetch  map[watermark.View]*sql.Stmt
}

var sqlOpen = func(a, b string) (*sql.DB, error) {
	return sql.Open(a, b)
}

// InitDb connects to Postgres, creates the view tables if they do not
// exist and prepares statements. The prefix is prepended to every
// table name.
func InitDb(connect_string, prefix string) (SerDe, error) {
	dbConn, err := sqlOpen("postgres", connect_string)
	if err != nil {
		return nil, err
	}
	p := &pgSerDe{dbConn: dbConn, prefix: prefix}
	if err := p.dbConn.Ping(); err != nil {
		dbConn.Close()
		return nil, err
	}
	if err := p.createTablesIfNotExist(); err != nil {
		dbConn.Close()
		return nil, err
	}
	if err := p.prepareSqlStatements(); err != nil {
		dbConn.Close()
		return nil, err
	}
	return p, nil
}

func (p *pgSerDe) Fetcher() Fetcher { return p }
func (p *pgSerDe) Flusher() Flusher { return p }

func (p *pgSerDe) Close() error {
	return p.dbConn.Close()
}

func (p *pgSerDe) prepareSqlStatements() error {
	p.upsert = make(map[watermark.View]*sql.Stmt, len(watermark.Views))
	p.fetch = make(map[watermark.View]*sql.Stmt, len(watermark.Views))
	for _, v := range watermark.Views {
		table := tableName(p.prefix, v)
		stmt, err := p.dbConn.Prepare(upsertSql(table))
		if err != nil {
			return err
		}
		p.upsert[v] = stmt
		if stmt, err = p.dbConn.Prepare(fetchSql(table)); err != nil {
			return err
		}
		p.fetch[v] = stmt
	}
	return nil
}

func (p *pgSerDe) createTablesIfNotExist() error {
	for _, v := range watermark.Views {
		if _, err := p.dbConn.Exec(createSql(tableName(p.prefix, v))); err != nil {
			log.Printf("ERROR: initial CREATE TABLE failed: %v", err)
			return err
		}
	}
	return nil
}

func (p *pgSerDe) Truncate() error {
	for _, v := range watermark.Views {
		if _, err := p.dbConn.Exec(fmt.Sprintf("DELETE FROM %s", tableName(p.prefix, v))); err != nil {
			return err
		}
	}
	return nil
}

// FlushRows upserts the rows of each view with a single statement, all
// views in one transaction.
func (p *pgSerDe) FlushRows(rows []Row) (sqlOps int, err error) {
	byView := splitRows(rows)
	if len(byView) == 0 {
		return 0, nil
	}

	tx, err := p.dbConn.Begin()
	if err != nil {
		return 0, err
	}
	for _, v := range watermark.Views {
		cols := byView[v]
		if cols == nil {
			continue
		}
		if _, err = tx.Stmt(p.upsert[v]).Exec(pq.Array(cols.names), pq.Array(cols.stats), pq.Array(cols.values), cols.updated); err != nil {
			tx.Rollback()
			return sqlOps, fmt.Errorf("upsert into %s: %v", tableName(p.prefix, v), err)
		}
		sqlOps++
	}
	return sqlOps, tx.Commit()
}

func (p *pgSerDe) FetchRows(view watermark.View) ([]Row, error) {
	stmt := p.fetch[view]
	if stmt == nil {
		return nil, fmt.Errorf("FetchRows: %w", watermark.ErrInvalidView)
	}
	rows, err := stmt.Query()
	if err != nil {
		log.Printf("FetchRows(): error %v", err)
		return nil, err
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var (
			r     = Row{View: view}
			value int64
		)
		if err := rows.Scan(&r.Name, &r.Stat, &value, &r.Updated); err != nil {
			log.Printf("FetchRows(): error scanning row: %v", err)
			return nil, err
		}
		r.Value = uint64(value)
		result = append(result, r)
	}
	return result, rows.Err()
}

// TableSize returns the number of rows in a view table.
func (p *pgSerDe) TableSize(view watermark.View) (count int64, err error) {
	err = p.dbConn.QueryRow(fmt.Sprintf("SELECT count(*) FROM %s", tableName(p.prefix, view))).Scan(&count)
	return count, err
}
