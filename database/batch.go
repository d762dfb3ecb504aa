/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"strings"

	"github.com/uptrace/bun/dialect"
)

// Bound-parameter ceilings per statement.
const (
	mysqlMaxParams  = 65535
	pgMaxParams     = 65535
	sqliteMaxParams = 32766
)

func maxBindParams(name dialect.Name) int {
	switch name {
	case dialect.MySQL:
		return mysqlMaxParams
	case dialect.PG:
		return pgMaxParams
	default:
		return sqliteMaxParams
	}
}

// buildBatchInsert expands prefix and rows into one or more multi-row
// INSERT statements, each under maxParams bound values.
func buildBatchInsert(prefix string, rows [][]any, maxParams int) ([]Query, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	arity, err := prefixArity(prefix)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != arity {
			return nil, queryErrorf("batchInsert", "row %d has %d values, expected %d", i, len(row), arity)
		}
	}

	perChunk := maxParams / arity
	if perChunk < 1 {
		perChunk = 1
	}
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", arity), ", ") + ")"
	head := strings.TrimSpace(prefix) + " VALUES "

	stmts := make([]Query, 0, (len(rows)+perChunk-1)/perChunk)
	for start := 0; start < len(rows); start += perChunk {
		end := start + perChunk
		if end > len(rows) {
			end = len(rows)
		}
		var b strings.Builder
		b.WriteString(head)
		params := make([]any, 0, (end-start)*arity)
		for i := start; i < end; i++ {
			if i > start {
				b.WriteString(", ")
			}
			b.WriteString(group)
			params = append(params, rows[i]...)
		}
		stmts = append(stmts, Query{SQL: b.String(), Params: params})
	}
	return stmts, nil
}

// prefixArity validates "INSERT INTO t (a, b)" and returns the column count.
func prefixArity(prefix string) (int, error) {
	p := strings.TrimSpace(prefix)
	upper := strings.ToUpper(p)
	if !strings.HasPrefix(upper, "INSERT") && !strings.HasPrefix(upper, "REPLACE") {
		return 0, queryErrorf("batchInsert", "prefix must be an INSERT statement: %q", prefix)
	}
	if strings.Contains(upper, " VALUES") || strings.Contains(upper, "?") {
		return 0, queryErrorf("batchInsert", "prefix must stop before VALUES: %q", prefix)
	}
	open := strings.Index(p, "(")
	if open < 0 || !strings.HasSuffix(p, ")") {
		return 0, queryErrorf("batchInsert", "prefix needs an explicit column list: %q", prefix)
	}
	cols := strings.Split(p[open+1:len(p)-1], ",")
	for _, c := range cols {
		if strings.TrimSpace(c) == "" {
			return 0, queryErrorf("batchInsert", "empty column name in prefix: %q", prefix)
		}
	}
	return len(cols), nil
}
