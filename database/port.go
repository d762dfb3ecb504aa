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
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun/dialect"
)

// Query is one positional statement of a Transaction.
type Query struct {
	SQL    string
	Params []any
}

// Q builds a Query.
func Q(sql string, params ...any) Query {
	return Query{SQL: sql, Params: params}
}

// Result describes the outcome of Run.
type Result struct {
	// LastInsertID is only meaningful when HasLastInsertID is true.
	LastInsertID    int64
	HasLastInsertID bool
	RowsAffected    int64
}

// Executor is the statement-level half of the port. It is implemented by
// both backends and by the transaction scope handed to RunInTx callbacks.
type Executor interface {
	// Run executes a statement that returns no rows.
	Run(ctx context.Context, query string, params ...any) (Result, error)
	// Get returns the first matching row, or nil when nothing matches.
	Get(ctx context.Context, query string, params ...any) (Row, error)
	// All returns every matching row; never nil.
	All(ctx context.Context, query string, params ...any) ([]Row, error)
	// BatchInsert inserts rows with a single multi-row statement. prefix is
	// "INSERT INTO table (col1, col2, ...)". All rows or none are written.
	BatchInsert(ctx context.Context, prefix string, rows [][]any) (int64, error)
}

// DataAccess is the contract repositories code against.
type DataAccess interface {
	Executor
	// Transaction runs queries in order, atomically.
	Transaction(ctx context.Context, queries ...Query) error
	// RunInTx runs fn inside one transaction. fn must use the Executor it is
	// given, never the outer DataAccess.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error
	Ping(ctx context.Context) error
	Dialect() dialect.Name
	Close() error
}

// Row maps column names to the values the driver returned. Text columns are
// delivered as string, never []byte.
type Row map[string]any

func (r Row) IsNull(col string) bool {
	v, ok := r[col]
	return !ok || v == nil
}

func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
			return int64(f)
		}
		return n
	case []byte:
		return Row{col: string(v)}.Int64(col)
	default:
		return 0
	}
}

func (r Row) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		return f
	default:
		return 0
	}
}

// Bool accepts native booleans as well as the 0/1 integers MySQL and
// SQLite use for boolean columns.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return r.Int64(col) != 0
		}
		return b
	default:
		return r.Int64(col) != 0
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses the column as a timestamp; ok is false for NULL or an
// unparseable value.
func (r Row) Time(col string) (t time.Time, ok bool) {
	switch v := r[col].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	case []byte:
		return Row{col: string(v)}.Time(col)
	}
	return time.Time{}, false
}

// NullInt64 returns nil for NULL columns.
func (r Row) NullInt64(col string) *int64 {
	if r.IsNull(col) {
		return nil
	}
	n := r.Int64(col)
	return &n
}

func (r Row) NullString(col string) *string {
	if r.IsNull(col) {
		return nil
	}
	s := r.String(col)
	return &s
}

func (r Row) NullFloat64(col string) *float64 {
	if r.IsNull(col) {
		return nil
	}
	f := r.Float64(col)
	return &f
}
