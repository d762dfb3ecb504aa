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
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/bun/dialect"
)

// execer is satisfied by *sqlx.Conn and *sqlx.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// session executes port operations on one lease, one embedded connection,
// or one open transaction. It owns no resources.
type session struct {
	ex      execer
	dialect dialect.Name
	tracer  *tracer
	logger  Logger
}

var _ Executor = (*session)(nil)

func (s *session) with(ex execer) *session {
	cp := *s
	cp.ex = ex
	return &cp
}

func (s *session) rebind(query string) string {
	return Rebind(s.dialect, query)
}

var returningClause = regexp.MustCompile(`(?is)\breturning\b`)

func (s *session) Run(ctx context.Context, query string, params ...any) (Result, error) {
	args, err := prepareParams("run", s.dialect, query, params)
	if err != nil {
		return Result{}, err
	}
	q := s.rebind(query)

	if returningClause.MatchString(query) {
		ctx, evt := s.tracer.start(ctx, q, args)
		var id any
		err = s.ex.QueryRowxContext(ctx, q, args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			s.tracer.finish(ctx, evt, nil, nil)
			return Result{}, nil
		}
		s.tracer.finish(ctx, evt, nil, err)
		if err != nil {
			return Result{}, classify("run", err)
		}
		return Result{LastInsertID: Row{"id": id}.Int64("id"), HasLastInsertID: true, RowsAffected: 1}, nil
	}

	ctx, evt := s.tracer.start(ctx, q, args)
	res, err := s.ex.ExecContext(ctx, q, args...)
	s.tracer.finish(ctx, evt, res, err)
	if err != nil {
		return Result{}, classify("run", err)
	}

	var out Result
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	// PostgreSQL has no LastInsertId; SQLite reports a stale one for
	// anything that is not an insert.
	if s.dialect != dialect.PG && isInsert(query) {
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID, out.HasLastInsertID = id, true
		}
	}
	return out, nil
}

func (s *session) Get(ctx context.Context, query string, params ...any) (Row, error) {
	var first Row
	err := s.query(ctx, "get", query, params, func(rows *sqlx.Rows) (bool, error) {
		row, err := scanRow(rows)
		if err != nil {
			return false, err
		}
		first = row
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return first, nil
}

func (s *session) All(ctx context.Context, query string, params ...any) ([]Row, error) {
	out := make([]Row, 0)
	err := s.query(ctx, "all", query, params, func(rows *sqlx.Rows) (bool, error) {
		row, err := scanRow(rows)
		if err != nil {
			return false, err
		}
		out = append(out, row)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// query runs a row-returning statement and feeds each row to next until it
// returns false. Rows are always closed.
func (s *session) query(ctx context.Context, op, query string, params []any, next func(*sqlx.Rows) (bool, error)) (err error) {
	args, err := prepareParams(op, s.dialect, query, params)
	if err != nil {
		return err
	}
	q := s.rebind(query)
	ctx, evt := s.tracer.start(ctx, q, args)
	defer func() { s.tracer.finish(ctx, evt, nil, err) }()

	rows, err := s.ex.QueryxContext(ctx, q, args...)
	if err != nil {
		return classify(op, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		more, err := next(rows)
		if err != nil {
			return classify(op, err)
		}
		if !more {
			break
		}
	}
	if err = rows.Err(); err != nil {
		return classify(op, err)
	}
	return nil
}

func scanRow(rows *sqlx.Rows) (Row, error) {
	m := make(map[string]any)
	if err := rows.MapScan(m); err != nil {
		return nil, err
	}
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
	return Row(m), nil
}

// BatchInsert on a session writes every chunk in sequence. Callers that are
// not already inside a transaction go through the adapter, which wraps
// multi-chunk inserts in one.
func (s *session) BatchInsert(ctx context.Context, prefix string, rows [][]any) (int64, error) {
	stmts, err := buildBatchInsert(prefix, rows, maxBindParams(s.dialect))
	if err != nil {
		return 0, err
	}
	return s.execBatch(ctx, stmts)
}

func (s *session) execBatch(ctx context.Context, stmts []Query) (int64, error) {
	var total int64
	for _, st := range stmts {
		res, err := s.Run(ctx, st.SQL, st.Params...)
		if err != nil {
			if e := new(Error); errors.As(err, &e) {
				e.Op = "batchInsert"
			}
			return 0, err
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (s *session) runQueries(ctx context.Context, queries []Query) error {
	for _, q := range queries {
		if _, err := s.Run(ctx, q.SQL, q.Params...); err != nil {
			return err
		}
	}
	return nil
}

// runInTx begins a transaction on conn, hands fn a session bound to it and
// commits, rolling back on error or panic.
func (s *session) runInTx(ctx context.Context, conn txBeginner, fn func(ctx context.Context, tx Executor) error) (err error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return classify("transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, s.with(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return classify("transaction", err)
	}
	return nil
}

func isInsert(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "INSERT") || strings.HasPrefix(q, "REPLACE")
}
