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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// EmbeddedDB serves the port from a local SQLite file over exactly one
// session. All work, transactions included, runs on a single worker
// goroutine in submission order, so statements never interleave.
type EmbeddedDB struct {
	path   string
	db     *sqlx.DB
	bun    *bun.DB
	conn   *sqlx.Conn
	base   *session
	logger Logger

	jobs   chan job
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

var _ DataAccess = (*EmbeddedDB)(nil)

type job struct {
	ctx   context.Context
	op    string
	fn    func(ctx context.Context, conn *sqlx.Conn) error
	reply chan jobResult
}

type jobResult struct {
	err      error
	panicVal any
}

var journalModes = map[string]bool{
	"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true,
}

// NewEmbeddedDB opens (creating if needed) the SQLite file cfg.File and
// starts the execution queue.
func NewEmbeddedDB(ctx context.Context, cfg *ConnectionConfig, logger Logger) (*EmbeddedDB, error) {
	if logger == nil {
		logger = NopLogger()
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("queue_size must not be negative, got %d", cfg.QueueSize)
	}
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		path = DefaultDatabaseFile
	}
	memory := isMemoryPath(path)
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, newError(ErrConnectivity, "connect", err)
		}
	}

	sqlDB, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, newError(ErrConnectivity, "connect", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	openCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	db := sqlx.NewDb(sqlDB, "sqlite3")
	conn, err := db.Connx(openCtx)
	if err != nil {
		_ = db.Close()
		return nil, classify("connect", err)
	}
	if err := applyPragmas(openCtx, conn, cfg, memory); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, classify("connect", err)
	}

	bdb := bun.NewDB(sqlDB, sqlitedialect.New())
	e := &EmbeddedDB{
		path:   path,
		db:     db,
		bun:    bdb,
		conn:   conn,
		logger: logger,
		jobs:   make(chan job, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	e.base = &session{
		dialect: dialect.SQLite,
		tracer:  &tracer{db: bdb, hooks: newQueryHooks(cfg, logger)},
		logger:  logger,
	}
	go e.loop()

	logger.Info("opened embedded database", "file", path)
	return e, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:") || strings.Contains(path, "mode=memory")
}

func applyPragmas(ctx context.Context, conn *sqlx.Conn, cfg *ConnectionConfig, memory bool) error {
	pragmas := []string{"PRAGMA foreign_keys = ON"}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	if mode := strings.ToUpper(strings.TrimSpace(cfg.JournalMode)); mode != "" && !memory {
		if !journalModes[mode] {
			return fmt.Errorf("unsupported journal mode %q", cfg.JournalMode)
		}
		pragmas = append(pragmas, "PRAGMA journal_mode = "+mode)
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (e *EmbeddedDB) loop() {
	defer close(e.done)
	for j := range e.jobs {
		if err := j.ctx.Err(); err != nil {
			// cancelled while waiting in the queue
			j.reply <- jobResult{err: classify(j.op, err)}
			continue
		}
		j.reply <- e.exec(j)
	}
}

func (e *EmbeddedDB) exec(j job) (res jobResult) {
	defer func() {
		if p := recover(); p != nil {
			res = jobResult{panicVal: p}
		}
	}()
	return jobResult{err: j.fn(j.ctx, e.conn)}
}

// submit enqueues fn and waits for the worker to run it. A job that was
// accepted always gets a reply, so callers never abandon work mid-flight.
func (e *EmbeddedDB) submit(ctx context.Context, op string, fn func(ctx context.Context, conn *sqlx.Conn) error) error {
	j := job{ctx: ctx, op: op, fn: fn, reply: make(chan jobResult, 1)}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return newError(ErrConnectivity, op, ErrClosed)
	}
	select {
	case e.jobs <- j:
		e.mu.RUnlock()
	case <-ctx.Done():
		e.mu.RUnlock()
		return classify(op, ctx.Err())
	}

	res := <-j.reply
	if res.panicVal != nil {
		panic(res.panicVal)
	}
	return res.err
}

func (e *EmbeddedDB) Run(ctx context.Context, query string, params ...any) (res Result, err error) {
	err = e.submit(ctx, "run", func(ctx context.Context, conn *sqlx.Conn) error {
		res, err = e.base.with(conn).Run(ctx, query, params...)
		return err
	})
	return res, err
}

func (e *EmbeddedDB) Get(ctx context.Context, query string, params ...any) (row Row, err error) {
	err = e.submit(ctx, "get", func(ctx context.Context, conn *sqlx.Conn) error {
		row, err = e.base.with(conn).Get(ctx, query, params...)
		return err
	})
	return row, err
}

func (e *EmbeddedDB) All(ctx context.Context, query string, params ...any) (rows []Row, err error) {
	err = e.submit(ctx, "all", func(ctx context.Context, conn *sqlx.Conn) error {
		rows, err = e.base.with(conn).All(ctx, query, params...)
		return err
	})
	return rows, err
}

func (e *EmbeddedDB) BatchInsert(ctx context.Context, prefix string, rows [][]any) (n int64, err error) {
	stmts, err := buildBatchInsert(prefix, rows, sqliteMaxParams)
	if err != nil || len(stmts) == 0 {
		return 0, err
	}
	err = e.submit(ctx, "batchInsert", func(ctx context.Context, conn *sqlx.Conn) error {
		s := e.base.with(conn)
		if len(stmts) == 1 {
			n, err = s.execBatch(ctx, stmts)
			return err
		}
		return s.runInTx(ctx, conn, func(ctx context.Context, tx Executor) error {
			n, err = tx.(*session).execBatch(ctx, stmts)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (e *EmbeddedDB) Transaction(ctx context.Context, queries ...Query) error {
	if len(queries) == 0 {
		return nil
	}
	return e.submit(ctx, "transaction", func(ctx context.Context, conn *sqlx.Conn) error {
		return e.base.with(conn).runInTx(ctx, conn, func(ctx context.Context, tx Executor) error {
			return tx.(*session).runQueries(ctx, queries)
		})
	})
}

// RunInTx runs fn as one queued job. Calling back into e from fn would
// wait on the queue forever; use tx.
func (e *EmbeddedDB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error {
	return e.submit(ctx, "transaction", func(ctx context.Context, conn *sqlx.Conn) error {
		return e.base.with(conn).runInTx(ctx, conn, fn)
	})
}

func (e *EmbeddedDB) Ping(ctx context.Context) error {
	return e.submit(ctx, "ping", func(ctx context.Context, conn *sqlx.Conn) error {
		return classify("ping", conn.PingContext(ctx))
	})
}

func (e *EmbeddedDB) Dialect() dialect.Name { return dialect.SQLite }

// Bun returns a bun handle for dialect metadata. It must not execute
// queries: the only connection belongs to the queue.
func (e *EmbeddedDB) Bun() *bun.DB { return e.bun }

func (e *EmbeddedDB) Path() string { return e.path }

func (e *EmbeddedDB) Stats() *DBStats {
	s := e.db.Stats()
	return &DBStats{
		MaxOpenConns: s.MaxOpenConnections,
		OpenConns:    s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		QueueDepth:   len(e.jobs),
	}
}

// Close stops accepting work, lets queued jobs finish, then closes the
// session and the file.
func (e *EmbeddedDB) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	<-e.done
	err := errors.Join(e.conn.Close(), e.db.Close())
	e.logger.Info("closed embedded database", "file", e.path)
	return err
}
