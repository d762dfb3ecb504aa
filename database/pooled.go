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
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"
)

// PooledDB serves the port from a networked server through a bounded
// connection pool. Each operation leases one connection and returns it
// before the call completes.
type PooledDB struct {
	cfg      *ConnectionConfig
	db       *sqlx.DB
	bun      *bun.DB
	base     *session
	logger   Logger
	redacted string
	closed   atomic.Bool
}

var _ DataAccess = (*PooledDB)(nil)

// NewPooledDB opens the pool described by cfg.URL and verifies it with a
// ping bounded by cfg.ConnectTimeout.
func NewPooledDB(ctx context.Context, cfg *ConnectionConfig, logger Logger) (*PooledDB, error) {
	dsn, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, newError(ErrConnectivity, "connect", err)
	}
	sqlDB, err := sql.Open(dsn.Driver, dsn.DataSource)
	if err != nil {
		return nil, newError(ErrConnectivity, "connect", err)
	}

	var d schema.Dialect
	switch dsn.Dialect {
	case dialect.MySQL:
		d = mysqldialect.New()
	default:
		d = pgdialect.New()
	}
	p := newPooledFromDB(sqlDB, dsn.Driver, d, cfg, logger)
	p.redacted = dsn.Redacted

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := p.db.PingContext(connectCtx); err != nil {
		_ = p.db.Close()
		logger.Error("failed to connect to database", "url", p.redacted, "error", err)
		return nil, classify("connect", err)
	}

	logger.Info("connected to database",
		"url", p.redacted,
		"dialect", dsn.Dialect.String(),
		"max_open_conns", cfg.MaxOpenConns)
	return p, nil
}

// newPooledFromDB wraps an already opened *sql.DB.
func newPooledFromDB(sqlDB *sql.DB, driverName string, d schema.Dialect, cfg *ConnectionConfig, logger Logger) *PooledDB {
	if logger == nil {
		logger = NopLogger()
	}
	configureConnectionPool(sqlDB, cfg)
	bdb := bun.NewDB(sqlDB, d)
	p := &PooledDB{
		cfg:    cfg,
		db:     sqlx.NewDb(sqlDB, driverName),
		bun:    bdb,
		logger: logger,
	}
	p.base = &session{
		dialect: d.Name(),
		tracer:  &tracer{db: bdb, hooks: newQueryHooks(cfg, logger)},
		logger:  logger,
	}
	return p
}

func configureConnectionPool(sqlDB *sql.DB, cfg *ConnectionConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// withConn leases a connection for fn. The lease is released on every
// path, panics included. Waiting for a free lease honors ctx.
func (p *PooledDB) withConn(ctx context.Context, op string, fn func(*sqlx.Conn) error) error {
	if p.closed.Load() {
		return newError(ErrConnectivity, op, ErrClosed)
	}
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return classify(op, err)
	}
	defer func() { _ = conn.Close() }()
	return fn(conn)
}

func (p *PooledDB) Run(ctx context.Context, query string, params ...any) (res Result, err error) {
	err = p.withConn(ctx, "run", func(conn *sqlx.Conn) error {
		res, err = p.base.with(conn).Run(ctx, query, params...)
		return err
	})
	return res, err
}

func (p *PooledDB) Get(ctx context.Context, query string, params ...any) (row Row, err error) {
	err = p.withConn(ctx, "get", func(conn *sqlx.Conn) error {
		row, err = p.base.with(conn).Get(ctx, query, params...)
		return err
	})
	return row, err
}

func (p *PooledDB) All(ctx context.Context, query string, params ...any) (rows []Row, err error) {
	err = p.withConn(ctx, "all", func(conn *sqlx.Conn) error {
		rows, err = p.base.with(conn).All(ctx, query, params...)
		return err
	})
	return rows, err
}

func (p *PooledDB) BatchInsert(ctx context.Context, prefix string, rows [][]any) (n int64, err error) {
	stmts, err := buildBatchInsert(prefix, rows, maxBindParams(p.base.dialect))
	if err != nil || len(stmts) == 0 {
		return 0, err
	}
	err = p.withConn(ctx, "batchInsert", func(conn *sqlx.Conn) error {
		s := p.base.with(conn)
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

func (p *PooledDB) Transaction(ctx context.Context, queries ...Query) error {
	if len(queries) == 0 {
		return nil
	}
	return p.withConn(ctx, "transaction", func(conn *sqlx.Conn) error {
		return p.base.with(conn).runInTx(ctx, conn, func(ctx context.Context, tx Executor) error {
			return tx.(*session).runQueries(ctx, queries)
		})
	})
}

func (p *PooledDB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error {
	return p.withConn(ctx, "transaction", func(conn *sqlx.Conn) error {
		return p.base.with(conn).runInTx(ctx, conn, fn)
	})
}

func (p *PooledDB) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return newError(ErrConnectivity, "ping", ErrClosed)
	}
	return classify("ping", p.db.PingContext(ctx))
}

func (p *PooledDB) Dialect() dialect.Name { return p.base.dialect }

// Bun returns a bun handle over the same pool, used for dialect metadata.
func (p *PooledDB) Bun() *bun.DB { return p.bun }

func (p *PooledDB) Stats() *DBStats {
	s := p.db.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

// Close drains the pool. Further calls fail with ErrConnectivity.
func (p *PooledDB) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.logger.Info("closing database pool", "url", p.redacted)
	return p.db.Close()
}
