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
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// openTestPool runs the pooled adapter over a SQLite file so it can be
// exercised without a server.
func openTestPool(t *testing.T, maxOpen int) *PooledDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.sqlite")
	sqlDB, err := sql.Open(sqliteshim.ShimName, path)
	require.NoError(t, err)

	cfg := DefaultConnectionConfig()
	cfg.MaxOpenConns = maxOpen
	cfg.MaxIdleConns = maxOpen
	p := newPooledFromDB(sqlDB, "sqlite3", sqlitedialect.New(), cfg, nil)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPooledRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := openTestPool(t, 2)
	assert.Equal(t, dialect.SQLite, p.Dialect())
	require.NoError(t, p.Ping(ctx))

	mustRun(t, p, buyersDDL)
	res := mustRun(t, p, "INSERT INTO buyers (email, last_name, phone) VALUES (?, ?, ?)", "a@example.com", "A", Undefined)
	require.True(t, res.HasLastInsertID)

	row, err := p.Get(ctx, "SELECT email, phone FROM buyers WHERE id = ?", res.LastInsertID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", row.String("email"))
	assert.True(t, row.IsNull("phone"))

	rows, err := p.All(ctx, "SELECT * FROM buyers WHERE email LIKE ?", "%@nowhere")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPooledReleasesLeases(t *testing.T) {
	ctx := context.Background()
	p := openTestPool(t, 1)
	mustRun(t, p, buyersDDL)

	// a single lease shared by many sequential and failing calls
	for i := 0; i < 10; i++ {
		_, err := p.Get(ctx, "SELECT * FROM missing_table")
		assert.ErrorIs(t, err, ErrQuery)
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Get(ctx, "SELECT COUNT(*) AS n FROM buyers")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, p.Stats().InUse)
}

func TestPooledTransactionAndBatchAtomicity(t *testing.T) {
	ctx := context.Background()
	p := openTestPool(t, 2)
	mustRun(t, p, buyersDDL)

	err := p.Transaction(ctx,
		Q("INSERT INTO buyers (email, last_name) VALUES (?, ?)", "a@example.com", "A"),
		Q("INSERT INTO buyers (email, last_name) VALUES (?, ?)", "a@example.com", "again"),
	)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Zero(t, count(t, p, "buyers"))

	_, err = p.BatchInsert(ctx, "INSERT INTO buyers (email, last_name)", [][]any{
		{"a@example.com", "A"},
		{"b@example.com", nil},
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Zero(t, count(t, p, "buyers"))

	n, err := p.BatchInsert(ctx, "INSERT INTO buyers (email, last_name)", [][]any{
		{"a@example.com", "A"},
		{"b@example.com", "B"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	err = p.RunInTx(ctx, func(ctx context.Context, tx Executor) error {
		_, err := tx.Run(ctx, "UPDATE buyers SET phone = ? WHERE email = ?", "01", "a@example.com")
		return err
	})
	require.NoError(t, err)
	row, err := p.Get(ctx, "SELECT phone FROM buyers WHERE email = ?", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "01", row.String("phone"))
}

func TestPooledClosed(t *testing.T) {
	ctx := context.Background()
	p := openTestPool(t, 1)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.All(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.ErrorIs(t, p.Ping(ctx), ErrClosed)
}

func TestPooledContextCancelled(t *testing.T) {
	p := openTestPool(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestNewPooledDBRejectsBadURL(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.URL = "oracle://scott:tiger@db/orcl"
	_, err := NewPooledDB(context.Background(), cfg, NopLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.NotContains(t, err.Error(), "tiger")
}
