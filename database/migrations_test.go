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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(stmts ...string) MigrationFunc {
	return func(context.Context, Executor) ([]Query, error) {
		return Queries(stmts), nil
	}
}

func testItems() []MigrationItem {
	return []MigrationItem{
		{Version: "0003", Name: "create_c", Up: step("CREATE TABLE c (id INTEGER PRIMARY KEY)"), Down: step("DROP TABLE c")},
		{Version: "0001", Name: "create_a", Up: step("CREATE TABLE a (id INTEGER PRIMARY KEY)"), Down: step("DROP TABLE a")},
		{Version: "0002", Name: "create_b", Up: step(
			"CREATE TABLE b (id INTEGER PRIMARY KEY, a_id INTEGER REFERENCES a(id))",
			"CREATE INDEX idx_b_a ON b (a_id)",
		), Down: step("DROP TABLE b")},
	}
}

func tableExists(t *testing.T, db DataAccess, name string) bool {
	t.Helper()
	row, err := db.Get(context.Background(), "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	require.NoError(t, err)
	return row != nil
}

func versions(records []MigrationRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Version)
	}
	return out
}

func TestMigratorAppliesInOrderAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, testItems(), nil)
	assert.Equal(t, MigrationNotStarted, m.State())

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationCompleted, report.State)
	assert.Equal(t, []string{"0001", "0002", "0003"}, report.Applied)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, MigrationCompleted, m.State())

	records, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001", "0002", "0003"}, versions(records))
	assert.Equal(t, "create_b", records[1].Name)
	for _, r := range records {
		assert.False(t, r.AppliedAt.IsZero())
	}

	report, err = NewMigrator(db, testItems(), nil).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Applied)
	assert.Equal(t, 3, report.Skipped)

	again, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, again)
}

func TestMigratorStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	items := testItems()
	items[2].Up = step(
		"CREATE TABLE b (id INTEGER PRIMARY KEY)",
		"INSERT INTO nowhere (id) VALUES (1)",
	)

	m := NewMigrator(db, items, nil)
	report, err := m.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigration)
	assert.ErrorIs(t, err, ErrQuery)
	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "0002", de.Version)

	assert.Equal(t, MigrationFailed, report.State)
	assert.Equal(t, MigrationFailed, m.State())
	assert.Equal(t, []string{"0001"}, report.Applied)

	records, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001"}, versions(records))
	assert.True(t, tableExists(t, db, "a"))
	assert.False(t, tableExists(t, db, "b"), "failed version leaves no partial schema")
	assert.False(t, tableExists(t, db, "c"), "later versions are not attempted")

	// fixed scripts resume from the failed version
	report, err = NewMigrator(db, testItems(), nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002", "0003"}, report.Applied)
}

func TestMigratorStepError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	items := testItems()
	items[1].Up = func(context.Context, Executor) ([]Query, error) {
		return nil, errors.New("template missing")
	}
	_, err := NewMigrator(db, items, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigration)
	assert.Contains(t, err.Error(), "version 0001")
	assert.False(t, tableExists(t, db, "a"))
}

func TestMigratorRejectsBadVersions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	dup := append(testItems(), MigrationItem{Version: "2", Name: "dup", Up: step("SELECT 1")})
	_, err := NewMigrator(db, dup, nil).Run(ctx)
	assert.ErrorIs(t, err, ErrMigration)
	assert.Contains(t, err.Error(), "duplicate migration version")

	bad := []MigrationItem{{Version: "v1", Name: "bad", Up: step("SELECT 1")}}
	_, err = NewMigrator(db, bad, nil).Run(ctx)
	assert.ErrorIs(t, err, ErrMigration)

	noUp := []MigrationItem{{Version: "0001", Name: "empty"}}
	_, err = NewMigrator(db, noUp, nil).Run(ctx)
	assert.ErrorIs(t, err, ErrMigration)
}

func TestMigratorRejectsOutOfOrderPending(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	items := testItems()

	_, err := NewMigrator(db, []MigrationItem{items[1], items[0]}, nil).Run(ctx)
	require.NoError(t, err)

	_, err = NewMigrator(db, items, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigration)
	assert.Contains(t, err.Error(), "older than applied version 3")
	assert.False(t, tableExists(t, db, "b"))
}

func TestMigratorRollbackAndStatus(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, testItems(), nil)

	rec, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = m.Run(ctx)
	require.NoError(t, err)

	rec, err = m.Rollback(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "0003", rec.Version)
	assert.False(t, tableExists(t, db, "c"))

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, "0001", statuses[0].Version)
	assert.True(t, statuses[0].Applied)
	assert.True(t, statuses[1].Applied)
	assert.False(t, statuses[2].Applied)
	assert.True(t, statuses[2].AppliedAt.IsZero())

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0003"}, report.Applied)
}

func TestMigratorRollbackWithoutDownStep(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	items := []MigrationItem{{Version: "0001", Name: "create_a", Up: step("CREATE TABLE a (id INTEGER PRIMARY KEY)")}}
	m := NewMigrator(db, items, nil)
	_, err := m.Run(ctx)
	require.NoError(t, err)

	_, err = m.Rollback(ctx)
	assert.ErrorIs(t, err, ErrMigration)
	assert.True(t, tableExists(t, db, "a"))
}

func TestMigrationStateString(t *testing.T) {
	assert.Equal(t, "not_started", MigrationNotStarted.String())
	assert.Equal(t, "running", MigrationRunning.String())
	assert.Equal(t, "completed", MigrationCompleted.String())
	assert.Equal(t, "failed", MigrationFailed.String())
}
