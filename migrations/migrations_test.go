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

package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/keysell/database"
	"github.com/uptrace/bun/dialect"
	"golang.org/x/crypto/bcrypt"
)

func versions(items []database.MigrationItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Version)
	}
	return out
}

func openSQLite(t *testing.T) database.Database {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.File = filepath.Join(t.TempDir(), "agency.sqlite")
	db, err := database.Open(context.Background(), cfg, database.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadSameVersionsForEveryDialect(t *testing.T) {
	sqlite, err := Load(dialect.SQLite, Options{})
	require.NoError(t, err)
	want := versions(sqlite)
	require.Len(t, want, 14)
	assert.Equal(t, "0001", want[0])
	assert.Equal(t, "0002", want[1])
	assert.Equal(t, "0012", want[11])
	assert.Equal(t, "0013", want[12])
	assert.Equal(t, "0014", want[13])
	assert.Equal(t, "create_configuration", sqlite[12].Name)
	assert.Equal(t, "create_emails", sqlite[13].Name)

	for _, d := range []dialect.Name{dialect.MySQL, dialect.PG} {
		items, err := Load(d, Options{})
		require.NoError(t, err, d.String())
		assert.Equal(t, want, versions(items), d.String())
		for i, it := range items {
			assert.Equal(t, sqlite[i].Name, it.Name, d.String())
			assert.NotNil(t, it.Down, "%s %s", d, it.Version)
		}
	}
}

func TestLoadUnknownDialect(t *testing.T) {
	_, err := Load(dialect.Invalid, Options{})
	assert.Error(t, err)
}

func TestScriptsParse(t *testing.T) {
	ctx := context.Background()
	for _, d := range []dialect.Name{dialect.MySQL, dialect.PG, dialect.SQLite} {
		items, err := Load(d, Options{})
		require.NoError(t, err)
		for _, it := range items {
			if it.Version == "0002" {
				continue
			}
			up, err := it.Up(ctx, nil)
			require.NoError(t, err)
			assert.NotEmpty(t, up, "%s %s has no up statements", d, it.Version)
			down, err := it.Down(ctx, nil)
			require.NoError(t, err)
			assert.NotEmpty(t, down, "%s %s has no down statements", d, it.Version)
			for _, q := range up {
				assert.Zero(t, database.CountPlaceholders(d, q.SQL), "%s %s: %s", d, it.Version, q.SQL)
			}
		}
	}
}

func TestApplyOnFreshDatabase(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	items, err := Load(dialect.SQLite, Options{AdminPassword: "s3cret"})
	require.NoError(t, err)

	m := database.NewMigrator(db, items, nil)
	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.MigrationCompleted, report.State)
	assert.Len(t, report.Applied, len(items))

	records, err := m.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(items))
	for i, rec := range records {
		assert.Equal(t, items[i].Version, rec.Version)
	}

	admin, err := db.Get(ctx, "SELECT uuid, password, role, is_active FROM users WHERE username = ?", AdminUsername)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, AdminUUID, admin.String("uuid"))
	assert.Equal(t, "ADMIN", admin.String("role"))
	assert.True(t, admin.Bool("is_active"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.String("password")), []byte("s3cret")))

	types, err := db.Get(ctx, "SELECT COUNT(*) AS n FROM tasks_types")
	require.NoError(t, err)
	assert.EqualValues(t, 15, types.Int64("n"))

	access, err := db.Get(ctx, "SELECT property_value FROM configuration WHERE category = ? AND property_name = ?", "standard", "global_user_access")
	require.NoError(t, err)
	require.NotNil(t, access)
	assert.Contains(t, access.String("property_value"), `"canSendEmail":true`)

	_, err = db.Run(ctx, "INSERT INTO configuration (category, property_name) VALUES (?, ?)", "standard", "global_user_access")
	assert.ErrorIs(t, err, database.ErrConstraintViolation)

	_, err = db.Run(ctx, "INSERT INTO emails (message_id, email_to, sent_by_user_id) SELECT ?, ?, id FROM users WHERE uuid = ?", "<m1@agency>", "buyer@example.com", AdminUUID)
	require.NoError(t, err)
	sent, err := db.Get(ctx, "SELECT COUNT(*) AS n FROM emails")
	require.NoError(t, err)
	assert.EqualValues(t, 1, sent.Int64("n"))

	again, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Applied)
	assert.Equal(t, len(items), again.Skipped)
}

func TestAdminWithoutPasswordIsInactive(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	items, err := Load(dialect.SQLite, Options{})
	require.NoError(t, err)
	_, err = database.NewMigrator(db, items, nil).Run(ctx)
	require.NoError(t, err)

	admin, err := db.Get(ctx, "SELECT password, is_active FROM users WHERE uuid = ?", AdminUUID)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.True(t, admin.IsNull("password"))
	assert.False(t, admin.Bool("is_active"))
}

func TestRollbackNewest(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	items, err := Load(dialect.SQLite, Options{})
	require.NoError(t, err)
	m := database.NewMigrator(db, items, nil)
	_, err = m.Run(ctx)
	require.NoError(t, err)

	rec, err := m.Rollback(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "0014", rec.Version)

	_, err = db.All(ctx, "SELECT message_id FROM emails")
	assert.ErrorIs(t, err, database.ErrQuery)
	_, err = db.All(ctx, "SELECT category FROM configuration")
	assert.NoError(t, err)

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0014"}, report.Applied)
}
