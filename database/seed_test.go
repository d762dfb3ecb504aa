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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSeederFileOrder(t *testing.T) {
	root := t.TempDir()
	writeSeed(t, root, "common/010_tasks.sql", "")
	writeSeed(t, root, "common/002_users.sql", "")
	writeSeed(t, root, "common/extra.sql", "")
	writeSeed(t, root, "common/README.md", "")
	writeSeed(t, root, "environments/staging/001_demo.SQL", "")
	writeSeed(t, root, "environments/production/001_prod.sql", "")

	s := NewSeeder(nil, &SeedConfig{Filepath: root, Environment: "staging"}, nil)
	files, err := s.Files()
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"002_users.sql", "010_tasks.sql", "extra.sql", "001_demo.SQL"}, names)
	assert.Equal(t, 999, files[2].Order)
	assert.Equal(t, "staging", files[3].Environment)
}

func TestSeederMissingDirectories(t *testing.T) {
	s := NewSeeder(openTestDB(t), &SeedConfig{Filepath: filepath.Join(t.TempDir(), "none")}, nil)
	results, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSeederRun(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustRun(t, db, buyersDDL)
	t.Setenv("SEED_CONTACT_DOMAIN", "agency.test")

	root := t.TempDir()
	writeSeed(t, root, "common/001_buyers.sql", `
-- reference buyers
INSERT INTO buyers (email, last_name) VALUES ('first@{{.SEED_CONTACT_DOMAIN}}', 'First');
INSERT INTO buyers (email, last_name) VALUES ('second@{{.SEED_CONTACT_DOMAIN}}', '{{.ENVIRONMENT}}');
`)
	writeSeed(t, root, "environments/test/001_more.sql",
		"INSERT INTO buyers (email, last_name, phone) VALUES ('third@x.test', 'Third', '{{.UNSET_SEED_VARIABLE}}');\n")

	logger := &recordingLogger{}
	s := NewSeeder(db, &SeedConfig{Filepath: root, Environment: "test"}, logger)
	results, err := s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Statements)
	assert.Equal(t, 1, results[1].Statements)
	assert.Contains(t, logger.messages("info"), "SQL seeding completed")

	row, err := db.Get(ctx, "SELECT last_name FROM buyers WHERE email = ?", "second@agency.test")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "test", row.String("last_name"))

	row, err = db.Get(ctx, "SELECT phone FROM buyers WHERE email = ?", "third@x.test")
	require.NoError(t, err)
	assert.Equal(t, "", row.String("phone"))
}

func TestSeederStopsAtFailingFile(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustRun(t, db, buyersDDL)

	root := t.TempDir()
	writeSeed(t, root, "common/001_ok.sql", "INSERT INTO buyers (email, last_name) VALUES ('a@x.test', 'A');")
	writeSeed(t, root, "common/002_bad.sql",
		"INSERT INTO buyers (email, last_name) VALUES ('b@x.test', 'B');\nINSERT INTO buyers (email, last_name) VALUES ('a@x.test', 'dup');")
	writeSeed(t, root, "common/003_never.sql", "INSERT INTO buyers (email, last_name) VALUES ('c@x.test', 'C');")

	results, err := NewSeeder(db, &SeedConfig{Filepath: root}, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)

	// the failing file is rolled back as a whole
	assert.EqualValues(t, 1, count(t, db, "buyers"))
}

func TestSeederBadTemplate(t *testing.T) {
	root := t.TempDir()
	writeSeed(t, root, "common/001_bad.sql", "SELECT '{{.Broken';")
	_, err := NewSeeder(openTestDB(t), &SeedConfig{Filepath: root}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse template")
}
