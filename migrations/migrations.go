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

// Package migrations holds the versioned schema of the agency database,
// one script set per dialect plus the steps that need Go code.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/tomoncle/keysell/database"
	"github.com/uptrace/bun/dialect"
)

//go:embed sql
var scripts embed.FS

// Options carries the values Go steps need at apply time.
type Options struct {
	AdminPassword string
}

var scriptName = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.sql$`)

// Dir returns the embedded script directory for d.
func Dir(d dialect.Name) (string, error) {
	switch d {
	case dialect.MySQL:
		return "sql/mysql", nil
	case dialect.PG:
		return "sql/postgres", nil
	case dialect.SQLite:
		return "sql/sqlite", nil
	default:
		return "", fmt.Errorf("no migrations for dialect %s", d)
	}
}

// Load returns every migration for d in ascending version order.
func Load(d dialect.Name, opts Options) ([]database.MigrationItem, error) {
	dir, err := Dir(d)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(scripts, dir)
	if err != nil {
		return nil, err
	}

	items := []database.MigrationItem{seedAdminUser(opts.AdminPassword)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := scriptName.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("%s/%s: file name must look like 0001_create_table.sql", dir, e.Name())
		}
		content, err := fs.ReadFile(scripts, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		script, err := database.ParseSQLScript(string(content))
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", dir, e.Name(), err)
		}
		items = append(items, database.MigrationItem{
			Version:     m[1],
			Name:        m[2],
			Description: strings.ReplaceAll(m[2], "_", " "),
			Up:          statements(script.Up),
			Down:        statements(script.Down),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Version < items[j].Version })
	return items, nil
}

func statements(stmts []string) database.MigrationFunc {
	return func(_ context.Context, _ database.Executor) ([]database.Query, error) {
		return database.Queries(stmts), nil
	}
}
