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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Seeder executes SQL data files from <root>/common and
// <root>/environments/<env>, each file in its own transaction.
type Seeder struct {
	db          DataAccess
	environment string
	root        string
	logger      Logger
}

// SQLFileInfo describes a SQL file to be executed during seeding.
type SQLFileInfo struct {
	Path        string
	Name        string
	Order       int
	Environment string
}

// ExecutionResult contains the outcome of executing a single SQL file.
type ExecutionResult struct {
	File       string
	Statements int
	Duration   time.Duration
	Err        error
}

func NewSeeder(db DataAccess, cfg *SeedConfig, logger Logger) *Seeder {
	if logger == nil {
		logger = NopLogger()
	}
	root := cfg.Filepath
	if root == "" {
		root = "configs/sql"
	}
	env := cfg.Environment
	if env == "" {
		env = "development"
	}
	return &Seeder{db: db, environment: env, root: root, logger: logger}
}

// Run executes every discovered file in order and stops at the first failure.
func (s *Seeder) Run(ctx context.Context) ([]ExecutionResult, error) {
	s.logger.Info("starting SQL seeding", "environment", s.environment, "sql_path", s.root)

	files, err := s.Files()
	if err != nil {
		return nil, fmt.Errorf("list seed files: %w", err)
	}
	results := make([]ExecutionResult, 0, len(files))
	for _, f := range files {
		res := s.executeFile(ctx, f)
		results = append(results, res)
		if res.Err != nil {
			s.logger.Error("seed file failed", "file", res.File, "error", res.Err)
			return results, fmt.Errorf("seed file %s: %w", res.File, res.Err)
		}
		s.logger.Info("seed file executed", "file", res.File, "statements", res.Statements, "duration", res.Duration)
	}
	s.logger.Info("SQL seeding completed", "files", len(results), "environment", s.environment)
	return results, nil
}

// Files returns common files first, then the environment's, each group
// ordered by its numeric "NNN_" prefix.
func (s *Seeder) Files() ([]SQLFileInfo, error) {
	files, err := filesIn(filepath.Join(s.root, "common"), "common")
	if err != nil {
		return nil, err
	}
	envFiles, err := filesIn(filepath.Join(s.root, "environments", s.environment), s.environment)
	if err != nil {
		return nil, err
	}
	files = append(files, envFiles...)
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Environment != files[j].Environment {
			return files[i].Environment == "common"
		}
		return files[i].Order < files[j].Order
	})
	return files, nil
}

func filesIn(dir, environment string) ([]SQLFileInfo, error) {
	var files []SQLFileInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			return nil
		}
		files = append(files, SQLFileInfo{
			Path:        path,
			Name:        d.Name(),
			Order:       fileOrder(d.Name()),
			Environment: environment,
		})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

var fileOrderPattern = regexp.MustCompile(`^(\d+)_`)

func fileOrder(name string) int {
	if m := fileOrderPattern.FindStringSubmatch(name); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 999
}

func (s *Seeder) executeFile(ctx context.Context, file SQLFileInfo) (res ExecutionResult) {
	start := time.Now()
	res.File = file.Path
	defer func() { res.Duration = time.Since(start) }()

	content, err := os.ReadFile(file.Path)
	if err != nil {
		res.Err = err
		return res
	}
	rendered, err := s.render(string(content))
	if err != nil {
		res.Err = err
		return res
	}
	stmts, err := SplitStatements(rendered)
	if err != nil {
		res.Err = err
		return res
	}
	res.Statements = len(stmts)
	res.Err = s.db.Transaction(ctx, Queries(stmts)...)
	return res
}

// render expands {{.NAME}} references to environment variables plus
// ENVIRONMENT and TIMESTAMP.
func (s *Seeder) render(content string) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}
	tmpl, err := template.New("sql").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	vars := make(map[string]string)
	for _, env := range os.Environ() {
		if k, v, ok := strings.Cut(env, "="); ok {
			vars[k] = v
		}
	}
	vars["ENVIRONMENT"] = s.environment
	vars["TIMESTAMP"] = time.Now().Format("2006-01-02 15:04:05")

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
