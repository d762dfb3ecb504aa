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
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *EmbeddedDB {
	t.Helper()
	cfg := DefaultConnectionConfig()
	cfg.File = filepath.Join(t.TempDir(), "test.sqlite")
	db, err := NewEmbeddedDB(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustRun(t *testing.T, ex Executor, query string, params ...any) Result {
	t.Helper()
	res, err := ex.Run(context.Background(), query, params...)
	require.NoError(t, err)
	return res
}

func count(t *testing.T, ex Executor, table string) int64 {
	t.Helper()
	row, err := ex.Get(context.Background(), "SELECT COUNT(*) AS n FROM "+table)
	require.NoError(t, err)
	return row.Int64("n")
}

type logEntry struct {
	level  string
	msg    string
	fields []interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, fields []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) SetLevel(LogLevel) {}

func (l *recordingLogger) Debug(msg string, fields ...interface{}) {
	l.add("debug", msg, fields)
}

func (l *recordingLogger) Info(msg string, fields ...interface{}) {
	l.add("info", msg, fields)
}

func (l *recordingLogger) Warn(msg string, fields ...interface{}) {
	l.add("warn", msg, fields)
}

func (l *recordingLogger) Error(msg string, fields ...interface{}) {
	l.add("error", msg, fields)
}

func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

func (l *recordingLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprint(l.entries)
}
