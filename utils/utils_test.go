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

package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("loud"))
}

func TestNamedLoggersAreShared(t *testing.T) {
	a := NewLogger("TEST_SHARED")
	b := NewLogger("TEST_SHARED")
	assert.Same(t, a, b)

	assert.True(t, SetLoggerLevel("TEST_SHARED", "error"))
	assert.Equal(t, logrus.ErrorLevel, a.GetLevel())
	assert.False(t, SetLoggerLevel("TEST_NEVER_CREATED", "debug"))
}

func TestConsoleOutputFormats(t *testing.T) {
	var buf bytes.Buffer
	SetConsoleOutput(&buf)
	defer SetConsoleOutput(nil)
	defer ConfigureConsoleLogFormat("text")

	l := NewLogger("TEST_CONSOLE")
	l.SetLevel(logrus.InfoLevel)

	ConfigureConsoleLogFormat("text")
	l.WithField("table", "buyers").Info("migration applied")
	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "TEST_CONSO")
	assert.Contains(t, line, "migration applied")
	assert.Contains(t, line, "table=buyers")

	buf.Reset()
	ConfigureConsoleLogFormat(" JSON ")
	l.WithField("error", errors.New("boom")).Warn("slow query")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "warning", rec["level"])
	assert.Equal(t, "TEST_CONSOLE", rec["logger"])
	assert.Equal(t, "slow query", rec["message"])
	assert.Equal(t, map[string]any{"error": "boom"}, rec["fields"])

	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestFileLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "keysell.log")
	SetConsoleOutput(&bytes.Buffer{})
	defer SetConsoleOutput(nil)
	ConfigureFileLog(FileLogConfig{Enabled: true, Path: path, MaxSizeMB: 1, Format: "text"})
	defer ConfigureFileLog(FileLogConfig{})

	l := NewLogger("TEST_FILE")
	l.SetLevel(logrus.InfoLevel)
	l.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.False(t, strings.Contains(string(data), ansiReset), "file output has no colors")
}

func TestLog4jFormatterPlain(t *testing.T) {
	f := &Log4jColorFormatter{LoggerName: "A_VERY_LONG_NAME", NameWidth: 6, Plain: true}
	out, err := f.Format(&logrus.Entry{
		Time:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.ErrorLevel,
		Message: "failed",
		Data:    logrus.Fields{"b": 2, "a": 1},
	})
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, "2025-01-02 03:04:05.000   ERROR"))
	assert.Contains(t, s, "A_VERY : failed a=1 b=2\n")
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "database/session.go", shortPath("/src/keysell/database/session.go"))
	assert.Equal(t, "main.go", shortPath("main.go"))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("KEYSELL_TEST_STRING", "value")
	t.Setenv("KEYSELL_TEST_BOOL", "true")
	t.Setenv("KEYSELL_TEST_BAD_BOOL", "maybe")
	t.Setenv("KEYSELL_TEST_INT", " 42 ")
	t.Setenv("KEYSELL_TEST_DURATION", "1500ms")
	t.Setenv("KEYSELL_TEST_SECONDS", "30")
	t.Setenv("KEYSELL_TEST_BAD_DURATION", "soon")

	assert.Equal(t, "value", EnvDefaultString("KEYSELL_TEST_STRING", "def"))
	assert.Equal(t, "def", EnvDefaultString("KEYSELL_TEST_UNSET", "def"))
	assert.True(t, EnvDefaultBool("KEYSELL_TEST_BOOL", false))
	assert.True(t, EnvDefaultBool("KEYSELL_TEST_BAD_BOOL", true))
	assert.Equal(t, 42, EnvDefaultInt("KEYSELL_TEST_INT", 0))
	assert.Equal(t, 7, EnvDefaultInt("KEYSELL_TEST_STRING", 7))
	assert.Equal(t, 1500*time.Millisecond, EnvDefaultDuration("KEYSELL_TEST_DURATION", 0))
	assert.Equal(t, 30*time.Second, EnvDefaultDuration("KEYSELL_TEST_SECONDS", 0))
	assert.Equal(t, time.Minute, EnvDefaultDuration("KEYSELL_TEST_BAD_DURATION", time.Minute))
}
