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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger = logrus.Logger

const timestampFormat = "2006-01-02 15:04:05.000"

// FileLogConfig controls the optional rotating file sink shared by every
// named logger.
type FileLogConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Format     string
}

var (
	loggerRegistryMu sync.RWMutex
	loggerRegistry   = map[string]*logrus.Logger{}

	baseLevel     = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleFormat = normalizeFormat(EnvDefaultString("LOG_FORMAT", "text"))
	consoleOut    io.Writer = os.Stdout

	fileSinkMu sync.Mutex
	fileSink   *lumberjack.Logger
	fileFormat = "json"
)

func init() {
	cfg := FileLogConfig{
		Enabled:    EnvDefaultBool("LOG_FILE_ENABLED", false),
		Path:       EnvDefaultString("LOG_FILE", filepath.Join("logs", "keysell.log")),
		MaxSizeMB:  EnvDefaultInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: EnvDefaultInt("LOG_MAX_BACKUPS", 5),
		MaxAgeDays: EnvDefaultInt("LOG_MAX_AGE_DAYS", 30),
		Format:     EnvDefaultString("LOG_FILE_FORMAT", "json"),
	}
	if cfg.Enabled {
		ConfigureFileLog(cfg)
	}
}

// ConfigureFileLog attaches (or replaces) the rotating file sink. Loggers
// created before the call pick it up on their next entry.
func ConfigureFileLog(cfg FileLogConfig) {
	fileSinkMu.Lock()
	defer fileSinkMu.Unlock()
	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
	if !cfg.Enabled {
		return
	}
	if cfg.Path == "" {
		cfg.Path = filepath.Join("logs", "keysell.log")
	}
	fileSink = &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	fileFormat = normalizeFormat(cfg.Format)
}

// ConfigureConsoleLogFormat switches newly created loggers between the
// colored text layout and JSON lines.
func ConfigureConsoleLogFormat(format string) {
	consoleFormat = normalizeFormat(format)
}

// SetConsoleOutput redirects console output, mostly for tests.
func SetConsoleOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	consoleOut = w
}

func normalizeFormat(format string) string {
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		return "json"
	}
	return "text"
}

type sinkHook struct {
	name string
	text logrus.Formatter
	json logrus.Formatter
}

func (h *sinkHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *sinkHook) Fire(e *logrus.Entry) error {
	consoleFmt := h.text
	if consoleFormat == "json" {
		consoleFmt = h.json
	}
	b, err := consoleFmt.Format(e)
	if err != nil {
		return err
	}
	if _, err = consoleOut.Write(b); err != nil {
		return err
	}

	fileSinkMu.Lock()
	defer fileSinkMu.Unlock()
	if fileSink == nil {
		return nil
	}
	fileFmt := h.json
	if fileFormat == "text" {
		fileFmt = &Log4jColorFormatter{LoggerName: h.name, NameWidth: 10, Plain: true}
	}
	if b, err = fileFmt.Format(e); err != nil {
		return err
	}
	_, err = fileSink.Write(b)
	return err
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogger returns the named logger, creating and registering it on first
// use. Output goes through the shared console/file sinks.
func NewLogger(name string) *logrus.Logger {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	if l, ok := loggerRegistry[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(baseLevel)
	l.SetReportCaller(true)
	l.AddHook(&sinkHook{
		name: name,
		text: &Log4jColorFormatter{LoggerName: name, NameWidth: 10},
		json: &JSONLogFormatter{LoggerName: name},
	})
	loggerRegistry[name] = l
	return l
}

func SetLoggerLevel(name string, lvlStr string) bool {
	loggerRegistryMu.RLock()
	lg, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if !ok {
		return false
	}
	lg.SetLevel(ParseLogLevel(lvlStr))
	return true
}

func SetAllLoggersLevel(levelStr string) {
	lvl := ParseLogLevel(levelStr)
	loggerRegistryMu.RLock()
	for _, lg := range loggerRegistry {
		lg.SetLevel(lvl)
	}
	loggerRegistryMu.RUnlock()
	baseLevel = lvl
}

// Log4jColorFormatter renders "time LEVEL pid - [main] name file:line : msg k=v".
type Log4jColorFormatter struct {
	LoggerName string
	NameWidth  int
	// Plain drops ANSI colors, used for file output.
	Plain bool
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	wrap := func(s, code string) string {
		if f.Plain {
			return s
		}
		return code + s + ansiReset
	}
	lvl := fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))
	name := fmt.Sprintf("%*s", f.NameWidth, limitRunes(f.LoggerName, f.NameWidth))
	caller := ""
	if entry.Caller != nil {
		caller = " " + wrap(fmt.Sprintf("%s:%d", shortPath(entry.Caller.File), entry.Caller.Line), ansiFaint)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s - %s %s%s %s %s",
		entry.Time.Format(timestampFormat),
		wrap(lvl, levelColor(entry.Level)),
		wrap(fmt.Sprintf("%-6d", os.Getpid()), ansiMagenta),
		wrap("[main]", ansiMagenta),
		wrap(name, ansiCyan),
		caller,
		wrap(":", ansiFaint),
		entry.Message,
	)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

type JSONLogFormatter struct {
	LoggerName string
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	type jsonLogRecord struct {
		Time    string                 `json:"time"`
		Level   string                 `json:"level"`
		Logger  string                 `json:"logger"`
		Caller  string                 `json:"caller,omitempty"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields,omitempty"`
	}
	rec := jsonLogRecord{
		Time:    entry.Time.Format(timestampFormat),
		Level:   strings.ToLower(entry.Level.String()),
		Logger:  f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = fmt.Sprintf("%s:%d", shortPath(entry.Caller.File), entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

const (
	ansiReset   = "\x1b[0m"
	ansiFaint   = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiYellow  = "\x1b[33m"
	ansiGreen   = "\x1b[32m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func levelColor(level logrus.Level) string {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return ansiRed
	case logrus.WarnLevel:
		return ansiYellow
	case logrus.InfoLevel:
		return ansiGreen
	case logrus.DebugLevel:
		return ansiBlue
	default:
		return ansiMagenta
	}
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

// shortPath keeps the parent directory and file name.
func shortPath(p string) string {
	parts := strings.Split(filepath.ToSlash(p), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return parts[0]
}

func sortedKeys(m logrus.Fields) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
