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
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

// tracer feeds bun query hooks from the adapters' own execution path, so the
// same hooks work for pooled leases and the embedded queue.
type tracer struct {
	db    *bun.DB
	hooks []bun.QueryHook
}

func (t *tracer) start(ctx context.Context, query string, args []any) (context.Context, *bun.QueryEvent) {
	if t == nil || len(t.hooks) == 0 {
		return ctx, nil
	}
	evt := &bun.QueryEvent{
		DB:        t.db,
		Query:     query,
		QueryArgs: args,
		StartTime: time.Now(),
	}
	for _, h := range t.hooks {
		ctx = h.BeforeQuery(ctx, evt)
	}
	return ctx, evt
}

func (t *tracer) finish(ctx context.Context, evt *bun.QueryEvent, res sql.Result, err error) {
	if evt == nil {
		return
	}
	evt.Result = res
	evt.Err = err
	for i := len(t.hooks) - 1; i >= 0; i-- {
		t.hooks[i].AfterQuery(ctx, evt)
	}
}

// newQueryHooks builds the hook chain for cfg. BUNDEBUG=1|2 additionally
// enables bun's own debug printer.
func newQueryHooks(cfg *ConnectionConfig, logger Logger) []bun.QueryHook {
	var hooks []bun.QueryHook
	if cfg.EnableQueryLog {
		// stdout carries command output
		hooks = append(hooks, NewQueryHook(os.Stderr, true))
	}
	if cfg.SlowQueryTime > 0 {
		hooks = append(hooks, &SlowQueryHook{threshold: cfg.SlowQueryTime, logger: logger})
	}
	if os.Getenv("BUNDEBUG") != "" {
		hooks = append(hooks, bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))
	}
	return hooks
}

// QueryHook prints every statement, colored by operation. With verbose off
// only failures are printed.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a QueryHook writing to w. The env variable
// DB_QUERY_LOG overrides it at runtime: "0" off, "1" failures, "2" all.
func NewQueryHook(w io.Writer, verbose bool) *QueryHook {
	return &QueryHook{envName: "DB_QUERY_LOG", enabled: true, verbose: verbose, writer: w}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	enabled := h.enabled
	verbose := h.verbose
	if env, ok := os.LookupEnv(h.envName); ok {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}
	if !enabled || (!verbose && event.Err == nil) {
		return
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		color.CyanString("%10s", "[SQL]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", operationColor(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", color.New(color.BgRed, color.FgWhite).Sprintf(" %s: %s ", typ, event.Err))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(op string) *color.Color {
	switch op {
	case "SELECT":
		return color.New(color.FgGreen)
	case "INSERT":
		return color.New(color.FgBlue)
	case "UPDATE":
		return color.New(color.FgYellow)
	case "DELETE":
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgRed)
	}
}

// SlowQueryHook warns about successful statements slower than threshold.
type SlowQueryHook struct {
	threshold time.Duration
	logger    Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil {
		return
	}
	if d := time.Since(event.StartTime); d > h.threshold {
		h.logger.Warn("slow query",
			"operation", event.Operation(),
			"duration", d.Round(time.Microsecond),
			"query", event.Query)
	}
}
