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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestQueryHookVerbosity(t *testing.T) {
	ok := &bun.QueryEvent{Query: "SELECT * FROM buyers", StartTime: time.Now()}
	failed := &bun.QueryEvent{Query: "DELETE FROM buyers", StartTime: time.Now(), Err: errors.New("locked")}

	var buf bytes.Buffer
	t.Setenv("DB_QUERY_LOG", "1")
	h := NewQueryHook(&buf, true)
	h.AfterQuery(context.Background(), ok)
	assert.Empty(t, buf.String(), "level 1 prints failures only")
	h.AfterQuery(context.Background(), failed)
	assert.Contains(t, buf.String(), "DELETE FROM buyers")
	assert.Contains(t, buf.String(), "locked")

	buf.Reset()
	t.Setenv("DB_QUERY_LOG", "2")
	h.AfterQuery(context.Background(), ok)
	assert.Contains(t, buf.String(), "SELECT * FROM buyers")

	buf.Reset()
	t.Setenv("DB_QUERY_LOG", "0")
	h.AfterQuery(context.Background(), failed)
	assert.Empty(t, buf.String())
}

func TestQueryLogGoesToStderr(t *testing.T) {
	t.Setenv("BUNDEBUG", "")
	hooks := newQueryHooks(&ConnectionConfig{EnableQueryLog: true}, nil)
	require.Len(t, hooks, 1)
	h, ok := hooks[0].(*QueryHook)
	require.True(t, ok)
	assert.Same(t, os.Stderr, h.writer)
	assert.True(t, h.verbose)
}

func TestSlowQueryHook(t *testing.T) {
	logger := &recordingLogger{}
	h := &SlowQueryHook{threshold: 10 * time.Millisecond, logger: logger}

	h.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Empty(t, logger.messages("warn"))

	h.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second), Err: errors.New("x")})
	assert.Empty(t, logger.messages("warn"))

	h.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 2", StartTime: time.Now().Add(-time.Second)})
	assert.Equal(t, []string{"slow query"}, logger.messages("warn"))
}

type countingHook struct {
	before, after int
	lastQuery     string
	lastErr       error
}

func (h *countingHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	h.before++
	return ctx
}

func (h *countingHook) AfterQuery(_ context.Context, evt *bun.QueryEvent) {
	h.after++
	h.lastQuery = evt.Query
	h.lastErr = evt.Err
}

func TestTracerDrivesHooks(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	hook := &countingHook{}
	db.base.tracer.hooks = append(db.base.tracer.hooks, hook)

	mustRun(t, db, "CREATE TABLE t (v TEXT)")
	_, err := db.All(ctx, "SELECT v FROM t WHERE v = ?", "x")
	require.NoError(t, err)
	assert.Equal(t, 2, hook.before)
	assert.Equal(t, 2, hook.after)
	assert.Equal(t, "SELECT v FROM t WHERE v = ?", hook.lastQuery)

	_, err = db.Get(ctx, "SELECT * FROM missing")
	require.Error(t, err)
	assert.Error(t, hook.lastErr)

	var nilTracer *tracer
	c, evt := nilTracer.start(ctx, "SELECT 1", nil)
	assert.Nil(t, evt)
	nilTracer.finish(c, evt, nil, nil)
}
