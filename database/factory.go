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
	"time"

	"github.com/uptrace/bun"
)

// Database is a DataAccess plus the handles the migrator and health checks
// need. Both adapters implement it.
type Database interface {
	DataAccess
	Bun() *bun.DB
	Stats() *DBStats
}

var (
	_ Database = (*PooledDB)(nil)
	_ Database = (*EmbeddedDB)(nil)
)

// Open selects and constructs the adapter for cfg: the networked pool when
// a connection URL is configured, otherwise the embedded file. The caller
// owns the result and must Close it.
func Open(ctx context.Context, cfg *ConnectionConfig, logger Logger) (Database, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}
	switch cfg.Backend() {
	case BackendNetworked:
		logger.Info("using networked database", "url", RedactURL(cfg.URL))
		return NewPooledDB(ctx, cfg, logger)
	default:
		logger.Info("using embedded database", "file", cfg.File)
		return NewEmbeddedDB(ctx, cfg, logger)
	}
}

// CheckHealth runs a trivial round trip and reports latency and pool stats.
func CheckHealth(ctx context.Context, db Database) *HealthStatus {
	status := &HealthStatus{
		Backend:       BackendEmbedded,
		Dialect:       db.Dialect().String(),
		LastCheckTime: time.Now(),
	}
	if _, ok := db.(*PooledDB); ok {
		status.Backend = BackendNetworked
	}

	start := time.Now()
	row, err := db.Get(ctx, "SELECT 1 AS count")
	status.ResponseTime = time.Since(start)
	switch {
	case err != nil:
		status.LastError = err.Error()
	case row.Int64("count") != 1:
		status.LastError = fmt.Sprintf("unexpected health probe result: %v", row["count"])
	default:
		status.Healthy = true
	}
	status.Stats = db.Stats()
	return status
}
