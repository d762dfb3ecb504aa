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
	"time"
)

// BackendKind identifies which adapter serves the port.
type BackendKind string

const (
	BackendNetworked BackendKind = "networked"
	BackendEmbedded  BackendKind = "embedded"
)

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Backend       BackendKind   `json:"backend"`
	Dialect       string        `json:"dialect"`
	ResponseTime  time.Duration `json:"response_time"`
	Stats         *DBStats      `json:"stats,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql pool stats. The embedded backend adds its
// queue depth.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
	QueueDepth        int           `json:"queue_depth,omitempty"`
}

// ConnectionConfig describes how to reach the backend. A non-empty URL
// selects the networked backend; otherwise File names the embedded database.
type ConnectionConfig struct {
	URL             string        `yaml:"url" json:"url"`
	File            string        `yaml:"file" json:"file"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	// embedded only
	BusyTimeout time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
	JournalMode string        `yaml:"journal_mode" json:"journal_mode"`
	QueueSize   int           `yaml:"queue_size" json:"queue_size"`

	EnableQueryLog bool          `yaml:"enable_query_log" json:"enable_query_log"`
	SlowQueryTime  time.Duration `yaml:"slow_query_time" json:"slow_query_time"`

	// HealthCheckInterval enables the background health monitor when > 0.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// Backend reports which adapter cfg selects.
func (c *ConnectionConfig) Backend() BackendKind {
	if hasURL(c.URL) {
		return BackendNetworked
	}
	return BackendEmbedded
}

// MigrateConfig controls schema migration on startup.
type MigrateConfig struct {
	EnableMigrate bool `yaml:"enable_migrate" json:"enable_migrate"`
}

// SeedConfig controls data seeding and environment selection.
type SeedConfig struct {
	EnableInit    bool   `yaml:"enable_init" json:"enable_init"`
	Filepath      string `yaml:"filepath" json:"filepath"`
	Environment   string `yaml:"environment" json:"environment"`
	AdminPassword string `yaml:"admin_password" json:"-"`
}

// Config aggregates connection, migration and seed settings.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" json:"connection"`
	Migrate    MigrateConfig    `yaml:"migrate" json:"migrate"`
	Seed       SeedConfig       `yaml:"seed" json:"seed"`
}

const DefaultDatabaseFile = "./agency_db.sqlite"

// DefaultConnectionConfig returns a connection config with the stock pool
// and session settings.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		File:            DefaultDatabaseFile,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		BusyTimeout:     5 * time.Second,
		JournalMode:     "WAL",
		QueueSize:       64,
		SlowQueryTime:   time.Second,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Connection: *DefaultConnectionConfig(),
		Migrate:    MigrateConfig{EnableMigrate: true},
		Seed: SeedConfig{
			Filepath:    "configs/sql",
			Environment: "development",
		},
	}
}
