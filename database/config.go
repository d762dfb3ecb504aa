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
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tomoncle/keysell/utils"
)

// LoadConfig reads the YAML file at path (optional; an empty path or a
// missing file yields the defaults) and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	overrideFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overrideFromEnv overrides configuration values from environment variables.
func overrideFromEnv(cfg *Config) {
	c := &cfg.Connection
	c.URL = utils.EnvDefaultString("DATABASE_URL", c.URL)
	c.File = utils.EnvDefaultString("DATABASE_FILE", c.File)

	// pool
	c.MaxOpenConns = utils.EnvDefaultInt("DB_MAX_OPEN_CONNS", c.MaxOpenConns)
	c.MaxIdleConns = utils.EnvDefaultInt("DB_MAX_IDLE_CONNS", c.MaxIdleConns)
	c.ConnMaxLifetime = utils.EnvDefaultDuration("DB_CONN_MAX_LIFETIME", c.ConnMaxLifetime)
	c.ConnMaxIdleTime = utils.EnvDefaultDuration("DB_CONN_MAX_IDLE_TIME", c.ConnMaxIdleTime)
	c.ConnectTimeout = utils.EnvDefaultDuration("DB_CONNECT_TIMEOUT", c.ConnectTimeout)

	// embedded session
	c.BusyTimeout = utils.EnvDefaultDuration("DB_BUSY_TIMEOUT", c.BusyTimeout)
	c.JournalMode = utils.EnvDefaultString("DB_JOURNAL_MODE", c.JournalMode)
	c.QueueSize = utils.EnvDefaultInt("DB_QUEUE_SIZE", c.QueueSize)

	c.EnableQueryLog = utils.EnvDefaultBool("DB_ENABLE_QUERY_LOG", c.EnableQueryLog)
	c.SlowQueryTime = utils.EnvDefaultDuration("DB_SLOW_QUERY_TIME", c.SlowQueryTime)
	c.HealthCheckInterval = utils.EnvDefaultDuration("DB_HEALTH_CHECK_INTERVAL", c.HealthCheckInterval)

	cfg.Migrate.EnableMigrate = utils.EnvDefaultBool("DB_ENABLE_MIGRATE", cfg.Migrate.EnableMigrate)
	cfg.Seed.EnableInit = utils.EnvDefaultBool("DB_ENABLE_SEED", cfg.Seed.EnableInit)
	cfg.Seed.Filepath = utils.EnvDefaultString("DB_SEED_PATH", cfg.Seed.Filepath)
	cfg.Seed.Environment = utils.EnvDefaultString("APP_ENV", cfg.Seed.Environment)
	cfg.Seed.AdminPassword = utils.EnvDefaultString("ADMIN_USER_PASSWORD", cfg.Seed.AdminPassword)
}

// Validate checks the settings Open depends on.
func (c *Config) Validate() error {
	conn := &c.Connection
	if conn.Backend() == BackendNetworked {
		if _, err := ParseURL(conn.URL); err != nil {
			return err
		}
		if conn.MaxOpenConns <= 0 {
			return fmt.Errorf("max_open_conns must be positive, got %d", conn.MaxOpenConns)
		}
		if conn.MaxIdleConns > conn.MaxOpenConns {
			conn.MaxIdleConns = conn.MaxOpenConns
		}
		return nil
	}
	if strings.TrimSpace(conn.File) == "" {
		conn.File = DefaultDatabaseFile
	}
	if conn.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", conn.QueueSize)
	}
	return nil
}
