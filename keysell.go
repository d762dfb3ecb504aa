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

// Package keysell wires the agency data layer together: it opens the
// configured backend, brings its schema up to date, optionally seeds it and
// exposes the repositories.
package keysell

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomoncle/keysell/database"
	"github.com/tomoncle/keysell/migrations"
	"github.com/tomoncle/keysell/repository"
)

// App owns an open backend and everything built on it. Close releases it.
type App struct {
	Config   *database.Config
	DB       database.Database
	Migrator *database.Migrator
	Monitor  *database.HealthMonitor
	Repos    *repository.Repositories

	logger database.Logger
}

// Bootstrap opens the backend selected by cfg, runs pending migrations when
// enabled, runs the seed files when enabled and starts the health monitor
// when an interval is configured. On error nothing is left open.
func Bootstrap(ctx context.Context, cfg *database.Config, logger database.Logger) (app *App, err error) {
	if cfg == nil {
		cfg = database.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = database.NewDefaultLogger()
	}

	db, err := database.Open(ctx, &cfg.Connection, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, db.Close())
		}
	}()

	migrator, err := NewMigrator(db, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate.EnableMigrate {
		if _, err := migrator.Run(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.Seed.EnableInit {
		if _, err := database.NewSeeder(db, &cfg.Seed, logger).Run(ctx); err != nil {
			return nil, err
		}
	}

	monitor := database.NewHealthMonitor(db, cfg.Connection.HealthCheckInterval, logger)
	monitor.Start()

	return &App{
		Config:   cfg,
		DB:       db,
		Migrator: migrator,
		Monitor:  monitor,
		Repos:    repository.New(db),
		logger:   logger,
	}, nil
}

// NewMigrator builds a migrator over the migrations for db's dialect.
func NewMigrator(db database.Database, cfg *database.Config, logger database.Logger) (*database.Migrator, error) {
	items, err := migrations.Load(db.Dialect(), migrations.Options{AdminPassword: cfg.Seed.AdminPassword})
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return database.NewMigrator(db, items, logger), nil
}

// Health runs one health probe.
func (a *App) Health(ctx context.Context) *database.HealthStatus {
	return a.Monitor.Check(ctx)
}

// Close stops the health monitor and closes the backend.
func (a *App) Close() error {
	a.Monitor.Stop()
	return a.DB.Close()
}
