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
	"sync"
	"time"
)

const healthCheckTimeout = 10 * time.Second

// HealthMonitor runs CheckHealth on a fixed interval and logs transitions
// between healthy and unhealthy. It never reconnects.
type HealthMonitor struct {
	db       Database
	interval time.Duration
	logger   Logger

	mu        sync.RWMutex
	last      *HealthStatus
	running   bool
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewHealthMonitor(db Database, interval time.Duration, logger Logger) *HealthMonitor {
	if logger == nil {
		logger = NopLogger()
	}
	return &HealthMonitor{
		db:       db,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the check loop. A non-positive interval disables it.
func (m *HealthMonitor) Start() {
	if m.interval <= 0 {
		return
	}
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.running = true
		m.mu.Unlock()
		go m.loop()
	})
}

func (m *HealthMonitor) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(context.Background())
		case <-m.stop:
			return
		}
	}
}

// Check runs one health probe, records it and returns it.
func (m *HealthMonitor) Check(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	status := CheckHealth(ctx, m.db)

	m.mu.Lock()
	prev := m.last
	m.last = status
	m.mu.Unlock()

	switch {
	case !status.Healthy && (prev == nil || prev.Healthy):
		m.logger.Error("database health check failed", "backend", status.Backend, "error", status.LastError)
	case status.Healthy && prev != nil && !prev.Healthy:
		m.logger.Info("database healthy again", "backend", status.Backend, "response_time", status.ResponseTime)
	default:
		m.logger.Debug("database health check", "healthy", status.Healthy, "response_time", status.ResponseTime)
	}
	return status
}

// Last returns the most recent status, or nil before the first check.
func (m *HealthMonitor) Last() *HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Stop ends the loop and waits for it. Safe to call more than once.
func (m *HealthMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if running {
		<-m.done
	}
}
