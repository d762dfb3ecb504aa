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
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

const MigrationTable = "schema_migrations"

type MigrationState int

const (
	MigrationNotStarted MigrationState = iota
	MigrationRunning
	MigrationCompleted
	MigrationFailed
)

func (s MigrationState) String() string {
	switch s {
	case MigrationRunning:
		return "running"
	case MigrationCompleted:
		return "completed"
	case MigrationFailed:
		return "failed"
	default:
		return "not_started"
	}
}

// MigrationRecord is one row of the bookkeeping table.
type MigrationRecord struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version   string    `bun:"version,pk"`
	Name      string    `bun:"name,notnull"`
	AppliedAt time.Time `bun:"applied_at,notnull"`
}

// MigrationFunc returns the statements of one migration step. It may read
// through db (for instance to check for existing objects) but must not
// write: the returned statements are applied atomically together with the
// bookkeeping record.
type MigrationFunc func(ctx context.Context, db Executor) ([]Query, error)

// MigrationItem describes a single migration version with up/down steps.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

type MigrationReport struct {
	State    MigrationState
	Applied  []string
	Skipped  int
	Duration time.Duration
}

// MigrationStatus pairs a known migration with its bookkeeping record.
type MigrationStatus struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator brings a database to the newest schema version.
type Migrator struct {
	db     Database
	items  []MigrationItem
	logger Logger

	runMu   sync.Mutex
	stateMu sync.RWMutex
	state   MigrationState
}

func NewMigrator(db Database, items []MigrationItem, logger Logger) *Migrator {
	if logger == nil {
		logger = NopLogger()
	}
	return &Migrator{db: db, items: items, logger: logger}
}

func (m *Migrator) State() MigrationState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

func (m *Migrator) setState(s MigrationState) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// Run applies every pending migration in ascending version order and
// records each one as it succeeds. The first failure stops the run; later
// versions are not attempted. Running against an up-to-date database is a
// no-op.
func (m *Migrator) Run(ctx context.Context) (*MigrationReport, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	start := time.Now()
	report := &MigrationReport{State: MigrationRunning}
	m.setState(MigrationRunning)

	fail := func(version string, err error) (*MigrationReport, error) {
		m.setState(MigrationFailed)
		report.State = MigrationFailed
		report.Duration = time.Since(start)
		m.logger.Error("migration failed", "version", version, "error", err)
		return report, migrationError(version, err)
	}

	items, err := sortItems(m.items)
	if err != nil {
		return fail("", err)
	}
	if err := m.ensureTable(ctx); err != nil {
		return fail("", fmt.Errorf("create %s: %w", MigrationTable, err))
	}
	applied, err := m.appliedByVersion(ctx)
	if err != nil {
		return fail("", err)
	}

	pending := make([]MigrationItem, 0, len(items))
	for _, it := range items {
		if _, ok := applied[it.Version]; !ok {
			pending = append(pending, it)
		}
	}
	report.Skipped = len(items) - len(pending)
	if len(pending) > 0 {
		if newest, ok := newestVersion(applied); ok && versionNumber(pending[0].Version) < newest {
			return fail(pending[0].Version, fmt.Errorf("pending version is older than applied version %d", newest))
		}
	}

	for _, it := range pending {
		if err := m.apply(ctx, it); err != nil {
			return fail(it.Version, err)
		}
		report.Applied = append(report.Applied, it.Version)
		m.logger.Info("migration applied", "version", it.Version, "name", it.Name)
	}

	m.setState(MigrationCompleted)
	report.State = MigrationCompleted
	report.Duration = time.Since(start)
	m.logger.Info("database migrations completed",
		"applied", len(report.Applied),
		"skipped", report.Skipped,
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

func (m *Migrator) apply(ctx context.Context, it MigrationItem) error {
	if it.Up == nil {
		return errors.New("migration has no up step")
	}
	stmts, err := it.Up(ctx, m.db)
	if err != nil {
		return err
	}
	stmts = append(stmts, Q(
		"INSERT INTO "+MigrationTable+" (version, name, applied_at) VALUES (?, ?, ?)",
		it.Version, it.Name, time.Now().UTC(),
	))
	return m.db.Transaction(ctx, stmts...)
}

// Rollback reverts the newest applied migration and removes its record.
// It returns nil when nothing is applied.
func (m *Migrator) Rollback(ctx context.Context) (*MigrationRecord, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if err := m.ensureTable(ctx); err != nil {
		return nil, migrationError("", err)
	}
	records, err := m.Applied(ctx)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	last := records[len(records)-1]

	var item *MigrationItem
	for i := range m.items {
		if m.items[i].Version == last.Version {
			item = &m.items[i]
			break
		}
	}
	if item == nil || item.Down == nil {
		return nil, migrationError(last.Version, errors.New("no down step registered"))
	}
	stmts, err := item.Down(ctx, m.db)
	if err != nil {
		return nil, migrationError(last.Version, err)
	}
	stmts = append(stmts, Q("DELETE FROM "+MigrationTable+" WHERE version = ?", last.Version))
	if err := m.db.Transaction(ctx, stmts...); err != nil {
		return nil, migrationError(last.Version, err)
	}
	m.logger.Info("migration rolled back", "version", last.Version, "name", last.Name)
	return &last, nil
}

// Applied lists bookkeeping records in ascending version order.
func (m *Migrator) Applied(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := m.db.All(ctx, "SELECT version, name, applied_at FROM "+MigrationTable)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationRecord, 0, len(rows))
	for _, r := range rows {
		rec := MigrationRecord{Version: r.String("version"), Name: r.String("name")}
		rec.AppliedAt, _ = r.Time("applied_at")
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return versionNumber(out[i].Version) < versionNumber(out[j].Version)
	})
	return out, nil
}

// Status reports every known migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	items, err := sortItems(m.items)
	if err != nil {
		return nil, migrationError("", err)
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, migrationError("", err)
	}
	applied, err := m.appliedByVersion(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(items))
	for _, it := range items {
		st := MigrationStatus{Version: it.Version, Name: it.Name}
		if rec, ok := applied[it.Version]; ok {
			st.Applied, st.AppliedAt = true, rec.AppliedAt
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	ddl := m.db.Bun().NewCreateTable().
		Model((*MigrationRecord)(nil)).
		IfNotExists().
		String()
	_, err := m.db.Run(ctx, ddl)
	return err
}

func (m *Migrator) appliedByVersion(ctx context.Context) (map[string]MigrationRecord, error) {
	records, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		out[r.Version] = r
	}
	return out, nil
}

// sortItems validates versions and returns a copy in ascending order.
func sortItems(items []MigrationItem) ([]MigrationItem, error) {
	seen := make(map[int64]string, len(items))
	for _, it := range items {
		n := versionNumber(it.Version)
		if n < 0 {
			return nil, fmt.Errorf("migration %q: version must start with digits", it.Version)
		}
		if prev, ok := seen[n]; ok {
			return nil, fmt.Errorf("duplicate migration version %s (%s and %s)", it.Version, prev, it.Name)
		}
		seen[n] = it.Name
	}
	out := append([]MigrationItem(nil), items...)
	sort.Slice(out, func(i, j int) bool {
		return versionNumber(out[i].Version) < versionNumber(out[j].Version)
	})
	return out, nil
}

func newestVersion(applied map[string]MigrationRecord) (int64, bool) {
	newest, ok := int64(-1), false
	for v := range applied {
		if n := versionNumber(v); n > newest {
			newest, ok = n, true
		}
	}
	return newest, ok
}

// versionNumber parses the leading digits of v, or returns -1.
func versionNumber(v string) int64 {
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 {
		return -1
	}
	n, err := strconv.ParseInt(v[:end], 10, 64)
	if err != nil {
		return -1
	}
	return n
}
