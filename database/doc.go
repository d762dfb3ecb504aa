// Package database is the data access port of the agency back end: one
// DataAccess contract served by a pooled adapter for MySQL/PostgreSQL URLs
// or a queued single-session adapter for an embedded SQLite file, plus the
// migration runner, seeder, health checks and configuration built on it.
package database
