package repository

import (
	"context"
	"log/slog"
)

// Schema DDL. The one-active-job invariant gets a partial unique index as a
// storage-level backstop; the engine's serialization is the primary guard.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		expected_barcode TEXT NOT NULL,
		pieces_per_shipper INTEGER NOT NULL DEFAULT 1,
		target_quantity INTEGER NOT NULL DEFAULT 0,
		start_time TEXT NOT NULL,
		end_time TEXT,
		is_active INTEGER NOT NULL DEFAULT 0,
		pass_count INTEGER NOT NULL DEFAULT 0,
		fail_count INTEGER NOT NULL DEFAULT 0,
		total_scans INTEGER NOT NULL DEFAULT 0,
		hour_buckets TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS jobs_one_active ON jobs (is_active) WHERE is_active = 1`,
	`CREATE INDEX IF NOT EXISTS jobs_start_time ON jobs (start_time)`,
	`CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL REFERENCES jobs (id),
		barcode TEXT NOT NULL,
		expected TEXT NOT NULL,
		status TEXT NOT NULL,
		ts TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS scans_job_id ON scans (job_id)`,
	`CREATE INDEX IF NOT EXISTS scans_ts ON scans (ts)`,
	`CREATE TABLE IF NOT EXISTS shift_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		total_shippers INTEGER NOT NULL DEFAULT 0,
		total_pieces INTEGER NOT NULL DEFAULT 0,
		total_pass INTEGER NOT NULL DEFAULT 0,
		total_fail INTEGER NOT NULL DEFAULT 0,
		jobs_completed INTEGER NOT NULL DEFAULT 0
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id BIGSERIAL PRIMARY KEY,
		job_id TEXT NOT NULL,
		expected_barcode TEXT NOT NULL,
		pieces_per_shipper INTEGER NOT NULL DEFAULT 1,
		target_quantity INTEGER NOT NULL DEFAULT 0,
		start_time TEXT NOT NULL,
		end_time TEXT,
		is_active INTEGER NOT NULL DEFAULT 0,
		pass_count INTEGER NOT NULL DEFAULT 0,
		fail_count INTEGER NOT NULL DEFAULT 0,
		total_scans INTEGER NOT NULL DEFAULT 0,
		hour_buckets TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS jobs_one_active ON jobs (is_active) WHERE is_active = 1`,
	`CREATE INDEX IF NOT EXISTS jobs_start_time ON jobs (start_time)`,
	`CREATE TABLE IF NOT EXISTS scans (
		id BIGSERIAL PRIMARY KEY,
		job_id BIGINT NOT NULL REFERENCES jobs (id),
		barcode TEXT NOT NULL,
		expected TEXT NOT NULL,
		status TEXT NOT NULL,
		ts TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS scans_job_id ON scans (job_id)`,
	`CREATE INDEX IF NOT EXISTS scans_ts ON scans (ts)`,
	`CREATE TABLE IF NOT EXISTS shift_stats (
		id BIGSERIAL PRIMARY KEY,
		date TEXT NOT NULL UNIQUE,
		total_shippers INTEGER NOT NULL DEFAULT 0,
		total_pieces INTEGER NOT NULL DEFAULT 0,
		total_pass INTEGER NOT NULL DEFAULT 0,
		total_fail INTEGER NOT NULL DEFAULT 0,
		jobs_completed INTEGER NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	stmts := sqliteSchema
	if db.Dialect == DialectPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("schema migration failed", "error", err)
			return err
		}
	}
	logger.Info("database schema ready", "dialect", db.Dialect)
	return nil
}
