package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "modernc.org/sqlite"             // sqlite driver (pure Go)
)

// Dialects supported by the store. The DSN picks the driver: anything
// starting with postgres:// (or postgresql://) goes through pgx, everything
// else is treated as a sqlite path/URI.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type Config struct {
	DSN           string
	MaxConns      int
	DialTimeout   time.Duration
	HealthTimeout time.Duration
}

// DB wraps the sql handle with the dialect so repositories can share
// placeholder rebinding.
type DB struct {
	*sql.DB
	Dialect string
	log     *slog.Logger
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	dialect := DialectSQLite
	driver := "sqlite"
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		dialect = DialectPostgres
		driver = "pgx"
	}
	logger.Info("connecting to database", "dialect", dialect)

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if dialect == DialectSQLite {
		// sqlite serializes writers anyway; a single connection avoids
		// SQLITE_BUSY under concurrent readers.
		db.SetMaxOpenConns(1)
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		_ = db.Close()
		return nil, err
	}

	logger.Info("successfully connected to database")
	return &DB{DB: db, Dialect: dialect, log: logger}, nil
}

// Close closes the database connection gracefully.
func (d *DB) Close() {
	d.log.Info("closing database connection")
	if err := d.DB.Close(); err != nil {
		d.log.Error("failed to close database", "error", err)
	}
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.PingContext(ctx)
}

// Rebind converts ?-style placeholders to the dialect's form.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Times are stored as text so both drivers round-trip identically.
const (
	timeLayout = time.RFC3339Nano
	dateLayout = "2006-01-02"
)

func fmtTime(t time.Time) string { return t.Format(timeLayout) }

func fmtDate(t time.Time) string { return t.Format(dateLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func parseDate(s string) (time.Time, error) { return time.Parse(dateLayout, s) }
