package repository

import (
	"context"
	"log/slog"

	"github.com/dwalsh-mfg/barcode-verifier/constants"
	"github.com/dwalsh-mfg/barcode-verifier/internal/entity"
)

// ScanRepository reads the append-only scan ledger. Writes go through
// JobRepository.RecordScan so they stay atomic with the cached counters;
// there is intentionally no update or delete.
type ScanRepository interface {
	Recent(ctx context.Context, jobID int64, limit int) ([]*entity.Scan, error)
	ListByJob(ctx context.Context, jobID int64) ([]*entity.Scan, error)
}

type scanRepo struct {
	db  *DB
	log *slog.Logger
}

func NewScanRepository(db *DB, log *slog.Logger) ScanRepository {
	return &scanRepo{db: db, log: log}
}

const scanColumns = `id, job_id, barcode, expected, status, ts`

// Recent returns the last limit scans for the job, most recent first.
func (r *scanRepo) Recent(ctx context.Context, jobID int64, limit int) ([]*entity.Scan, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT `+scanColumns+` FROM scans WHERE job_id = ? ORDER BY id DESC LIMIT ?`),
		jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScans(rows)
}

// ListByJob returns the full ledger for a job in insertion order.
func (r *scanRepo) ListByJob(ctx context.Context, jobID int64) ([]*entity.Scan, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT `+scanColumns+` FROM scans WHERE job_id = ? ORDER BY id ASC`), jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScans(rows)
}

type rowsScanner interface {
	rowScanner
	Next() bool
	Err() error
}

func collectScans(rows rowsScanner) ([]*entity.Scan, error) {
	var scans []*entity.Scan
	for rows.Next() {
		var (
			s      entity.Scan
			status string
			ts     string
		)
		if err := rows.Scan(&s.ID, &s.JobID, &s.Barcode, &s.Expected, &status, &ts); err != nil {
			return nil, err
		}
		s.Status = constants.ScanStatus(status)
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		s.Timestamp = t
		scans = append(scans, &s)
	}
	return scans, rows.Err()
}
