package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
	"github.com/dwalsh-mfg/barcode-verifier/internal/entity"
)

// JobRepository persists jobs and the mutations that must be atomic with
// them. RecordScan and CloseJob each run as one transaction: counters and
// ledger move together or not at all.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	GetActive(ctx context.Context) (*entity.Job, error)
	GetByID(ctx context.Context, id int64) (*entity.Job, error)
	ListStartedSince(ctx context.Context, since time.Time) ([]*entity.Job, error)
	RecordScan(ctx context.Context, job *entity.Job, scan *entity.Scan) error
	CloseJob(ctx context.Context, job *entity.Job, shiftDate time.Time) error
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	return &jobRepo{db: db, log: log}
}

const jobColumns = `id, job_id, expected_barcode, pieces_per_shipper, target_quantity,
	start_time, end_time, is_active, pass_count, fail_count, total_scans, hour_buckets`

func (r *jobRepo) Create(ctx context.Context, job *entity.Job) error {
	buckets, err := marshalBuckets(job.Buckets)
	if err != nil {
		return err
	}
	id, err := insertReturningID(ctx, r.db, r.db.DB,
		`INSERT INTO jobs (job_id, expected_barcode, pieces_per_shipper, target_quantity,
			start_time, end_time, is_active, pass_count, fail_count, total_scans, hour_buckets)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
		job.JobID, job.ExpectedBarcode, job.PiecesPerShipper, job.TargetQuantity,
		fmtTime(job.StartTime), boolToInt(job.IsActive), job.PassCount, job.FailCount, job.TotalScans, buckets)
	if err != nil {
		r.log.Error("job create failed", "job_id", job.JobID, "err", err)
		return err
	}
	job.ID = id
	r.log.Info("job created", "job_id", job.JobID, "id", job.ID)
	return nil
}

func (r *jobRepo) GetActive(ctx context.Context) (*entity.Job, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+jobColumns+` FROM jobs WHERE is_active = 1 LIMIT 1`))
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func (r *jobRepo) GetByID(ctx context.Context, id int64) (*entity.Job, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: job %d", common.ErrNotFound, id)
	}
	return job, err
}

func (r *jobRepo) ListStartedSince(ctx context.Context, since time.Time) ([]*entity.Job, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT `+jobColumns+` FROM jobs WHERE start_time >= ? ORDER BY start_time DESC`),
		fmtTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RecordScan appends the scan row and writes the job's updated cached
// counters in a single transaction.
func (r *jobRepo) RecordScan(ctx context.Context, job *entity.Job, scan *entity.Scan) error {
	buckets, err := marshalBuckets(job.Buckets)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertReturningID(ctx, r.db, tx,
		`INSERT INTO scans (job_id, barcode, expected, status, ts) VALUES (?, ?, ?, ?, ?)`,
		scan.JobID, scan.Barcode, scan.Expected, string(scan.Status), fmtTime(scan.Timestamp))
	if err != nil {
		r.log.Error("scan insert failed", "job_id", job.JobID, "err", err)
		return err
	}

	_, err = tx.ExecContext(ctx, r.db.Rebind(
		`UPDATE jobs SET pass_count = ?, fail_count = ?, total_scans = ?, hour_buckets = ? WHERE id = ?`),
		job.PassCount, job.FailCount, job.TotalScans, buckets, job.ID)
	if err != nil {
		r.log.Error("job counter update failed", "job_id", job.JobID, "err", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	scan.ID = id
	return nil
}

// CloseJob marks the job finished and rolls its totals into the day's
// shift row, creating the row if the date is new. One transaction.
func (r *jobRepo) CloseJob(ctx context.Context, job *entity.Job, shiftDate time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var endTime any
	if job.EndTime != nil {
		endTime = fmtTime(*job.EndTime)
	}
	_, err = tx.ExecContext(ctx, r.db.Rebind(
		`UPDATE jobs SET is_active = 0, end_time = ? WHERE id = ?`),
		endTime, job.ID)
	if err != nil {
		r.log.Error("job close failed", "job_id", job.JobID, "err", err)
		return err
	}

	// One PASS scan is one accepted shipper.
	_, err = tx.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO shift_stats (date, total_shippers, total_pieces, total_pass, total_fail, jobs_completed)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (date) DO UPDATE SET
			total_shippers = shift_stats.total_shippers + excluded.total_shippers,
			total_pieces = shift_stats.total_pieces + excluded.total_pieces,
			total_pass = shift_stats.total_pass + excluded.total_pass,
			total_fail = shift_stats.total_fail + excluded.total_fail,
			jobs_completed = shift_stats.jobs_completed + 1`),
		fmtDate(shiftDate), job.PassCount, job.TotalPieces(), job.PassCount, job.FailCount)
	if err != nil {
		r.log.Error("shift rollup failed", "job_id", job.JobID, "err", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	r.log.Info("job closed", "job_id", job.JobID, "total_scans", job.TotalScans, "pass_rate", job.PassRate())
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*entity.Job, error) {
	var (
		job       entity.Job
		startTime string
		endTime   sql.NullString
		isActive  int
		buckets   string
	)
	err := row.Scan(&job.ID, &job.JobID, &job.ExpectedBarcode, &job.PiecesPerShipper,
		&job.TargetQuantity, &startTime, &endTime, &isActive,
		&job.PassCount, &job.FailCount, &job.TotalScans, &buckets)
	if err != nil {
		return nil, err
	}
	job.IsActive = isActive == 1
	if job.StartTime, err = parseTime(startTime); err != nil {
		return nil, err
	}
	if endTime.Valid {
		t, err := parseTime(endTime.String)
		if err != nil {
			return nil, err
		}
		job.EndTime = &t
	}
	if err := json.Unmarshal([]byte(buckets), &job.Buckets); err != nil {
		return nil, err
	}
	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalBuckets(buckets map[string]entity.HourBucket) (string, error) {
	if buckets == nil {
		return "{}", nil
	}
	b, err := json.Marshal(buckets)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertReturningID papers over the LastInsertId / RETURNING split between
// the two drivers.
func insertReturningID(ctx context.Context, db *DB, ex execer, query string, args ...any) (int64, error) {
	if db.Dialect == DialectPostgres {
		var id int64
		err := ex.QueryRowContext(ctx, db.Rebind(query+` RETURNING id`), args...).Scan(&id)
		return id, err
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
