package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dwalsh-mfg/barcode-verifier/internal/entity"
)

//go:embed state_schema.json
var stateSchemaJSON string

var stateSchema = jsonschema.MustCompileString("state_schema.json", stateSchemaJSON)

// BackupVersion is written into exports and accepted on import.
const BackupVersion = 1

// ValidateBackupJSON checks a restore payload against the backup schema
// before anything destructive happens.
func ValidateBackupJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return stateSchema.Validate(v)
}

// StateRepository bulk-exports and destructively imports the whole durable
// state (jobs, scans, shift stats).
type StateRepository interface {
	Export(ctx context.Context) (*entity.BackupState, error)
	Import(ctx context.Context, state *entity.BackupState) error
}

type stateRepo struct {
	db    *DB
	jobs  JobRepository
	scans ScanRepository
	log   *slog.Logger
}

func NewStateRepository(db *DB, jobs JobRepository, scans ScanRepository, log *slog.Logger) StateRepository {
	return &stateRepo{db: db, jobs: jobs, scans: scans, log: log}
}

func (r *stateRepo) Export(ctx context.Context) (*entity.BackupState, error) {
	// Empty slices, not nil: the payload must marshal with "jobs": [] so a
	// fresh instance's export stays schema-valid on import.
	state := &entity.BackupState{
		Version: BackupVersion,
		Shifts:  []*entity.ShiftStat{},
		Jobs:    []*entity.BackupJob{},
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+shiftColumns+` FROM shift_stats ORDER BY date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		stat, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		state.Shifts = append(state.Shifts, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	jrows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer jrows.Close()
	var jobs []*entity.Job
	for jrows.Next() {
		job, err := scanJob(jrows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := jrows.Err(); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		scans, err := r.scans.ListByJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		state.Jobs = append(state.Jobs, &entity.BackupJob{Job: job, Scans: scans})
	}
	r.log.Info("state exported", "jobs", len(state.Jobs), "shifts", len(state.Shifts))
	return state, nil
}

// Import replaces all Job/Scan/ShiftStat rows with the backup's contents.
// Runs as one transaction so a malformed payload cannot leave the store
// half-emptied.
func (r *stateRepo) Import(ctx context.Context, state *entity.BackupState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM scans`, `DELETE FROM jobs`, `DELETE FROM shift_stats`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, s := range state.Shifts {
		_, err := tx.ExecContext(ctx, r.db.Rebind(
			`INSERT INTO shift_stats (date, total_shippers, total_pieces, total_pass, total_fail, jobs_completed)
			VALUES (?, ?, ?, ?, ?, ?)`),
			fmtDate(s.Date), s.TotalShippers, s.TotalPieces, s.TotalPass, s.TotalFail, s.JobsCompleted)
		if err != nil {
			return err
		}
	}

	for _, bj := range state.Jobs {
		job := bj.Job
		buckets, err := marshalBuckets(job.Buckets)
		if err != nil {
			return err
		}
		var endTime any
		if job.EndTime != nil {
			endTime = fmtTime(*job.EndTime)
		}
		jobID, err := insertReturningID(ctx, r.db, tx,
			`INSERT INTO jobs (job_id, expected_barcode, pieces_per_shipper, target_quantity,
				start_time, end_time, is_active, pass_count, fail_count, total_scans, hour_buckets)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.JobID, job.ExpectedBarcode, job.PiecesPerShipper, job.TargetQuantity,
			fmtTime(job.StartTime), endTime, boolToInt(job.IsActive),
			job.PassCount, job.FailCount, job.TotalScans, buckets)
		if err != nil {
			return err
		}
		for _, s := range bj.Scans {
			_, err := tx.ExecContext(ctx, r.db.Rebind(
				`INSERT INTO scans (job_id, barcode, expected, status, ts) VALUES (?, ?, ?, ?, ?)`),
				jobID, s.Barcode, s.Expected, string(s.Status), fmtTime(s.Timestamp))
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	r.log.Warn("state replaced from backup", "jobs", len(state.Jobs), "shifts", len(state.Shifts))
	return nil
}
