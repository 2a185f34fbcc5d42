package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwalsh-mfg/barcode-verifier/constants"
	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
	"github.com/dwalsh-mfg/barcode-verifier/internal/entity"
)

var dbSeq atomic.Int64

// newTestDB opens a fresh shared-cache in-memory sqlite database. The
// single pooled connection keeps the database alive for the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", dbSeq.Add(1))

	db, err := Open(context.Background(), Config{DSN: dsn}, log)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, Migrate(context.Background(), db, log))
	return db
}

func testRepos(t *testing.T) (*DB, JobRepository, ScanRepository, ShiftRepository) {
	t.Helper()
	db := newTestDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := NewJobRepository(db, log)
	scans := NewScanRepository(db, log)
	shifts := NewShiftRepository(db, log)
	return db, jobs, scans, shifts
}

func activeJob(start time.Time) *entity.Job {
	return &entity.Job{
		JobID:            "JOB_" + start.Format("20060102_150405"),
		ExpectedBarcode:  "ABC123",
		PiecesPerShipper: 2,
		TargetQuantity:   100,
		StartTime:        start,
		IsActive:         true,
	}
}

func TestJobCreateAndGetActive(t *testing.T) {
	_, jobs, _, _ := testRepos(t)
	ctx := context.Background()

	got, err := jobs.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	job := activeJob(start)
	job.Buckets = map[string]entity.HourBucket{entity.BucketKey(start): {Shippers: 1, Pieces: 2}}
	require.NoError(t, jobs.Create(ctx, job))
	assert.NotZero(t, job.ID)

	got, err = jobs.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.JobID, got.JobID)
	assert.Equal(t, "ABC123", got.ExpectedBarcode)
	assert.True(t, got.StartTime.Equal(start))
	assert.True(t, got.IsActive)
	assert.Nil(t, got.EndTime)
	assert.Equal(t, entity.HourBucket{Shippers: 1, Pieces: 2}, got.Bucket(start))
}

func TestGetByIDNotFound(t *testing.T) {
	_, jobs, _, _ := testRepos(t)

	_, err := jobs.GetByID(context.Background(), 42)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestOnlyOneActiveJob(t *testing.T) {
	_, jobs, _, _ := testRepos(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.Create(ctx, activeJob(start)))

	// The partial unique index rejects a second active row regardless of
	// what the caller got wrong upstream.
	err := jobs.Create(ctx, activeJob(start.Add(time.Hour)))
	require.Error(t, err)
}

func TestRecordScanUpdatesCounters(t *testing.T) {
	_, jobs, scans, _ := testRepos(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	job := activeJob(start)
	require.NoError(t, jobs.Create(ctx, job))

	updated := job.Clone()
	updated.TotalScans = 1
	updated.PassCount = 1
	updated.AddToBucket(start)
	scan := &entity.Scan{
		JobID:     job.ID,
		Barcode:   "ABC123",
		Expected:  "ABC123",
		Status:    constants.ScanStatusPass,
		Timestamp: start.Add(time.Minute),
	}
	require.NoError(t, jobs.RecordScan(ctx, updated, scan))
	assert.NotZero(t, scan.ID)

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalScans)
	assert.Equal(t, 1, got.PassCount)
	assert.Equal(t, entity.HourBucket{Shippers: 1, Pieces: 2}, got.Bucket(start))

	ledger, err := scans.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, constants.ScanStatusPass, ledger[0].Status)
}

func TestRecentScansOrderAndLimit(t *testing.T) {
	_, jobs, scans, _ := testRepos(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	job := activeJob(start)
	require.NoError(t, jobs.Create(ctx, job))

	for i := 0; i < 5; i++ {
		updated := job.Clone()
		updated.TotalScans = i + 1
		scan := &entity.Scan{
			JobID:     job.ID,
			Barcode:   fmt.Sprintf("BC%d", i),
			Expected:  "ABC123",
			Status:    constants.ScanStatusFail,
			Timestamp: start.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, jobs.RecordScan(ctx, updated, scan))
	}

	recent, err := scans.Recent(ctx, job.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "BC4", recent[0].Barcode)
	assert.Equal(t, "BC2", recent[2].Barcode)

	all, err := scans.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "BC0", all[0].Barcode)
}

func TestCloseJobRollsUpShift(t *testing.T) {
	_, jobs, _, shifts := testRepos(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	job := activeJob(start)
	require.NoError(t, jobs.Create(ctx, job))

	job.PassCount = 3
	job.FailCount = 1
	job.TotalScans = 4
	end := start.Add(time.Hour)
	job.EndTime = &end
	job.IsActive = false
	require.NoError(t, jobs.CloseJob(ctx, job, end))

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.EndTime)

	stat, err := shifts.GetByDate(ctx, end)
	require.NoError(t, err)
	require.NotNil(t, stat)
	// Only accepted shippers count; pieces derive from pass_count.
	assert.Equal(t, 3, stat.TotalShippers)
	assert.Equal(t, 6, stat.TotalPieces)
	assert.Equal(t, 3, stat.TotalPass)
	assert.Equal(t, 1, stat.TotalFail)
	assert.Equal(t, 1, stat.JobsCompleted)

	// A second job on the same date accumulates into the same row.
	job2 := activeJob(start.Add(2 * time.Hour))
	require.NoError(t, jobs.Create(ctx, job2))
	job2.PassCount = 2
	job2.TotalScans = 2
	end2 := start.Add(3 * time.Hour)
	job2.EndTime = &end2
	job2.IsActive = false
	require.NoError(t, jobs.CloseJob(ctx, job2, end2))

	stat, err = shifts.GetByDate(ctx, end2)
	require.NoError(t, err)
	assert.Equal(t, 5, stat.TotalShippers)
	assert.Equal(t, 10, stat.TotalPieces)
	assert.Equal(t, 2, stat.JobsCompleted)
}

func TestListStartedSince(t *testing.T) {
	_, jobs, _, _ := testRepos(t)
	ctx := context.Background()

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	old := activeJob(day.Add(-10 * time.Hour))
	old.IsActive = false
	require.NoError(t, jobs.Create(ctx, old))
	require.NoError(t, jobs.Create(ctx, activeJob(day.Add(9*time.Hour))))

	today, err := jobs.ListStartedSince(ctx, day)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.True(t, today[0].IsActive)
}

func TestShiftEnsureForDate(t *testing.T) {
	_, _, _, shifts := testRepos(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	got, err := shifts.GetByDate(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, got)

	stat, err := shifts.EnsureForDate(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, stat)
	assert.Zero(t, stat.TotalShippers)

	again, err := shifts.EnsureForDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, stat.ID, again.ID)
}

func TestStateExportImportRoundTrip(t *testing.T) {
	db, jobs, scans, shifts := testRepos(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	state := NewStateRepository(db, jobs, scans, log)

	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	job := activeJob(start)
	require.NoError(t, jobs.Create(ctx, job))
	updated := job.Clone()
	updated.TotalScans = 1
	updated.PassCount = 1
	require.NoError(t, jobs.RecordScan(ctx, updated, &entity.Scan{
		JobID: job.ID, Barcode: "ABC123", Expected: "ABC123",
		Status: constants.ScanStatusPass, Timestamp: start.Add(time.Minute),
	}))
	_, err := shifts.EnsureForDate(ctx, start)
	require.NoError(t, err)

	exported, err := state.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackupVersion, exported.Version)
	require.Len(t, exported.Jobs, 1)
	require.Len(t, exported.Jobs[0].Scans, 1)
	require.Len(t, exported.Shifts, 1)

	// Import into a second empty store and compare.
	db2 := newTestDB(t)
	jobs2 := NewJobRepository(db2, log)
	scans2 := NewScanRepository(db2, log)
	state2 := NewStateRepository(db2, jobs2, scans2, log)
	require.NoError(t, state2.Import(ctx, exported))

	reexported, err := state2.Export(ctx)
	require.NoError(t, err)
	require.Len(t, reexported.Jobs, 1)
	assert.Equal(t, job.JobID, reexported.Jobs[0].Job.JobID)
	assert.Equal(t, 1, reexported.Jobs[0].Job.PassCount)
	require.Len(t, reexported.Jobs[0].Scans, 1)
	assert.Equal(t, "ABC123", reexported.Jobs[0].Scans[0].Barcode)

	active, err := jobs2.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, job.JobID, active.JobID)
}

func TestExportEmptyStateIsImportable(t *testing.T) {
	db, jobs, scans, _ := testRepos(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	state := NewStateRepository(db, jobs, scans, log)

	exported, err := state.Export(ctx)
	require.NoError(t, err)
	require.NotNil(t, exported.Jobs)
	require.NotNil(t, exported.Shifts)

	// A fresh instance's backup must marshal empty arrays, not null, or the
	// schema check refuses its own export.
	payload, err := json.Marshal(exported)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"jobs":[]`)
	assert.Contains(t, string(payload), `"shift_stats":[]`)
	require.NoError(t, ValidateBackupJSON(payload))

	require.NoError(t, state.Import(ctx, exported))
}

func TestValidateBackupJSON(t *testing.T) {
	valid := []byte(`{"version":1,"shift_stats":[],"jobs":[]}`)
	require.NoError(t, ValidateBackupJSON(valid))

	cases := map[string]string{
		"not json":        `{`,
		"missing version": `{"shift_stats":[],"jobs":[]}`,
		"bad job":         `{"version":1,"shift_stats":[],"jobs":[{"job":{"job_id":"J","expected_barcode":"","pieces_per_shipper":1,"target_quantity":0},"scans":[]}]}`,
		"bad status":      `{"version":1,"shift_stats":[],"jobs":[{"job":{"job_id":"J","expected_barcode":"A","pieces_per_shipper":1,"target_quantity":0},"scans":[{"barcode":"A","status":"MAYBE"}]}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateBackupJSON([]byte(payload)))
		})
	}
}

func TestRebind(t *testing.T) {
	db := &DB{Dialect: DialectPostgres}
	assert.Equal(t, `SELECT $1, $2`, db.Rebind(`SELECT ?, ?`))

	db.Dialect = DialectSQLite
	assert.Equal(t, `SELECT ?, ?`, db.Rebind(`SELECT ?, ?`))
}
