// Package verify implements the scan verification engine: the single
// owner of job/scan mutation state. One mutex serializes every mutating
// operation end to end (read, decide, write), which is what keeps two
// near-simultaneous job starts from both observing "no active job".
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dwalsh-mfg/barcode-verifier/constants"
	"github.com/dwalsh-mfg/barcode-verifier/internal/clock"
	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
	"github.com/dwalsh-mfg/barcode-verifier/internal/entity"
	"github.com/dwalsh-mfg/barcode-verifier/internal/hardware"
	"github.com/dwalsh-mfg/barcode-verifier/internal/hub"
	"github.com/dwalsh-mfg/barcode-verifier/internal/lock"
	"github.com/dwalsh-mfg/barcode-verifier/internal/repository"
	"github.com/dwalsh-mfg/barcode-verifier/internal/stats"
)

// ScanResult is returned for every accepted scan and published on the hub.
// The recent-scans window is a display convenience, not the system of
// record.
type ScanResult struct {
	Scan        *entity.ScanView    `json:"scan"`
	Job         *entity.JobSnapshot `json:"job"`
	RecentScans []*entity.ScanView  `json:"recent_scans"`
}

// EndResult is the closing payload for a finished job.
type EndResult struct {
	Summary *entity.JobSummary    `json:"summary"`
	Shift   *entity.ShiftSnapshot `json:"shift"`
}

type Engine struct {
	mu sync.Mutex

	jobs   repository.JobRepository
	scans  repository.ScanRepository
	shifts repository.ShiftRepository
	state  repository.StateRepository

	guard *lock.Guard
	hw    hardware.Signaler
	hub   *hub.Hub
	clk   clock.Clock
	log   *slog.Logger

	lineName        string
	hardwareEnabled bool
	recentWindow    int
	shiftStartHour  int
	shiftEndHour    int

	cur *entity.Job
}

type Option func(*Engine)

func WithLineName(name string) Option {
	return func(e *Engine) { e.lineName = name }
}

func WithHardwareEnabled(enabled bool) Option {
	return func(e *Engine) { e.hardwareEnabled = enabled }
}

func WithRecentWindow(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.recentWindow = n
		}
	}
}

func WithShiftHours(start, end int) Option {
	return func(e *Engine) {
		if start >= 0 && end <= 23 && start <= end {
			e.shiftStartHour, e.shiftEndHour = start, end
		}
	}
}

func NewEngine(
	jobs repository.JobRepository,
	scans repository.ScanRepository,
	shifts repository.ShiftRepository,
	state repository.StateRepository,
	guard *lock.Guard,
	hw hardware.Signaler,
	h *hub.Hub,
	clk clock.Clock,
	log *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		jobs:           jobs,
		scans:          scans,
		shifts:         shifts,
		state:          state,
		guard:          guard,
		hw:             hw,
		hub:            h,
		clk:            clk,
		log:            log,
		lineName:       "Master Shipper Verify",
		recentWindow:   8,
		shiftStartHour: 8,
		shiftEndHour:   20,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load picks up the active job left by a previous process and seeds
// today's shift row. Call once before serving.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.jobs.GetActive(ctx)
	if err != nil {
		return common.WrapPersistence(err, "load active job")
	}
	e.cur = job
	if _, err := e.shifts.EnsureForDate(ctx, e.clk.Now()); err != nil {
		return common.WrapPersistence(err, "seed shift row")
	}
	if job != nil {
		e.log.Info("resumed active job", "job_id", job.JobID, "total_scans", job.TotalScans)
	}
	return nil
}

// StartJob validates the request and creates the run. Fails with
// ErrConflict while another job is active; the check and the create happen
// under the same mutex, never as two independent steps.
func (e *Engine) StartJob(ctx context.Context, req StartJobRequest) (*entity.JobSnapshot, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrConflict, e.cur.JobID)
	}

	now := e.clk.Now()
	jobID := req.JobID
	if jobID == "" {
		jobID = "JOB_" + now.Format("20060102_150405")
	}
	job := &entity.Job{
		JobID:            jobID,
		ExpectedBarcode:  req.ExpectedBarcode,
		PiecesPerShipper: req.PiecesPerShipper,
		TargetQuantity:   req.TargetQuantity,
		StartTime:        now,
		IsActive:         true,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, common.WrapPersistence(err, "create job")
	}
	e.cur = job
	e.log.Info("job started", "job_id", job.JobID, "expected_barcode", truncate(job.ExpectedBarcode, 20))

	snap := job.Snapshot(now, e.guard.Locked())
	e.hub.Publish(hub.Event{Type: constants.EventJobStarted, Data: snap})
	return snap, nil
}

// ProcessScan verifies one barcode against the active job. The scan row
// and every cached counter move in one transaction; a FAIL stays recorded
// even though the line then locks.
func (e *Engine) ProcessScan(ctx context.Context, barcode string) (*ScanResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur == nil {
		return nil, common.ErrNoActiveJob
	}
	if e.guard.Locked() {
		return nil, common.ErrLineLocked
	}
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: no barcode provided", common.ErrInvalidInput)
	}

	// Exact string match. Label printers reproduce exact strings; no
	// normalization, no case folding.
	status := constants.ScanStatusFail
	if barcode == e.cur.ExpectedBarcode {
		status = constants.ScanStatusPass
	}

	now := e.clk.Now()
	updated := e.cur.Clone()
	updated.TotalScans++
	if status == constants.ScanStatusPass {
		updated.PassCount++
		updated.AddToBucket(now)
	} else {
		updated.FailCount++
	}

	scan := &entity.Scan{
		JobID:     e.cur.ID,
		Barcode:   barcode,
		Expected:  e.cur.ExpectedBarcode,
		Status:    status,
		Timestamp: now,
	}
	if err := e.jobs.RecordScan(ctx, updated, scan); err != nil {
		// In-memory counters were never touched; ledger and cache stay
		// consistent with each other.
		return nil, common.WrapPersistence(err, "record scan")
	}
	e.cur = updated

	e.log.Info("scan processed", "job_id", updated.JobID, "status", status, "barcode", truncate(barcode, 20))

	if status == constants.ScanStatusPass {
		e.hw.SignalPass()
	} else {
		e.hw.SignalFail()
		e.guard.Engage()
		e.hw.HaltLine()
	}

	recent, err := e.scans.Recent(ctx, updated.ID, e.recentWindow)
	if err != nil {
		// The scan is committed; degrade the display window rather than
		// reporting a failure for a recorded scan.
		e.log.Error("recent scans query failed", "job_id", updated.JobID, "err", err)
		recent = []*entity.Scan{scan}
	}
	views := make([]*entity.ScanView, 0, len(recent))
	for _, s := range recent {
		views = append(views, s.View())
	}

	result := &ScanResult{
		Scan:        scan.View(),
		Job:         updated.Snapshot(now, e.guard.Locked()),
		RecentScans: views,
	}
	e.hub.Publish(hub.Event{Type: constants.EventScan, Data: result})
	return result, nil
}

// VerifyPin runs a supervisor authorization attempt. A success while the
// line is locked resumes it for everyone.
func (e *Engine) VerifyPin(ctx context.Context, pin string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verifyPinLocked(pin)
}

func (e *Engine) verifyPinLocked(pin string) error {
	wasLocked := e.guard.Locked()
	if err := e.guard.VerifyPin(strings.TrimSpace(pin)); err != nil {
		return err
	}
	if wasLocked {
		e.hw.ResumeLine()
	}
	return nil
}

// EndJob closes the active job after PIN verification. The PIN runs
// through the same attempt counter as line unlock, so the two supervisor
// actions are not separately brute-forceable.
func (e *Engine) EndJob(ctx context.Context, pin string) (*EndResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.verifyPinLocked(pin); err != nil {
		return nil, err
	}
	if e.cur == nil {
		return nil, common.ErrNoActiveJob
	}

	now := e.clk.Now()
	job := e.cur.Clone()
	job.EndTime = &now
	job.IsActive = false

	if err := e.jobs.CloseJob(ctx, job, now); err != nil {
		return nil, common.WrapPersistence(err, "close job")
	}
	e.cur = nil
	e.guard.Reset()
	e.hw.AllOff()

	shift, err := e.shifts.GetByDate(ctx, now)
	if err != nil {
		return nil, common.WrapPersistence(err, "read shift totals")
	}
	var shiftSnap *entity.ShiftSnapshot
	if shift != nil {
		shiftSnap = shift.Snapshot()
	}

	result := &EndResult{Summary: job.Summary(now), Shift: shiftSnap}
	e.log.Info("job ended", "job_id", job.JobID, "total_scans", job.TotalScans, "pass_rate", result.Summary.PassRate)

	e.hub.Publish(hub.Event{Type: constants.EventJobEnded, Data: result})
	if shiftSnap != nil {
		e.hub.Publish(hub.Event{Type: constants.EventShiftUpdate, Data: shiftSnap})
	}
	return result, nil
}

// Status is the point-in-time read reconnecting clients use to re-sync.
func (e *Engine) Status(ctx context.Context) (*entity.StatusSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.Now()
	shift, err := e.shifts.EnsureForDate(ctx, now)
	if err != nil {
		return nil, common.WrapPersistence(err, "read shift totals")
	}
	var jobSnap *entity.JobSnapshot
	if e.cur != nil {
		jobSnap = e.cur.Snapshot(now, e.guard.Locked())
	}
	return &entity.StatusSnapshot{
		ActiveJob:       jobSnap,
		Shift:           shift.Snapshot(),
		LineName:        e.lineName,
		HardwareEnabled: e.hardwareEnabled,
		ServerTime:      now.Format("15:04:05"),
	}, nil
}

// HourlyStats builds today's production board from cached hour buckets.
func (e *Engine) HourlyStats(ctx context.Context) ([]stats.HourRow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	jobs, err := e.jobs.ListStartedSince(ctx, midnight)
	if err != nil {
		return nil, common.WrapPersistence(err, "list today's jobs")
	}
	// The active job may predate midnight; bucket keys are date-qualified,
	// so including it contributes only its scans from today.
	if e.cur != nil && e.cur.StartTime.Before(midnight) {
		jobs = append(jobs, e.cur)
	}
	return stats.BuildDay(jobs, now, e.shiftStartHour, e.shiftEndHour), nil
}

// JobByID reads one job, active or finished, by its row id.
func (e *Engine) JobByID(ctx context.Context, id int64) (*entity.JobSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.WrapPersistence(err, "load job")
	}
	locked := e.cur != nil && e.cur.ID == job.ID && e.guard.Locked()
	return job.Snapshot(e.clk.Now(), locked), nil
}

// ExportState dumps every durable record. The in-memory lock state is
// deliberately not part of a backup.
func (e *Engine) ExportState(ctx context.Context) (*entity.BackupState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, err := e.state.Export(ctx)
	if err != nil {
		return nil, common.WrapPersistence(err, "export state")
	}
	return state, nil
}

// ImportState destructively replaces all durable state from a backup
// payload. The payload is schema-validated before anything is deleted.
func (e *Engine) ImportState(ctx context.Context, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := repository.ValidateBackupJSON(data); err != nil {
		return fmt.Errorf("%w: %s", common.ErrValidation, err.Error())
	}
	var state entity.BackupState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("%w: %s", common.ErrValidation, err.Error())
	}
	if err := e.state.Import(ctx, &state); err != nil {
		return common.WrapPersistence(err, "import state")
	}
	job, err := e.jobs.GetActive(ctx)
	if err != nil {
		return common.WrapPersistence(err, "reload active job")
	}
	e.cur = job
	e.log.Warn("state restored from backup", "active_job", job != nil)

	e.hub.Publish(hub.Event{Type: constants.EventRestoreComplete, Data: map[string]bool{"success": true}})
	return nil
}

// truncate shortens log output on rune boundaries.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
