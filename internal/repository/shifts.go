package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/dwalsh-mfg/barcode-verifier/internal/entity"
)

// ShiftRepository reads and seeds per-day shift rows. Rollups from closed
// jobs happen inside JobRepository.CloseJob to keep them transactional.
type ShiftRepository interface {
	GetByDate(ctx context.Context, date time.Time) (*entity.ShiftStat, error)
	EnsureForDate(ctx context.Context, date time.Time) (*entity.ShiftStat, error)
}

type shiftRepo struct {
	db  *DB
	log *slog.Logger
}

func NewShiftRepository(db *DB, log *slog.Logger) ShiftRepository {
	return &shiftRepo{db: db, log: log}
}

const shiftColumns = `id, date, total_shippers, total_pieces, total_pass, total_fail, jobs_completed`

// GetByDate returns the day's row, or nil when the date has no row yet.
func (r *shiftRepo) GetByDate(ctx context.Context, date time.Time) (*entity.ShiftStat, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+shiftColumns+` FROM shift_stats WHERE date = ?`), fmtDate(date))
	stat, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return stat, err
}

// EnsureForDate creates the day's row if it is missing and returns it.
// The unique date index makes concurrent creation safe.
func (r *shiftRepo) EnsureForDate(ctx context.Context, date time.Time) (*entity.ShiftStat, error) {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO shift_stats (date) VALUES (?) ON CONFLICT (date) DO NOTHING`), fmtDate(date))
	if err != nil {
		r.log.Error("shift row create failed", "date", fmtDate(date), "err", err)
		return nil, err
	}
	return r.GetByDate(ctx, date)
}

func scanShift(row rowScanner) (*entity.ShiftStat, error) {
	var (
		s    entity.ShiftStat
		date string
	)
	err := row.Scan(&s.ID, &date, &s.TotalShippers, &s.TotalPieces, &s.TotalPass, &s.TotalFail, &s.JobsCompleted)
	if err != nil {
		return nil, err
	}
	if s.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	return &s, nil
}
