package entity

import "time"

// ShiftStat aggregates one calendar day, independent of job boundaries.
// A date rollover starts a fresh row; prior days are never mutated.
type ShiftStat struct {
	ID            int64     `json:"id"`
	Date          time.Time `json:"date"`
	TotalShippers int       `json:"total_shippers"`
	TotalPieces   int       `json:"total_pieces"`
	TotalPass     int       `json:"total_pass"`
	TotalFail     int       `json:"total_fail"`
	JobsCompleted int       `json:"jobs_completed"`
}

// Snapshot builds the shift totals read model.
func (s *ShiftStat) Snapshot() *ShiftSnapshot {
	return &ShiftSnapshot{
		Date:          s.Date.Format("2006-01-02"),
		TotalShippers: s.TotalShippers,
		TotalPieces:   s.TotalPieces,
		TotalPass:     s.TotalPass,
		TotalFail:     s.TotalFail,
		JobsCompleted: s.JobsCompleted,
	}
}

// ShiftSnapshot is the wire representation of a day's totals.
type ShiftSnapshot struct {
	Date          string `json:"date"`
	TotalShippers int    `json:"total_shippers"`
	TotalPieces   int    `json:"total_pieces"`
	TotalPass     int    `json:"total_pass"`
	TotalFail     int    `json:"total_fail"`
	JobsCompleted int    `json:"jobs_completed"`
}

// StatusSnapshot is the point-in-time read served on /api/status and
// re-fetched by clients after a reconnect.
type StatusSnapshot struct {
	ActiveJob       *JobSnapshot   `json:"active_job"`
	Shift           *ShiftSnapshot `json:"shift"`
	LineName        string         `json:"line_name"`
	HardwareEnabled bool           `json:"hardware_enabled"`
	ServerTime      string         `json:"server_time"`
}
