package entity

// BackupState is the bulk export/import payload. It captures everything
// durable: shift history plus all jobs and their scan ledgers. The
// in-memory line-lock state is deliberately excluded.
type BackupState struct {
	Version int          `json:"version"`
	Shifts  []*ShiftStat `json:"shift_stats"`
	Jobs    []*BackupJob `json:"jobs"`
}

// BackupJob is one job plus its full scan ledger.
type BackupJob struct {
	Job   *Job    `json:"job"`
	Scans []*Scan `json:"scans"`
}
