package entity

import (
	"fmt"
	"math"
	"time"
)

// HourBucket accumulates accepted shippers and pieces for one wall-clock
// hour of the day.
type HourBucket struct {
	Shippers int `json:"shippers"`
	Pieces   int `json:"pieces"`
}

// Job represents one production run for data transfer between layers.
// PassCount, FailCount, TotalScans and Buckets are cached counters kept in
// step with the scan ledger; reads never derive them from the ledger.
type Job struct {
	ID               int64              `json:"id"`
	JobID            string             `json:"job_id"`
	ExpectedBarcode  string             `json:"expected_barcode"`
	PiecesPerShipper int                `json:"pieces_per_shipper"`
	TargetQuantity   int                `json:"target_quantity"`
	StartTime        time.Time          `json:"start_time"`
	EndTime          *time.Time         `json:"end_time,omitempty"`
	IsActive         bool               `json:"is_active"`
	PassCount        int                `json:"pass_count"`
	FailCount        int                `json:"fail_count"`
	TotalScans       int                `json:"total_scans"`
	Buckets          map[string]HourBucket `json:"hour_buckets,omitempty"`
}

// BucketKey returns the bucket map key for the hour containing t. Keys
// carry the date so a job running past midnight cannot credit yesterday's
// scans to today's board.
func BucketKey(t time.Time) string {
	return t.Format("2006-01-02T15")
}

// TotalPieces is derived from the cached pass count.
func (j *Job) TotalPieces() int {
	return j.PassCount * j.PiecesPerShipper
}

// PassRate is pass_count / total_scans as a percentage. A job with no
// scans yet reports 100: nothing has failed.
func (j *Job) PassRate() float64 {
	if j.TotalScans == 0 {
		return 100.0
	}
	return float64(j.PassCount) / float64(j.TotalScans) * 100.0
}

// Elapsed is the run duration; for an active job it runs against now.
func (j *Job) Elapsed(now time.Time) time.Duration {
	end := now
	if j.EndTime != nil {
		end = *j.EndTime
	}
	return end.Sub(j.StartTime)
}

// ElapsedFormatted renders the elapsed duration as HH:MM:SS.
func (j *Job) ElapsedFormatted(now time.Time) string {
	total := int(j.Elapsed(now).Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Bucket returns the bucket for the hour containing t, zero if absent.
func (j *Job) Bucket(t time.Time) HourBucket {
	if j.Buckets == nil {
		return HourBucket{}
	}
	return j.Buckets[BucketKey(t)]
}

// AddToBucket credits one accepted shipper to the hour containing t.
func (j *Job) AddToBucket(t time.Time) {
	if j.Buckets == nil {
		j.Buckets = make(map[string]HourBucket)
	}
	key := BucketKey(t)
	b := j.Buckets[key]
	b.Shippers++
	b.Pieces += j.PiecesPerShipper
	j.Buckets[key] = b
}

// Clone returns a deep copy, so a failed persistence call cannot leave a
// half-updated job behind.
func (j *Job) Clone() *Job {
	cp := *j
	if j.EndTime != nil {
		t := *j.EndTime
		cp.EndTime = &t
	}
	if j.Buckets != nil {
		cp.Buckets = make(map[string]HourBucket, len(j.Buckets))
		for k, b := range j.Buckets {
			cp.Buckets[k] = b
		}
	}
	return &cp
}

// Snapshot builds the read model served to viewers.
func (j *Job) Snapshot(now time.Time, locked bool) *JobSnapshot {
	cur := j.Bucket(now)
	prev := j.Bucket(now.Add(-time.Hour))
	return &JobSnapshot{
		ID:               j.ID,
		JobID:            j.JobID,
		ExpectedBarcode:  j.ExpectedBarcode,
		PiecesPerShipper: j.PiecesPerShipper,
		TargetQuantity:   j.TargetQuantity,
		StartTime:        j.StartTime.Format("15:04"),
		StartTimeISO:     j.StartTime.Format(time.RFC3339),
		IsActive:         j.IsActive,
		IsLocked:         locked,
		PassCount:        j.PassCount,
		FailCount:        j.FailCount,
		TotalScans:       j.TotalScans,
		TotalPieces:      j.TotalPieces(),
		PassRate:         math.Round(j.PassRate()*10) / 10,
		Elapsed:          j.ElapsedFormatted(now),
		ScansThisHour:    cur.Shippers,
		PiecesThisHour:   cur.Pieces,
		ScansPrevHour:    prev.Shippers,
		PiecesPrevHour:   prev.Pieces,
	}
}

// Summary builds the closing summary returned by job end.
func (j *Job) Summary(now time.Time) *JobSummary {
	return &JobSummary{
		JobID:       j.JobID,
		TotalScans:  j.TotalScans,
		TotalPieces: j.TotalPieces(),
		PassCount:   j.PassCount,
		FailCount:   j.FailCount,
		PassRate:    math.Round(j.PassRate()*10) / 10,
		Elapsed:     j.ElapsedFormatted(now),
	}
}

// JobSnapshot is the display read model for a job. Numeric state comes from
// cached counters only.
type JobSnapshot struct {
	ID               int64   `json:"id"`
	JobID            string  `json:"job_id"`
	ExpectedBarcode  string  `json:"expected_barcode"`
	PiecesPerShipper int     `json:"pieces_per_shipper"`
	TargetQuantity   int     `json:"target_quantity"`
	StartTime        string  `json:"start_time"`
	StartTimeISO     string  `json:"start_time_iso"`
	IsActive         bool    `json:"is_active"`
	IsLocked         bool    `json:"is_locked"`
	PassCount        int     `json:"pass_count"`
	FailCount        int     `json:"fail_count"`
	TotalScans       int     `json:"total_scans"`
	TotalPieces      int     `json:"total_pieces"`
	PassRate         float64 `json:"pass_rate"`
	Elapsed          string  `json:"elapsed"`
	ScansThisHour    int     `json:"scans_this_hour"`
	PiecesThisHour   int     `json:"pieces_this_hour"`
	ScansPrevHour    int     `json:"scans_prev_hour"`
	PiecesPrevHour   int     `json:"pieces_prev_hour"`
}

// JobSummary is returned once when a job is ended.
type JobSummary struct {
	JobID       string  `json:"job_id"`
	TotalScans  int     `json:"total_scans"`
	TotalPieces int     `json:"total_pieces"`
	PassCount   int     `json:"pass_count"`
	FailCount   int     `json:"fail_count"`
	PassRate    float64 `json:"pass_rate"`
	Elapsed     string  `json:"elapsed"`
}
