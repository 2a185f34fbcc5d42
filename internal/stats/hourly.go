// Package stats builds the hourly production-board table from cached job
// buckets. The scan ledger is never consulted; reads cost the number of
// jobs for the day, not the number of scans.
package stats

import (
	"time"

	"github.com/dwalsh-mfg/barcode-verifier/internal/entity"
)

// HourRow is one line of the production board.
type HourRow struct {
	Hour       int `json:"hour"`
	Shippers   int `json:"shippers"`
	Pieces     int `json:"pieces"`
	Cumulative int `json:"cumulative"`
}

// BuildDay merges the hour buckets of the given jobs into board rows for
// hours startHour..endHour inclusive on day's date, with a running
// cumulative piece count. Hours with no activity are present as zero rows;
// buckets from other dates never contribute.
func BuildDay(jobs []*entity.Job, day time.Time, startHour, endHour int) []HourRow {
	if startHour < 0 {
		startHour = 0
	}
	if endHour > 23 {
		endHour = 23
	}
	rows := make([]HourRow, 0, endHour-startHour+1)
	running := 0
	for h := startHour; h <= endHour; h++ {
		at := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, day.Location())
		row := HourRow{Hour: h}
		for _, job := range jobs {
			b := job.Bucket(at)
			row.Shippers += b.Shippers
			row.Pieces += b.Pieces
		}
		running += row.Pieces
		row.Cumulative = running
		rows = append(rows, row)
	}
	return rows
}
