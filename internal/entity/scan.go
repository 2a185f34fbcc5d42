package entity

import (
	"time"

	"github.com/dwalsh-mfg/barcode-verifier/constants"
)

// Scan represents one verification event. Rows are append-only: once
// recorded a scan is never edited or deleted, which is what makes the
// ledger auditable.
type Scan struct {
	ID        int64                `json:"id"`
	JobID     int64                `json:"job_id"`
	Barcode   string               `json:"barcode"`
	Expected  string               `json:"expected"`
	Status    constants.ScanStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
}

// View builds the display read model for a scan.
func (s *Scan) View() *ScanView {
	return &ScanView{
		ID:        s.ID,
		Barcode:   s.Barcode,
		Expected:  s.Expected,
		Status:    s.Status,
		Timestamp: s.Timestamp.Format("15:04:05"),
	}
}

// ScanView is the wire representation of a scan for viewers.
type ScanView struct {
	ID        int64                `json:"id"`
	Barcode   string               `json:"barcode"`
	Expected  string               `json:"expected"`
	Status    constants.ScanStatus `json:"status"`
	Timestamp string               `json:"timestamp"`
}
