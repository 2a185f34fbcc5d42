package constants

// ScanStatus is the canonical verdict for rows in scans.
type ScanStatus string

// Stable values (store these exact strings in DB).
const (
	ScanStatusPass ScanStatus = "PASS" // barcode matched the job's expected barcode
	ScanStatusFail ScanStatus = "FAIL" // mismatch; the line locks
)
