package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dwalsh-mfg/barcode-verifier/internal/clock"
	"github.com/dwalsh-mfg/barcode-verifier/internal/repository"
)

// LookbackDays bounds history exports; the production boards only care
// about recent runs.
const LookbackDays = 120

// Service is a tiny façade over repositories that renders job/scan
// history as CSV or an XLSX workbook.
type Service struct {
	jobs   repository.JobRepository
	scans  repository.ScanRepository
	clk    clock.Clock
	logger *slog.Logger
}

func NewService(jobs repository.JobRepository, scans repository.ScanRepository, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, scans: scans, clk: clk, logger: logger}
}

var historyHeaders = []string{
	"Job ID",
	"Start Time",
	"Expected Barcode",
	"Scan Timestamp",
	"Scanned Barcode",
	"Status",
}

type historyRow struct {
	jobID     string
	startTime string
	expected  string
	scanTime  string
	barcode   string
	status    string
}

func (s *Service) historyRows(ctx context.Context) ([]historyRow, error) {
	cutoff := s.clk.Now().AddDate(0, 0, -LookbackDays)
	jobs, err := s.jobs.ListStartedSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	var rows []historyRow
	for _, job := range jobs {
		scans, err := s.scans.ListByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("query scans for %s: %w", job.JobID, err)
		}
		if len(scans) == 0 {
			// A row per job even when nothing was scanned, so empty runs
			// stay visible in the history.
			rows = append(rows, historyRow{
				jobID:     job.JobID,
				startTime: job.StartTime.Format("2006-01-02 15:04:05"),
				expected:  job.ExpectedBarcode,
				scanTime:  "NO SCANS",
			})
			continue
		}
		for _, scan := range scans {
			rows = append(rows, historyRow{
				jobID:     job.JobID,
				startTime: job.StartTime.Format("2006-01-02 15:04:05"),
				expected:  job.ExpectedBarcode,
				scanTime:  scan.Timestamp.Format("2006-01-02 15:04:05"),
				barcode:   scan.Barcode,
				status:    string(scan.Status),
			})
		}
	}
	return rows, nil
}

// HistoryCSV renders the lookback window as CSV bytes.
func (s *Service) HistoryCSV(ctx context.Context) ([]byte, error) {
	start := time.Now()
	rows, err := s.historyRows(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(historyHeaders); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.jobID, r.startTime, r.expected, r.scanTime, r.barcode, r.status}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.logger.Info("history exported", "format", "csv", "rows", len(rows), "took", time.Since(start))
	return buf.Bytes(), nil
}

// HistoryXLSX renders the same window as an XLSX workbook.
func (s *Service) HistoryXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	rows, err := s.historyRows(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Scan History"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range historyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range rows {
		values := []string{r.jobID, r.startTime, r.expected, r.scanTime, r.barcode, r.status}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	// Drop the default sheet so the workbook opens on the history.
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	s.logger.Info("history exported", "format", "xlsx", "rows", len(rows), "took", time.Since(start))
	return buf.Bytes(), nil
}

// Filename builds a timestamped download name like
// barcode_history_120d_20240115_140305.csv.
func (s *Service) Filename(ext string) string {
	return fmt.Sprintf("barcode_history_%dd_%s.%s", LookbackDays, s.clk.Now().Format("20060102_150405"), ext)
}
