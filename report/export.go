package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	SeriesEncryptMS = "encrypt_ms"
	SeriesDecryptMS = "decrypt_ms"
	SeriesEntropy   = "entropy_bits_per_byte"
)

var csvHeader = []string{"run_id", "series", "index", "value"}

// WriteSamplesCSV writes every sample as one row: run_id, series, index, value.
func WriteSamplesCSV(w io.Writer, runID string, d Distributions) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	series := []struct {
		name    string
		samples []float64
	}{
		{SeriesEncryptMS, d.EncryptMS},
		{SeriesDecryptMS, d.DecryptMS},
		{SeriesEntropy, d.Entropy},
	}
	for _, s := range series {
		for i, v := range s.samples {
			row := []string{runID, s.name, strconv.Itoa(i), strconv.FormatFloat(v, 'f', 4, 64)}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

const (
	_SHEET_SUMMARY = "Summary"
	_SHEET_LATENCY = "Latency"
	_SHEET_ENTROPY = "Entropy"
)

// WriteWorkbook saves an XLSX workbook with a summary sheet and one sheet per distribution.
func WriteWorkbook(path string, s Summary) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := f.SetSheetName("Sheet1", _SHEET_SUMMARY); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{_SHEET_LATENCY, _SHEET_ENTROPY} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	r := s.Report
	summaryRows := [][]interface{}{
		{"run_id", s.RunID},
		{"target", s.Target},
		{"started", s.Started.UTC().Format("2006-01-02T15:04:05Z")},
		{"planned", s.Run.Planned},
		{"completed", s.Run.Completed},
		{"service_failures", len(s.Run.Failures)},
		{"identical_total", r.Uniqueness.Total},
		{"identical_distinct", r.Uniqueness.Distinct},
		{"identical_duplicates", r.Uniqueness.Duplicates},
		{"uniqueness_ratio", r.Uniqueness.Ratio},
		{"entropy_mean", r.Entropy.Mean},
		{"entropy_excluded", r.Entropy.Excluded},
		{"encrypt_p95_ms", r.Latency.Encrypt.P95},
		{"encrypt_mean_ms", r.Latency.Encrypt.Mean},
		{"decrypt_p95_ms", r.Latency.Decrypt.P95},
		{"decrypt_mean_ms", r.Latency.Decrypt.Mean},
	}
	for i, row := range summaryRows {
		if err := setRow(f, _SHEET_SUMMARY, i+1, row); err != nil {
			return err
		}
	}

	d := DistributionsOf(r)
	if err := setRow(f, _SHEET_LATENCY, 1, []interface{}{SeriesEncryptMS, SeriesDecryptMS}); err != nil {
		return err
	}
	for i := 0; i < len(d.EncryptMS) || i < len(d.DecryptMS); i++ {
		row := []interface{}{nil, nil}
		if i < len(d.EncryptMS) {
			row[0] = d.EncryptMS[i]
		}
		if i < len(d.DecryptMS) {
			row[1] = d.DecryptMS[i]
		}
		if err := setRow(f, _SHEET_LATENCY, i+2, row); err != nil {
			return err
		}
	}

	if err := setRow(f, _SHEET_ENTROPY, 1, []interface{}{SeriesEntropy}); err != nil {
		return err
	}
	for i, v := range d.Entropy {
		if err := setRow(f, _SHEET_ENTROPY, i+2, []interface{}{v}); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}
