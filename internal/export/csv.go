// Package export writes aggregated treatment statistics as CSV and XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Skufu/vetdiag/internal/treatment"
)

// Report bundles every table the dashboard shows.
type Report struct {
	Summary treatment.Summary
	Clean   treatment.CleanReport
	Top     []treatment.Count
	Species []treatment.Count
	Pivot   treatment.Pivot
}

// BuildReport aggregates recs into a Report.
func BuildReport(recs []treatment.Record, clean treatment.CleanReport, topN int) Report {
	return Report{
		Summary: treatment.Summarize(recs),
		Clean:   clean,
		Top:     treatment.TopDiagnoses(recs, topN),
		Species: treatment.SpeciesBreakdown(recs),
		Pivot:   treatment.BuildPivot(recs, topN),
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	// BOM so spreadsheet apps detect UTF-8
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCountsCSV writes a frequency table with the given key column name.
func WriteCountsCSV(w io.Writer, keyHeader string, counts []treatment.Count) error {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Key, strconv.Itoa(c.Cases), strconv.Itoa(c.Heads)}
	}
	return writeCSV(w, []string{keyHeader, "cases", "heads"}, rows)
}

// WritePivotCSV writes the month x diagnosis matrix, one row per month.
func WritePivotCSV(w io.Writer, p treatment.Pivot) error {
	header := append([]string{"month"}, p.Diagnoses...)
	rows := make([][]string, len(p.Months))
	for i, m := range p.Months {
		row := make([]string, 0, len(p.Diagnoses)+1)
		row = append(row, m)
		for _, n := range p.Cells[i] {
			row = append(row, strconv.Itoa(n))
		}
		rows[i] = row
	}
	return writeCSV(w, header, rows)
}

// WriteDir writes every table of r into dir as CSV files plus report.xlsx.
// It returns the paths written.
func WriteDir(dir string, r Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"top_diagnoses.csv", func(w io.Writer) error { return WriteCountsCSV(w, "diagnosis", r.Top) }},
		{"species.csv", func(w io.Writer) error { return WriteCountsCSV(w, "species", r.Species) }},
		{"trends.csv", func(w io.Writer) error { return WritePivotCSV(w, r.Pivot) }},
		{"report.xlsx", func(w io.Writer) error { return WriteWorkbook(w, r) }},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
