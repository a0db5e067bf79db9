package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the workbook.
const (
	SheetSummary = "Summary"
	SheetTop     = "TopDiagnoses"
	SheetTrends  = "Trends"
	SheetSpecies = "Species"
)

// WriteWorkbook writes r as an XLSX workbook.
func WriteWorkbook(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTop, SheetTrends, SheetSpecies} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	summary := [][]any{
		{"metric", "value"},
		{"total_cases", r.Summary.TotalCases},
		{"total_heads", r.Summary.TotalHeads},
		{"diagnoses", r.Summary.Diagnoses},
		{"species", r.Summary.Species},
		{"undated_cases", r.Summary.Undated},
		{"first_date", formatDate(r.Summary.FirstDate)},
		{"last_date", formatDate(r.Summary.LastDate)},
		{"input_rows", r.Clean.InputRows},
		{"dropped_blank_diagnosis", r.Clean.DroppedBlank},
		{"dropped_not_sick", r.Clean.DroppedSentinel},
		{"dropped_rare_class", r.Clean.DroppedRare},
		{"min_class_count", r.Clean.MinClassCount},
	}
	if err := setRows(f, SheetSummary, summary); err != nil {
		return err
	}

	top := [][]any{{"diagnosis", "cases", "heads"}}
	for _, c := range r.Top {
		top = append(top, []any{c.Key, c.Cases, c.Heads})
	}
	if err := setRows(f, SheetTop, top); err != nil {
		return err
	}

	species := [][]any{{"species", "cases", "heads"}}
	for _, c := range r.Species {
		species = append(species, []any{c.Key, c.Cases, c.Heads})
	}
	if err := setRows(f, SheetSpecies, species); err != nil {
		return err
	}

	header := []any{"month"}
	for _, d := range r.Pivot.Diagnoses {
		header = append(header, d)
	}
	trends := [][]any{header}
	for i, m := range r.Pivot.Months {
		row := []any{m}
		for _, n := range r.Pivot.Cells[i] {
			row = append(row, n)
		}
		trends = append(trends, row)
	}
	if err := setRows(f, SheetTrends, trends); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
