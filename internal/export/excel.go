package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/your-org/vca/internal/traffic"
)

const (
	SheetDetection = "Detection"
	SheetTraffic   = "Entry-Exit Traffic"
)

// WriteWorkbook saves the counts and the transition matrix as a two-sheet
// workbook. Matrix rows are sorted by entry then exit.
func WriteWorkbook(path string, vehicles, persons int, matrix traffic.Matrix) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDetection); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetTraffic); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	detection := [][]interface{}{
		{"Category", "Count"},
		{"Vehicles", vehicles},
		{"Persons", persons},
	}
	if err := writeRows(f, SheetDetection, detection, header); err != nil {
		return err
	}

	trafficRows := [][]interface{}{{"Entry", "Exit", "Vehicles"}}
	for _, r := range matrix.Rows() {
		trafficRows = append(trafficRows, []interface{}{r.Entry, r.Exit, r.Count})
	}
	if err := writeRows(f, SheetTraffic, trafficRows, header); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetTraffic, "A", "C", 14); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
