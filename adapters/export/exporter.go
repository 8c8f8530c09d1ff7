// Package export writes analysis outputs (index summaries and chart series)
// to CSV and XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"qachart/domain/chart"
	"qachart/internal/analysis"
)

// WriteSummaryCSV writes the index-description table to a CSV file.
func WriteSummaryCSV(path string, desc *analysis.IndexDescription) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(desc.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range desc.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteSummaryXLSX writes the index-description table to an XLSX workbook.
func WriteSummaryXLSX(path string, desc *analysis.IndexDescription) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(desc.Columns))
	for i, c := range desc.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for r, row := range desc.Rows {
		cells := make([]interface{}, len(row))
		for i, c := range row {
			cells[i] = c
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WriteChartCSV writes one control chart's series with its limits: x, y,
// center line, LCL, UCL, and an out-of-control flag per row.
func WriteChartCSV(path string, c *chart.ControlChart) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	x, y := c.ChartData()
	lcl, ucl := c.ControlLimits()
	ooc := make(map[int]bool, len(c.OutOfControl()))
	for _, i := range c.OutOfControl() {
		ooc[i] = true
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"x", "y", "center_line", "lcl", "ucl", "out_of_control"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range y {
		row := []string{
			formatFloat(x[i]),
			formatFloat(y[i]),
			formatFloat(c.CenterLine()),
			formatFloat(lcl),
			formatFloat(ucl),
			strconv.FormatBool(ooc[i]),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
