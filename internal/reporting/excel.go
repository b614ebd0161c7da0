package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet names of an exported report workbook
const (
	SheetSummary     = "Summary"
	SheetCategories  = "Categories"
	SheetMonths      = "Months"
	SheetTopSpenders = "Top Spenders"
)

// ExcelExporter renders reports as .xlsx workbooks
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// Write renders the report and writes the workbook to w
func (x *ExcelExporter) Write(report *Report, w io.Writer) error {
	f, err := x.build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFile renders the report into dir and returns the file path
func (x *ExcelExporter) WriteFile(report *Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := x.build(report)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := fmt.Sprintf("expense_report_%s_%s.xlsx", report.Currency, report.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	x.logger.Info("Report workbook saved", zap.String("path", path))
	return path, nil
}

func (x *ExcelExporter) build(report *Report) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetCategories, SheetMonths, SheetTopSpenders} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	summary := [][]interface{}{
		{"Currency", report.Currency},
		{"Generated At", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Total Submissions", report.TotalSubmissions},
		{"Approved", report.ApprovedCount},
		{"Converted", report.ConvertedCount},
		{"Unconvertible", report.UnconvertibleCount},
		{"Pending", report.PendingCount},
		{"Rejected", report.RejectedCount},
		{"Total", report.Total.StringFixed(2)},
		{"Average", report.Average.StringFixed(2)},
	}
	for _, code := range report.UnconvertibleCurrencies {
		summary = append(summary, []interface{}{"Unconvertible Currency", code})
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		f.Close()
		return nil, err
	}

	rows := [][]interface{}{{"Category", "Count", "Total"}}
	for _, c := range report.ByCategory {
		rows = append(rows, []interface{}{c.Category, c.Count, c.Total.StringFixed(2)})
	}
	if err := writeRows(f, SheetCategories, rows); err != nil {
		f.Close()
		return nil, err
	}

	rows = [][]interface{}{{"Month", "Count", "Total"}}
	for _, m := range report.ByMonth {
		rows = append(rows, []interface{}{m.Month, m.Count, m.Total.StringFixed(2)})
	}
	if err := writeRows(f, SheetMonths, rows); err != nil {
		f.Close()
		return nil, err
	}

	rows = [][]interface{}{{"Rank", "User ID", "Name", "Count", "Total"}}
	for i, s := range report.TopSpenders {
		rows = append(rows, []interface{}{i + 1, s.UserID, s.Name, s.Count, s.Total.StringFixed(2)})
	}
	if err := writeRows(f, SheetTopSpenders, rows); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
