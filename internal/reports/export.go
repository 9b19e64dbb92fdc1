package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/panaderia/internal/currency"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ContentType returns the MIME type served for format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ParseFormat validates an export format, defaulting to CSV.
func ParseFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

var periodHeader = []string{"Date", "Shifts", "Trays", "Bread sales", "Non-bread sales", "Total sales",
	"Bread expenses", "Non-bread expenses", "General expenses", "Net profit"}

func periodRow(label string, t PeriodTotals, money currency.Formatter) []string {
	return []string{
		label,
		strconv.Itoa(t.ShiftCount),
		strconv.Itoa(t.TotalTrays),
		money.Format(t.BreadSales),
		money.Format(t.NonBreadSales),
		money.Format(t.TotalSales),
		money.Format(t.BreadExpenses),
		money.Format(t.NonBreadExpenses),
		money.Format(t.GeneralExpenses),
		money.Format(t.NetProfit),
	}
}

func periodRows(report PeriodReport, money currency.Formatter) [][]string {
	rows := make([][]string, 0, len(report.Days)+2)
	rows = append(rows, periodHeader)
	for _, day := range report.Days {
		rows = append(rows, periodRow(day.Date, day.PeriodTotals, money))
	}
	return append(rows, periodRow("Total", report.PeriodTotals, money))
}

// WritePeriodCSV serialises a period report with one row per day and a total row.
func WritePeriodCSV(w io.Writer, report PeriodReport, money currency.Formatter) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(periodRows(report, money)); err != nil {
		return err
	}
	return writer.Error()
}

// WritePeriodXLSX writes a period report as a single-sheet workbook.
func WritePeriodXLSX(w io.Writer, report PeriodReport, money currency.Formatter) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := fmt.Sprintf("%s %s", report.Kind, report.PeriodStart)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	for i, row := range periodRows(report, money) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(periodHeader), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// Filename returns the attachment name of an exported period report.
func Filename(report PeriodReport, format string) string {
	return fmt.Sprintf("panaderia-%s-%s.%s", report.Kind, report.PeriodStart, format)
}
