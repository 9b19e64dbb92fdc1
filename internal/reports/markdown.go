package reports

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/panaderia/internal/currency"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

// RenderPeriodMarkdown renders a period report as a markdown document.
func RenderPeriodMarkdown(report PeriodReport, money currency.Formatter) string {
	var b strings.Builder
	title := "Weekly"
	if report.Kind == shared.PeriodMonth {
		title = "Monthly"
	}
	fmt.Fprintf(&b, "# %s report\n\n", title)
	fmt.Fprintf(&b, "%s to %s, %d closed shifts.\n\n", report.PeriodStart, report.PeriodEnd, report.ShiftCount)

	b.WriteString("| Figure | Amount |\n|---|---:|\n")
	summary := [][2]string{
		{"Trays", fmt.Sprint(report.TotalTrays)},
		{"Bread sales", money.Format(report.BreadSales)},
		{"Non-bread sales", money.Format(report.NonBreadSales)},
		{"Total sales", money.Format(report.TotalSales)},
		{"Bread expenses", money.Format(report.BreadExpenses)},
		{"Non-bread expenses", money.Format(report.NonBreadExpenses)},
		{"General expenses", money.Format(report.GeneralExpenses)},
		{"**Net profit**", "**" + money.Format(report.NetProfit) + "**"},
	}
	for _, row := range summary {
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], row[1])
	}

	b.WriteString("\n## By day\n\n")
	b.WriteString("| Date | Shifts | Trays | Total sales | Net profit |\n|---|---:|---:|---:|---:|\n")
	for _, day := range report.Days {
		if day.ShiftCount == 0 {
			continue
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %s | %s |\n", day.Date, day.ShiftCount, day.TotalTrays,
			money.Format(day.TotalSales), money.Format(day.NetProfit))
	}
	return b.String()
}
