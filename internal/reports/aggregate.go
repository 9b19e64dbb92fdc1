package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/currency"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

// GroupProducts folds sale lines into one row per product, ordered by
// quantity descending and then by name.
func GroupProducts(lines []SaleLine) []ProductSold {
	index := make(map[uuid.UUID]int)
	out := make([]ProductSold, 0)
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		profit := line.Price.Sub(line.Cost).Mul(qty)
		i, ok := index[line.ProductID]
		if !ok {
			index[line.ProductID] = len(out)
			out = append(out, ProductSold{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				Subtotal:    line.Subtotal,
				Profit:      profit,
			})
			continue
		}
		out[i].Quantity += line.Quantity
		out[i].Subtotal = out[i].Subtotal.Add(line.Subtotal)
		out[i].Profit = out[i].Profit.Add(profit)
	}
	for i := range out {
		out[i].Subtotal = currency.Whole(out[i].Subtotal)
		out[i].Profit = currency.Whole(out[i].Profit)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return strings.ToLower(out[i].ProductName) < strings.ToLower(out[j].ProductName)
	})
	return out
}

// BuildPeriodReport sums the frozen closing figures of closed shifts whose
// business date falls in [start, end]. Open shifts are ignored.
func BuildPeriodReport(kind shared.PeriodKind, start, end time.Time, closed []shifts.Shift) PeriodReport {
	report := PeriodReport{
		Kind:         kind,
		PeriodStart:  start.Format(time.DateOnly),
		PeriodEnd:    end.Format(time.DateOnly),
		PeriodTotals: zeroTotals(),
	}
	byDay := make(map[string]int)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		byDay[key] = len(report.Days)
		report.Days = append(report.Days, DayRow{Date: key, PeriodTotals: zeroTotals()})
	}
	for _, shift := range closed {
		if shift.Status != shifts.StatusClosed || shift.ClosingData == nil {
			continue
		}
		i, ok := byDay[shift.Date.Format(time.DateOnly)]
		if !ok {
			continue
		}
		report.Days[i].PeriodTotals = report.Days[i].add(*shift.ClosingData)
		report.PeriodTotals = report.PeriodTotals.add(*shift.ClosingData)
	}
	for i := range report.Days {
		report.Days[i].PeriodTotals = report.Days[i].rounded()
	}
	report.PeriodTotals = report.PeriodTotals.rounded()
	return report
}

func zeroTotals() PeriodTotals {
	return PeriodTotals{
		BreadSales:       decimal.Zero,
		NonBreadSales:    decimal.Zero,
		TotalSales:       decimal.Zero,
		BreadExpenses:    decimal.Zero,
		NonBreadExpenses: decimal.Zero,
		GeneralExpenses:  decimal.Zero,
		NetProfit:        decimal.Zero,
	}
}

func (t PeriodTotals) add(cd shifts.ClosingData) PeriodTotals {
	t.ShiftCount++
	t.TotalTrays += cd.FinalTrays
	t.BreadSales = t.BreadSales.Add(cd.BreadRevenue)
	t.NonBreadSales = t.NonBreadSales.Add(cd.NonBreadSales)
	t.TotalSales = t.BreadSales.Add(t.NonBreadSales)
	t.BreadExpenses = t.BreadExpenses.Add(cd.BreadExpenses)
	t.NonBreadExpenses = t.NonBreadExpenses.Add(cd.NonBreadExpenses)
	t.GeneralExpenses = t.GeneralExpenses.Add(cd.CashExpenses)
	t.NetProfit = t.NetProfit.Add(cd.NetProfit)
	return t
}

func (t PeriodTotals) rounded() PeriodTotals {
	t.BreadSales = currency.Whole(t.BreadSales)
	t.NonBreadSales = currency.Whole(t.NonBreadSales)
	t.TotalSales = currency.Whole(t.TotalSales)
	t.BreadExpenses = currency.Whole(t.BreadExpenses)
	t.NonBreadExpenses = currency.Whole(t.NonBreadExpenses)
	t.GeneralExpenses = currency.Whole(t.GeneralExpenses)
	t.NetProfit = currency.Whole(t.NetProfit)
	return t
}

// BuildWeeklyProducts lays out per-product quantities across the seven days
// starting at weekStart.
func BuildWeeklyProducts(weekStart time.Time, lines []SaleLine) WeeklyProducts {
	weekEnd := weekStart.AddDate(0, 0, 6)
	out := WeeklyProducts{
		WeekStart: weekStart.Format(time.DateOnly),
		WeekEnd:   weekEnd.Format(time.DateOnly),
		Products:  make([]WeeklyProductRow, 0),
	}
	dayIndex := make(map[string]int, 7)
	template := make([]DailyQuantity, 0, 7)
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		key := day.Format(time.DateOnly)
		dayIndex[key] = i
		template = append(template, DailyQuantity{Date: key, Weekday: day.Weekday().String(), Subtotal: decimal.Zero})
	}

	rows := make(map[uuid.UUID]int)
	for _, line := range lines {
		d, ok := dayIndex[line.Date.Format(time.DateOnly)]
		if !ok {
			continue
		}
		i, ok := rows[line.ProductID]
		if !ok {
			i = len(out.Products)
			rows[line.ProductID] = i
			out.Products = append(out.Products, WeeklyProductRow{
				ProductID:     line.ProductID,
				ProductName:   line.ProductName,
				Days:          append([]DailyQuantity(nil), template...),
				TotalSubtotal: decimal.Zero,
			})
		}
		row := &out.Products[i]
		row.Days[d].Quantity += line.Quantity
		row.Days[d].Subtotal = row.Days[d].Subtotal.Add(line.Subtotal)
		row.TotalQuantity += line.Quantity
		row.TotalSubtotal = row.TotalSubtotal.Add(line.Subtotal)
	}
	for i := range out.Products {
		row := &out.Products[i]
		row.TotalSubtotal = currency.Whole(row.TotalSubtotal)
		for d := range row.Days {
			row.Days[d].Subtotal = currency.Whole(row.Days[d].Subtotal)
		}
	}
	sort.SliceStable(out.Products, func(i, j int) bool {
		a, b := out.Products[i], out.Products[j]
		if a.TotalQuantity != b.TotalQuantity {
			return a.TotalQuantity > b.TotalQuantity
		}
		return strings.ToLower(a.ProductName) < strings.ToLower(b.ProductName)
	})
	return out
}
