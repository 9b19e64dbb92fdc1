package shifts

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/panconfig"
)

// BreadValue converts a tray count into kilos and estimated revenue using the
// frozen pricing snapshot.
func BreadValue(trays int, cfg panconfig.Config) (kilos, revenue decimal.Decimal) {
	kilos = decimal.NewFromInt(int64(trays)).Mul(cfg.KilosPerTray)
	revenue = kilos.Mul(cfg.PricePerKilo)
	return kilos, revenue
}

// ComputeAggregates derives the live figures of a shift from its ledger using
// the incrementally tracked tray counter.
func ComputeAggregates(shift Shift, ledger Ledger) Aggregates {
	return computeWithTrays(shift, ledger, shift.TraysRemoved)
}

// AggregatesFor returns live figures for open shifts and the figures frozen in
// ClosingData for closed ones. The ledger only contributes counts once closed.
func AggregatesFor(shift Shift, ledger Ledger) Aggregates {
	if shift.Status == StatusClosed && shift.ClosingData != nil {
		return frozenAggregates(shift, ledger)
	}
	return ComputeAggregates(shift, ledger)
}

func frozenAggregates(shift Shift, ledger Ledger) Aggregates {
	cd := shift.ClosingData
	kilos, _ := BreadValue(cd.FinalTrays, shift.ConfigSnapshot)
	return Aggregates{
		TraysRemoved:          cd.FinalTrays,
		Kilos:                 kilos,
		EstimatedBreadRevenue: cd.BreadRevenue,
		CashExpenses:          cd.CashExpenses,
		BreadExpenses:         cd.BreadExpenses,
		NonBreadExpenses:      cd.NonBreadExpenses,
		TotalExpenses:         cd.CashExpenses.Add(cd.BreadExpenses).Add(cd.NonBreadExpenses),
		NonBreadSales:         cd.NonBreadSales,
		CogsNonBread:          cd.CogsNonBread,
		ExpectedCash:          cd.ExpectedCash,
		GrossBreadProfit:      cd.GrossBread,
		GrossNonBreadProfit:   cd.GrossNonBread,
		NetProfit:             cd.NetProfit,
		SalesCount:            ledger.SalesCount,
		ExpenseCount:          len(ledger.Expenses),
	}
}

func computeWithTrays(shift Shift, ledger Ledger, trays int) Aggregates {
	agg := Aggregates{
		TraysRemoved:     trays,
		CashExpenses:     decimal.Zero,
		BreadExpenses:    decimal.Zero,
		NonBreadExpenses: decimal.Zero,
		CogsNonBread:     decimal.Zero,
		NonBreadSales:    shift.NonBreadSalesTotal,
		SalesCount:       ledger.SalesCount,
		ExpenseCount:     len(ledger.Expenses),
	}
	agg.Kilos, agg.EstimatedBreadRevenue = BreadValue(trays, shift.ConfigSnapshot)

	for _, e := range ledger.Expenses {
		switch e.Origin {
		case OriginGeneral:
			agg.CashExpenses = agg.CashExpenses.Add(e.Amount)
		case OriginBread:
			agg.BreadExpenses = agg.BreadExpenses.Add(e.Amount)
		case OriginNonBread:
			agg.NonBreadExpenses = agg.NonBreadExpenses.Add(e.Amount)
		}
	}
	agg.TotalExpenses = agg.CashExpenses.Add(agg.BreadExpenses).Add(agg.NonBreadExpenses)

	for _, line := range ledger.Lines {
		agg.CogsNonBread = agg.CogsNonBread.Add(line.CostAtSale.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	agg.ExpectedCash = shift.OpeningCash.Add(agg.NonBreadSales).Sub(agg.CashExpenses)
	agg.GrossBreadProfit = agg.EstimatedBreadRevenue.Sub(agg.BreadExpenses)
	agg.GrossNonBreadProfit = agg.NonBreadSales.Sub(agg.CogsNonBread).Sub(agg.NonBreadExpenses)
	agg.NetProfit = agg.GrossBreadProfit.Add(agg.GrossNonBreadProfit).Sub(agg.CashExpenses)
	return agg
}

// BuildClosingData freezes the reconciliation of an open shift. The tray
// adjustment corrects the bread estimate without touching TraysRemoved.
func BuildClosingData(shift Shift, ledger Ledger, in CloseInput) (ClosingData, error) {
	if err := in.Validate(); err != nil {
		return ClosingData{}, err
	}
	finalTrays := shift.TraysRemoved + in.TrayAdjustment
	if finalTrays < 0 {
		return ClosingData{}, ErrNegativeFinalTrays
	}
	agg := computeWithTrays(shift, ledger, finalTrays)
	difference := in.CountedCash.Sub(agg.ExpectedCash)
	return ClosingData{
		CountedCash:          in.CountedCash,
		ExpectedCash:         agg.ExpectedCash,
		Difference:           difference,
		CashStatus:           ClassifyDifference(difference),
		TrayAdjustment:       in.TrayAdjustment,
		TrayAdjustmentReason: in.TrayAdjustmentReason,
		FinalTrays:           finalTrays,
		BreadRevenue:         agg.EstimatedBreadRevenue,
		BreadExpenses:        agg.BreadExpenses,
		NonBreadSales:        agg.NonBreadSales,
		CogsNonBread:         agg.CogsNonBread,
		NonBreadExpenses:     agg.NonBreadExpenses,
		GrossBread:           agg.GrossBreadProfit,
		GrossNonBread:        agg.GrossNonBreadProfit,
		CashExpenses:         agg.CashExpenses,
		NetProfit:            agg.NetProfit,
	}, nil
}

// ClassifyDifference maps counted minus expected cash onto a CashStatus.
func ClassifyDifference(difference decimal.Decimal) CashStatus {
	switch difference.Sign() {
	case -1:
		return CashShort
	case 1:
		return CashOver
	default:
		return CashBalanced
	}
}
