package shifts

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/panaderia/internal/panconfig"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func requireDecimal(t *testing.T, want int64, got decimal.Decimal, msg string) {
	t.Helper()
	require.Truef(t, got.Equal(d(want)), "%s: want %d got %s", msg, want, got)
}

func standardConfig() panconfig.Config {
	return panconfig.Config{KilosPerTray: d(20), PricePerKilo: d(1100)}
}

func TestBreadValue(t *testing.T) {
	kilos, revenue := BreadValue(3, standardConfig())
	requireDecimal(t, 60, kilos, "kilos")
	requireDecimal(t, 66000, revenue, "revenue")

	kilos, revenue = BreadValue(0, standardConfig())
	require.True(t, kilos.IsZero())
	require.True(t, revenue.IsZero())

	half := panconfig.Config{KilosPerTray: decimal.RequireFromString("12.5"), PricePerKilo: decimal.RequireFromString("999.9")}
	_, revenue = BreadValue(3, half)
	require.Equal(t, "37496.25", revenue.String())
}

func TestComputeAggregatesReferenceScenario(t *testing.T) {
	shift := Shift{
		Status:             StatusOpen,
		OpeningCash:        d(10000),
		TraysRemoved:       3,
		NonBreadSalesTotal: d(2000),
		ConfigSnapshot:     standardConfig(),
	}
	ledger := Ledger{
		Expenses:   []ExpenseEntry{{Amount: d(500), Origin: OriginGeneral}},
		Lines:      []SaleLine{{ProductID: uuid.New(), CostAtSale: d(600), Quantity: 2, Subtotal: d(2000)}},
		SalesCount: 1,
	}

	agg := ComputeAggregates(shift, ledger)
	require.Equal(t, 3, agg.TraysRemoved)
	requireDecimal(t, 66000, agg.EstimatedBreadRevenue, "bread revenue")
	requireDecimal(t, 11500, agg.ExpectedCash, "expected cash")
	requireDecimal(t, 1200, agg.CogsNonBread, "cogs")
	requireDecimal(t, 800, agg.GrossNonBreadProfit, "gross non-bread")
	requireDecimal(t, 66000, agg.GrossBreadProfit, "gross bread")
	requireDecimal(t, 66300, agg.NetProfit, "net")
	requireDecimal(t, 500, agg.TotalExpenses, "total expenses")
	require.Equal(t, 1, agg.SalesCount)
	require.Equal(t, 1, agg.ExpenseCount)
}

func TestExpenseOriginsReduceExactlyOneLine(t *testing.T) {
	shift := Shift{OpeningCash: d(1000), TraysRemoved: 1, NonBreadSalesTotal: d(3000), ConfigSnapshot: standardConfig()}
	ledger := Ledger{Expenses: []ExpenseEntry{
		{Amount: d(100), Origin: OriginGeneral},
		{Amount: d(200), Origin: OriginBread},
		{Amount: d(300), Origin: OriginNonBread},
	}}

	agg := ComputeAggregates(shift, ledger)
	requireDecimal(t, 100, agg.CashExpenses, "cash")
	requireDecimal(t, 200, agg.BreadExpenses, "bread")
	requireDecimal(t, 300, agg.NonBreadExpenses, "non-bread")
	// Only GENERAL expenses leave the drawer.
	requireDecimal(t, 3900, agg.ExpectedCash, "expected cash")
	requireDecimal(t, 22000-200, agg.GrossBreadProfit, "gross bread")
	requireDecimal(t, 2700, agg.GrossNonBreadProfit, "gross non-bread")
	requireDecimal(t, 21800+2700-100, agg.NetProfit, "net")
}

func TestEmptyShiftHasZeroAggregates(t *testing.T) {
	agg := ComputeAggregates(Shift{OpeningCash: d(5000), NonBreadSalesTotal: decimal.Zero, ConfigSnapshot: standardConfig()}, Ledger{})
	requireDecimal(t, 5000, agg.ExpectedCash, "expected cash")
	require.True(t, agg.NetProfit.IsZero())
	require.True(t, agg.CogsNonBread.IsZero())
}

func TestBuildClosingData(t *testing.T) {
	shift := Shift{
		Status:             StatusOpen,
		OpeningCash:        d(10000),
		TraysRemoved:       3,
		NonBreadSalesTotal: d(2000),
		ConfigSnapshot:     standardConfig(),
	}
	ledger := Ledger{
		Expenses: []ExpenseEntry{{Amount: d(500), Origin: OriginGeneral}},
		Lines:    []SaleLine{{CostAtSale: d(1200), Quantity: 1, Subtotal: d(2000)}},
	}

	data, err := BuildClosingData(shift, ledger, CloseInput{CountedCash: d(11000), TrayAdjustment: -1, TrayAdjustmentReason: "tray returned"})
	require.NoError(t, err)
	requireDecimal(t, 11500, data.ExpectedCash, "expected")
	requireDecimal(t, -500, data.Difference, "difference")
	require.Equal(t, CashShort, data.CashStatus)
	require.Equal(t, 2, data.FinalTrays)
	requireDecimal(t, 44000, data.BreadRevenue, "bread revenue uses adjusted trays")
	requireDecimal(t, 44000, data.GrossBread, "gross bread")
	requireDecimal(t, 800, data.GrossNonBread, "gross non-bread")
	requireDecimal(t, 500, data.CashExpenses, "cash expenses")
	requireDecimal(t, 44300, data.NetProfit, "net")
	require.Equal(t, 3, shift.TraysRemoved)

	data, err = BuildClosingData(shift, ledger, CloseInput{CountedCash: d(11500)})
	require.NoError(t, err)
	require.True(t, data.Difference.IsZero())
	require.Equal(t, CashBalanced, data.CashStatus)

	_, err = BuildClosingData(shift, ledger, CloseInput{CountedCash: d(1), TrayAdjustment: -4})
	require.ErrorIs(t, err, ErrNegativeFinalTrays)

	_, err = BuildClosingData(shift, ledger, CloseInput{CountedCash: d(-1)})
	require.ErrorIs(t, err, ErrNegativeCountedCash)
}

func TestAggregatesForClosedShiftReadFrozenFigures(t *testing.T) {
	shift := Shift{
		Status:             StatusOpen,
		OpeningCash:        d(10000),
		TraysRemoved:       5,
		NonBreadSalesTotal: d(2000),
		ConfigSnapshot:     standardConfig(),
	}
	atClose := Ledger{
		Expenses:   []ExpenseEntry{{Amount: d(500), Origin: OriginGeneral}},
		Lines:      []SaleLine{{CostAtSale: d(1200), Quantity: 1, Subtotal: d(2000)}},
		SalesCount: 1,
	}
	data, err := BuildClosingData(shift, atClose, CloseInput{CountedCash: d(11500), TrayAdjustment: -1})
	require.NoError(t, err)
	shift.Status = StatusClosed
	shift.ClosingData = &data

	later := Ledger{
		Expenses:   append(atClose.Expenses, ExpenseEntry{Amount: d(9000), Origin: OriginBread}),
		Lines:      atClose.Lines,
		SalesCount: 1,
	}
	agg := AggregatesFor(shift, later)
	require.Equal(t, 4, agg.TraysRemoved)
	requireDecimal(t, 80, agg.Kilos, "kilos")
	requireDecimal(t, 88000, agg.EstimatedBreadRevenue, "bread revenue")
	requireDecimal(t, 0, agg.BreadExpenses, "bread expenses frozen at close")
	requireDecimal(t, 500, agg.TotalExpenses, "total expenses")
	requireDecimal(t, 11500, agg.ExpectedCash, "expected cash")
	require.True(t, agg.NetProfit.Equal(data.NetProfit))
	require.Equal(t, 2, agg.ExpenseCount)

	live := AggregatesFor(Shift{Status: StatusOpen, TraysRemoved: 5, OpeningCash: d(10000), NonBreadSalesTotal: d(2000), ConfigSnapshot: standardConfig()}, later)
	require.Equal(t, 5, live.TraysRemoved)
	requireDecimal(t, 9000, live.BreadExpenses, "open shifts stay live")
}

func TestDecimalAvoidsFloatDrift(t *testing.T) {
	shift := Shift{OpeningCash: decimal.Zero, NonBreadSalesTotal: decimal.Zero, ConfigSnapshot: standardConfig()}
	var expenses []ExpenseEntry
	for i := 0; i < 10; i++ {
		expenses = append(expenses, ExpenseEntry{Amount: decimal.RequireFromString("0.1"), Origin: OriginGeneral})
	}
	agg := ComputeAggregates(shift, Ledger{Expenses: expenses})
	require.True(t, agg.CashExpenses.Equal(decimal.NewFromInt(1)))
	require.True(t, agg.ExpectedCash.Equal(decimal.NewFromInt(-1)))
}

func TestParseOrigin(t *testing.T) {
	o, err := ParseOrigin(" non_bread ")
	require.NoError(t, err)
	require.Equal(t, OriginNonBread, o)

	_, err = ParseOrigin("PAN")
	require.Error(t, err)
}
