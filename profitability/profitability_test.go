package profitability_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/profitability"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var now = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newSale(t *testing.T, date time.Time, qty int, price int64, tier ledger.PriceTier) ledger.Sale {
	t.Helper()
	s, err := ledger.NewSale(ledger.NewSaleInput{
		Date: date, SupermarketID: "sm-1", Quantity: qty, PricePerUnit: d(price), PriceTier: tier,
	})
	require.NoError(t, err)
	return s
}

func pay(t *testing.T, s ledger.Sale, at time.Time) ledger.Sale {
	t.Helper()
	paid, err := ledger.AppendPayment(s, ledger.Payment{Date: at, Amount: s.RemainingAmount})
	require.NoError(t, err)
	return paid
}

// =============================================================================
// TIERS
// =============================================================================

func TestDefaultTiers(t *testing.T) {
	assert.True(t, profitability.MarginPerUnit(d(180)).Equal(d(25)))
	assert.True(t, profitability.SupplierCostPerUnit(d(180)).Equal(d(155)))
	assert.True(t, profitability.MarginPerUnit(d(166)).Equal(d(17)))
	assert.True(t, profitability.SupplierCostPerUnit(d(166)).Equal(d(149)))
	assert.True(t, profitability.MarginPerUnit(d(170)).IsZero(), "unknown price has zero margin")

	table := profitability.DefaultTierTable()
	m, ok := table.MarginFor(ledger.TierWholesale)
	require.True(t, ok)
	assert.True(t, m.Equal(d(17)))
	assert.Len(t, table.Tiers(), 2)
}

func TestNewTierTable_RejectsBadTables(t *testing.T) {
	_, err := profitability.NewTierTable(profitability.TierRates{Tier: "a", Price: decimal.Zero})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = profitability.NewTierTable(
		profitability.TierRates{Tier: "a", Price: d(100)},
		profitability.TierRates{Tier: "a", Price: d(120)},
	)
	assert.ErrorIs(t, err, ledger.ErrDuplicateID)

	_, err = profitability.NewTierTable(
		profitability.TierRates{Tier: "a", Price: d(100)},
		profitability.TierRates{Tier: "b", Price: d(100)},
	)
	assert.ErrorIs(t, err, ledger.ErrDuplicateID)
}

func TestRatesFor_PriceBeatsTierId(t *testing.T) {
	table := profitability.DefaultTierTable()

	// A wholesale sale negotiated at a non-standard price still uses wholesale rates
	s := newSale(t, now, 10, 170, ledger.TierWholesale)
	r, ok := table.RatesFor(s)
	require.True(t, ok)
	assert.Equal(t, ledger.TierWholesale, r.Tier)

	// Without a tier the price decides
	r, ok = table.RatesFor(newSale(t, now, 10, 180, ""))
	require.True(t, ok)
	assert.Equal(t, ledger.TierStandard, r.Tier)

	_, ok = table.RatesFor(newSale(t, now, 10, 170, ""))
	assert.False(t, ok)

	// A wholesale price labelled standard is priced as wholesale
	r, ok = table.RatesFor(newSale(t, now, 10, 166, ledger.TierStandard))
	require.True(t, ok)
	assert.Equal(t, ledger.TierWholesale, r.Tier)
}

func TestComputePeriod_MislabelledTierUsesPriceRates(t *testing.T) {
	// GIVEN: 10 units at the wholesale price, labelled standard
	sales := []ledger.Sale{newSale(t, now, 10, 166, ledger.TierStandard)}

	// WHEN
	got := profitability.NewEngine(nil).ComputePeriod(sales, ledger.DayPeriod(now))

	// THEN: wholesale margin and cost, not standard ones
	assert.True(t, got.Profit.Equal(d(170)))
	assert.True(t, got.SupplierPayment.Equal(d(1490)))
	assert.Zero(t, got.UnpricedQuantity)
}

// =============================================================================
// PERIOD
// =============================================================================

func TestComputePeriod_ProfitAndSupplierPayment(t *testing.T) {
	// GIVEN: 10 units at 180, unpaid, delivered this month
	sales := []ledger.Sale{newSale(t, now.AddDate(0, 0, -3), 10, 180, "")}

	got := profitability.ComputePeriod(sales, ledger.StartOfMonth(now), ledger.EndOfMonth(now))

	// THEN: profit 250, supplier payment 1550, nothing paid
	assert.Equal(t, 1, got.SaleCount)
	assert.Equal(t, 10, got.Quantity)
	assert.True(t, got.Revenue.Equal(d(1800)))
	assert.True(t, got.Profit.Equal(d(250)))
	assert.True(t, got.SupplierPayment.Equal(d(1550)))
	assert.True(t, got.PaidProfit.IsZero())
	assert.True(t, got.UnpaidProfit().Equal(d(250)))
}

func TestComputePeriod_PaidProfitNeedsPaymentInsideWindow(t *testing.T) {
	month := ledger.MonthPeriod(now)
	engine := profitability.NewEngine(nil)

	paidInside := pay(t, newSale(t, month.Start.AddDate(0, 0, 1), 9, 166, ""), month.Start.AddDate(0, 0, 5))
	paidAfter := pay(t, newSale(t, month.Start.AddDate(0, 0, 2), 9, 180, ""), month.End.AddDate(0, 0, 2))
	before := pay(t, newSale(t, month.Start.AddDate(0, 0, -2), 9, 180, ""), month.Start.AddDate(0, 0, 1))

	got := engine.ComputePeriod([]ledger.Sale{paidInside, paidAfter, before}, month)

	assert.Equal(t, 2, got.SaleCount, "sale delivered before the window is excluded")
	assert.True(t, got.Profit.Equal(d(9*17+9*25)))
	assert.True(t, got.PaidProfit.Equal(d(9*17)))
}

func TestComputePeriod_UnpricedSalesCountedSeparately(t *testing.T) {
	sales := []ledger.Sale{
		newSale(t, now, 9, 175, ""),
		newSale(t, now, 9, 180, ""),
	}

	got := profitability.NewEngine(nil).ComputePeriod(sales, ledger.DayPeriod(now))

	assert.Equal(t, 2, got.SaleCount)
	assert.Equal(t, 18, got.Quantity)
	assert.Equal(t, 9, got.UnpricedQuantity)
	assert.True(t, got.Revenue.Equal(d(9*175+9*180)))
	assert.True(t, got.Profit.Equal(d(9*25)))
}

func TestComputePeriod_Empty(t *testing.T) {
	got := profitability.ComputePeriod(nil, ledger.StartOfMonth(now), ledger.EndOfMonth(now))
	assert.Zero(t, got.SaleCount)
	assert.True(t, got.Profit.IsZero())
	assert.True(t, got.Revenue.IsZero())
}

// =============================================================================
// REPORTING WINDOW
// =============================================================================

func TestSelectReportingWindow(t *testing.T) {
	tests := []struct {
		name  string
		sales func(t *testing.T) []ledger.Sale
		label string
		start time.Time
	}{
		{
			name:  "everything paid",
			sales: func(t *testing.T) []ledger.Sale { return []ledger.Sale{pay(t, newSale(t, now, 9, 180, ""), now)} },
			label: profitability.LabelCurrentMonth,
			start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "oldest unpaid 60 days",
			sales: func(t *testing.T) []ledger.Sale { return []ledger.Sale{newSale(t, now.AddDate(0, 0, -60), 9, 180, "")} },
			label: profitability.LabelFourMonths,
			start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "oldest unpaid 150 days",
			sales: func(t *testing.T) []ledger.Sale { return []ledger.Sale{newSale(t, now.AddDate(0, 0, -150), 9, 180, "")} },
			label: profitability.LabelSixMonths,
			start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := profitability.SelectReportingWindow(tt.sales(t), now)
			assert.Equal(t, tt.label, w.Label)
			assert.Equal(t, tt.start, w.Period.Start)
			assert.Equal(t, ledger.EndOfMonth(now), w.Period.End)
		})
	}
}

func TestSelectReportingWindow_DataCoversWindow(t *testing.T) {
	old := newSale(t, now.AddDate(0, 0, -100), 9, 180, "")
	recent := pay(t, newSale(t, now.AddDate(0, 0, -2), 9, 166, ""), now)

	w := profitability.SelectReportingWindow([]ledger.Sale{old, recent}, now)

	assert.Equal(t, profitability.LabelFourMonths, w.Label)
	assert.Equal(t, 2, w.Data.SaleCount)
	assert.True(t, w.Data.PaidProfit.Equal(d(9*17)))
	assert.True(t, w.Aging.HasUnpaid)
}

func TestDailyBreakdown_IncludesEmptyDays(t *testing.T) {
	week, err := ledger.NewPeriod(ledger.StartOfDay(now.AddDate(0, 0, -6)), ledger.EndOfDay(now))
	require.NoError(t, err)

	sales := []ledger.Sale{
		newSale(t, now.AddDate(0, 0, -6), 9, 180, ""),
		newSale(t, now, 18, 180, ""),
		newSale(t, now, 9, 166, ""),
	}

	days := profitability.NewEngine(nil).DailyBreakdown(sales, week)

	require.Len(t, days, 7)
	assert.Equal(t, 1, days[0].SaleCount)
	assert.Zero(t, days[3].SaleCount)
	assert.Equal(t, 2, days[6].SaleCount)
	assert.True(t, days[6].Profit.Equal(d(18*25+9*17)))
}

// =============================================================================
// IDEMPOTENCE
// =============================================================================

func TestEngine_IdempotentAndLeavesInputUntouched(t *testing.T) {
	// GIVEN: sales out of date order, one of them paid
	sales := []ledger.Sale{
		newSale(t, now, 18, 180, ""),
		pay(t, newSale(t, now.AddDate(0, 0, -40), 9, 166, ""), now.AddDate(0, 0, -30)),
		newSale(t, now.AddDate(0, 0, -3), 9, 175, ""),
		newSale(t, now.AddDate(0, -5, 0), 9, 180, ledger.TierStandard),
	}
	before := append([]ledger.Sale(nil), sales...)
	engine := profitability.NewEngine(nil)
	month := ledger.MonthPeriod(now)

	// WHEN: every computation runs twice on the same slice
	p1 := engine.ComputePeriod(sales, month)
	p2 := engine.ComputePeriod(sales, month)
	w1 := engine.SelectReportingWindow(sales, now)
	w2 := engine.SelectReportingWindow(sales, now)
	d1 := engine.DailyBreakdown(sales, month)
	d2 := engine.DailyBreakdown(sales, month)

	// THEN: identical results, input order and content unchanged
	assert.Equal(t, p1, p2)
	assert.Equal(t, w1, w2)
	assert.Equal(t, d1, d2)
	assert.Equal(t, before, sales)
}
