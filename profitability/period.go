package profitability

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/receivables"
)

// =============================================================================
// PERIOD RESULT
// =============================================================================

// PeriodResult aggregates the sales delivered inside one window.
//
//	Profit          = sum(quantity * margin), paid or not
//	PaidProfit      = same, restricted to sales closed inside the window
//	SupplierPayment = sum(quantity * supplier cost)
type PeriodResult struct {
	SaleCount        int
	Quantity         int
	Revenue          decimal.Decimal
	Profit           decimal.Decimal
	PaidProfit       decimal.Decimal
	SupplierPayment  decimal.Decimal
	UnpricedQuantity int // units whose price matched no tier
}

func zeroResult() PeriodResult {
	return PeriodResult{
		Revenue:         decimal.Zero,
		Profit:          decimal.Zero,
		PaidProfit:      decimal.Zero,
		SupplierPayment: decimal.Zero,
	}
}

// UnpaidProfit is the margin still waiting on collection.
func (r PeriodResult) UnpaidProfit() decimal.Decimal {
	return r.Profit.Sub(r.PaidProfit)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine evaluates reports against one tier table.
type Engine struct {
	Tiers *TierTable
}

func NewEngine(tiers *TierTable) *Engine {
	if tiers == nil {
		tiers = DefaultTierTable()
	}
	return &Engine{Tiers: tiers}
}

var defaultEngine = NewEngine(nil)

// ComputePeriod aggregates sales dated in [start, end] using the default tiers.
func ComputePeriod(sales []ledger.Sale, start, end time.Time) PeriodResult {
	return defaultEngine.ComputePeriod(sales, ledger.Period{Start: start, End: end})
}

// SelectReportingWindow picks the window using the default tiers.
func SelectReportingWindow(sales []ledger.Sale, now time.Time) ReportingWindow {
	return defaultEngine.SelectReportingWindow(sales, now)
}

// ComputePeriod aggregates sales whose delivery date is in the period.
// A sale counts toward PaidProfit only when it is paid and its PaymentDate
// is also inside the period.
func (e *Engine) ComputePeriod(sales []ledger.Sale, period ledger.Period) PeriodResult {
	r := zeroResult()

	for _, s := range sales {
		if !period.Contains(s.Date) {
			continue
		}
		qty := decimal.NewFromInt(int64(s.Quantity))

		r.SaleCount++
		r.Quantity += s.Quantity
		r.Revenue = r.Revenue.Add(s.TotalValue)

		rates, ok := e.Tiers.RatesFor(s)
		if !ok {
			r.UnpricedQuantity += s.Quantity
			continue
		}

		margin := qty.Mul(rates.Margin)
		r.Profit = r.Profit.Add(margin)
		r.SupplierPayment = r.SupplierPayment.Add(qty.Mul(rates.SupplierCost))

		if s.IsPaid && s.PaymentDate != nil && period.Contains(*s.PaymentDate) {
			r.PaidProfit = r.PaidProfit.Add(margin)
		}
	}
	return r
}

// =============================================================================
// REPORTING WINDOW - Auto-extends to cover outstanding receivables
// =============================================================================

const (
	LabelCurrentMonth = "mois en cours"
	LabelFourMonths   = "4 mois"
	LabelSixMonths    = "6 mois"
)

type ReportingWindow struct {
	Label  string
	Period ledger.Period
	Data   PeriodResult
	Aging  receivables.AgingPeriod
}

// SelectReportingWindow chooses the dashboard horizon from receivables aging:
//
//	nothing unpaid      -> current calendar month
//	aging MonthsBack > 4 -> trailing 6 calendar months
//	otherwise            -> trailing 4 calendar months
func (e *Engine) SelectReportingWindow(sales []ledger.Sale, now time.Time) ReportingWindow {
	aging := receivables.ComputeAgingPeriod(sales, now)

	var (
		label  string
		period ledger.Period
	)
	switch {
	case !aging.HasUnpaid:
		label, period = LabelCurrentMonth, ledger.MonthPeriod(now)
	case aging.MonthsBack > 4:
		label, period = LabelSixMonths, ledger.TrailingMonths(now, 6)
	default:
		label, period = LabelFourMonths, ledger.TrailingMonths(now, 4)
	}

	return ReportingWindow{
		Label:  label,
		Period: period,
		Data:   e.ComputePeriod(sales, period),
		Aging:  aging,
	}
}

// =============================================================================
// DAILY BREAKDOWN
// =============================================================================

type DayResult struct {
	Day time.Time
	PeriodResult
}

// DailyBreakdown returns one row per calendar day of the period, including
// days without sales.
func (e *Engine) DailyBreakdown(sales []ledger.Sale, period ledger.Period) []DayResult {
	days := period.Days()
	out := make([]DayResult, 0, len(days))
	for _, d := range days {
		out = append(out, DayResult{Day: d, PeriodResult: e.ComputePeriod(sales, ledger.DayPeriod(d))})
	}
	return out
}
