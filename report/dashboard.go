/*
Package report assembles engine outputs into the views served by the API.

PURPOSE:
  A Dashboard is one pass of every engine over one ledger.Snapshot at one
  instant. It adds nothing of its own: all figures come from receivables,
  profitability and stock.

USAGE:
  snap, _ := ledger.LoadSnapshot(ctx, store)
  d := report.BuildDashboard(snap, profitability.NewEngine(tiers), time.Now())
  report.WriteXLSX(w, snap, d, "DZD")
*/
package report

import (
	"time"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/profitability"
	"github.com/savon-distrib/ledger-engine/receivables"
	"github.com/savon-distrib/ledger-engine/stock"
)

// StockSummary is the replayed inventory.
type StockSummary struct {
	Aggregate  int
	Fragrances map[ledger.FragranceID]int
	Divergence *stock.Divergence // nil when both folds agree
}

type Dashboard struct {
	GeneratedAt    time.Time
	Aging          receivables.AgingPeriod
	SupplierReturn receivables.SupplierReturn
	Window         profitability.ReportingWindow
	Today          profitability.PeriodResult
	CurrentMonth   []profitability.DayResult
	Stock          StockSummary
	Outstanding    []receivables.SupermarketBalance
}

// BuildDashboard runs every engine over snap. It never fails: the snapshot
// is expected to have gone through the normalizer already.
func BuildDashboard(snap ledger.Snapshot, engine *profitability.Engine, now time.Time) Dashboard {
	if engine == nil {
		engine = profitability.NewEngine(nil)
	}

	window := engine.SelectReportingWindow(snap.Sales, now)

	return Dashboard{
		GeneratedAt:    now,
		Aging:          window.Aging,
		SupplierReturn: receivables.ComputeSupplierReturn(snap.Sales),
		Window:         window,
		Today:          engine.ComputePeriod(snap.Sales, ledger.DayPeriod(now)),
		CurrentMonth:   engine.DailyBreakdown(snap.Sales, ledger.Period{Start: ledger.StartOfMonth(now), End: ledger.EndOfDay(now)}),
		Stock:          Stock(snap.Movements),
		Outstanding:    receivables.Outstanding(snap.Sales, now),
	}
}

// Stock replays the movement history.
func Stock(movements []ledger.StockMovement) StockSummary {
	return StockSummary{
		Aggregate:  stock.ReplayAggregateStock(movements),
		Fragrances: stock.ReplayFragranceStock(movements),
		Divergence: stock.CheckDivergence(movements),
	}
}
