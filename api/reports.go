package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/receivables"
	"github.com/savon-distrib/ledger-engine/report"
)

// =============================================================================
// REPORT HANDLERS
// =============================================================================
// Every report loads one snapshot and runs the engines over it.
//
//	GET /api/reports/aging
//	GET /api/reports/supplier-return
//	GET /api/reports/period?from=YYYY-MM-DD&to=YYYY-MM-DD[&daily=true]
//	GET /api/reports/window
//	GET /api/reports/outstanding
//	GET /api/reports/dashboard
//	GET /api/reports/export.xlsx

func (h *Handler) GetAging(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Store.LoadSales(r.Context())
	if err != nil {
		h.fail(w, r, "GetAging", "Failed to load sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toAgingDTO(receivables.ComputeAgingPeriod(sales, h.Now())))
}

func (h *Handler) GetSupplierReturn(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Store.LoadSales(r.Context())
	if err != nil {
		h.fail(w, r, "GetSupplierReturn", "Failed to load sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSupplierReturnDTO(receivables.ComputeSupplierReturn(sales)))
}

// maxDailyDays bounds a daily breakdown to one row per day of a leap year.
const maxDailyDays = 366

// GetPeriod computes profitability over [from, to]. Both bounds are whole
// days; from defaults to the start of the month and to defaults to today.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	now := h.Now()
	q := r.URL.Query()

	from, err := parseDate(q.Get("from"), ledger.StartOfMonth(now))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	to, err := parseDate(q.Get("to"), now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}
	period, err := ledger.NewPeriod(ledger.StartOfDay(from), ledger.EndOfDay(to))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	daily := q.Get("daily") == "true"
	if daily && !ledger.StartOfDay(to).Before(ledger.StartOfDay(from).AddDate(0, 0, maxDailyDays)) {
		writeError(w, http.StatusBadRequest, "Invalid period",
			fmt.Errorf("daily breakdown is limited to %d days", maxDailyDays))
		return
	}

	sales, err := h.Store.LoadSales(r.Context())
	if err != nil {
		h.fail(w, r, "GetPeriod", "Failed to load sales", err)
		return
	}

	if daily {
		days := h.Engine.DailyBreakdown(sales, period)
		dtos := make([]PeriodDTO, len(days))
		for i, d := range days {
			dtos[i] = toPeriodDTO(ledger.DayPeriod(d.Day), d.PeriodResult)
		}
		writeJSON(w, http.StatusOK, dtos)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(period, h.Engine.ComputePeriod(sales, period)))
}

// GetWindow returns the auto-selected reporting window.
func (h *Handler) GetWindow(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Store.LoadSales(r.Context())
	if err != nil {
		h.fail(w, r, "GetWindow", "Failed to load sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toWindowDTO(h.Engine.SelectReportingWindow(sales, h.Now())))
}

func (h *Handler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "GetOutstanding", "Failed to load ledger", err)
		return
	}
	balances := receivables.Outstanding(snap.Sales, h.Now())
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances, supermarketNames(snap.Supermarkets)))
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "GetDashboard", "Failed to load ledger", err)
		return
	}
	d := report.BuildDashboard(snap, h.Engine, h.Now())
	writeJSON(w, http.StatusOK, toDashboardDTO(d, snap))
}

// ExportXLSX streams the dashboard, sales and stock as a workbook.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "ExportXLSX", "Failed to load ledger", err)
		return
	}

	now := h.Now()
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, snap, report.BuildDashboard(snap, h.Engine, now), h.Currency); err != nil {
		h.fail(w, r, "ExportXLSX", "Failed to build workbook", err)
		return
	}

	w.Header().Set("Content-Type", report.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=rapport-%s.xlsx", now.Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
