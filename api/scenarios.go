/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates the store with realistic data for demos and manual testing.
  Each scenario creates supermarkets, fragrances, stock movements, sales
  with payments and scheduled orders that exercise specific reports.

AVAILABLE SCENARIOS:
  fresh-start:          Stock received, a few deliveries this month
  overdue-receivables:  Unpaid deliveries spread over every aging bucket
  stock-divergence:     Aggregate stock and per-fragrance stock disagree

HOW SCENARIOS WORK:
  1. Reset the store (clear all data)
  2. Create supermarkets and fragrances
  3. Receive stock
  4. Record deliveries (each removes its cartons from stock)
  5. Add payments and virements
  6. Schedule orders

All dates are relative to Handler.Now so reports stay meaningful on any day.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "overdue-receivables"}

NOTE:
  Scenarios reset the store. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-start",
		Name:        "Fresh Start",
		Description: "Stock received this month and three deliveries, one paid on the spot",
	},
	{
		ID:          "overdue-receivables",
		Name:        "Overdue Receivables",
		Description: "Unpaid and partially paid deliveries aged from three weeks to seven months",
	},
	{
		ID:          "stock-divergence",
		Name:        "Stock Divergence",
		Description: "Undistributed adjustments and an over-removal that clamps a fragrance at zero",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context, time.Time) error
	switch req.ScenarioID {
	case "fresh-start":
		load = h.loadFreshStartScenario
	case "overdue-receivables":
		load = h.loadOverdueReceivablesScenario
	case "stock-divergence":
		load = h.loadStockDivergenceScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("unknown scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, r, "LoadScenario", "Failed to reset store", err)
		return
	}
	if err := load(ctx, h.Now()); err != nil {
		h.fail(w, r, "LoadScenario", "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.Logger.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every record.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, r, "ResetDatabase", "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFreshStartScenario(ctx context.Context, now time.Time) error {
	if err := h.seedReference(ctx, now); err != nil {
		return err
	}

	monthStart := ledger.StartOfMonth(now)
	if err := h.seedMovement(ctx, "mv-reception-1", monthStart, 120, ledger.MovementAdded, "Réception fournisseur",
		map[ledger.FragranceID]int{"lavande": 50, "citron": 40, "jasmin": 30}); err != nil {
		return err
	}

	deliveries := []seedSale{
		{id: "sale-fresh-1", at: monthStart.Add(10 * time.Hour), sm: "sm-centre", qty: 90, tier: "standard",
			dist: map[ledger.FragranceID]int{"lavande": 6, "citron": 4}, paid: true},
		{id: "sale-fresh-2", at: monthStart.Add(34 * time.Hour), sm: "sm-gare", qty: 54, tier: "wholesale",
			dist: map[ledger.FragranceID]int{"jasmin": 6}},
		{id: "sale-fresh-3", at: now.Add(-2 * time.Hour), sm: "sm-marche", qty: 36, tier: "standard"},
	}
	for _, d := range deliveries {
		if err := h.seedSale(ctx, d); err != nil {
			return err
		}
	}

	return h.seedOrder(ctx, "order-fresh-1", "sm-centre", ledger.StartOfDay(now).Add(9*time.Hour), 72, "standard", now)
}

func (h *Handler) loadOverdueReceivablesScenario(ctx context.Context, now time.Time) error {
	if err := h.seedReference(ctx, now); err != nil {
		return err
	}

	start := now.AddDate(0, -8, 0)
	if err := h.seedMovement(ctx, "mv-reception-1", start, 300, ledger.MovementAdded, "Réception fournisseur",
		map[ledger.FragranceID]int{"lavande": 100, "citron": 100, "jasmin": 100}); err != nil {
		return err
	}

	// One delivery per aging bucket, each expected to be paid 15 days later.
	deliveries := []seedSale{
		{id: "sale-aged-0", at: now.AddDate(0, 0, -20), sm: "sm-centre", qty: 90, tier: "standard"},
		{id: "sale-aged-1", at: now.AddDate(0, 0, -45), sm: "sm-gare", qty: 72, tier: "wholesale"},
		{id: "sale-aged-2", at: now.AddDate(0, 0, -95), sm: "sm-marche", qty: 108, tier: "standard",
			payments: []seedPayment{{after: 30, amount: 5000, kind: ledger.PaymentVirement, note: "Virement partiel"}}},
		{id: "sale-aged-4", at: now.AddDate(0, 0, -150), sm: "sm-centre", qty: 54, tier: "wholesale",
			payments: []seedPayment{{after: 10, amount: 2000, kind: ledger.PaymentDirect, note: "Acompte"}}},
		{id: "sale-aged-6", at: now.AddDate(0, 0, -210), sm: "sm-gare", qty: 36, tier: "standard"},
		{id: "sale-settled", at: now.AddDate(0, 0, -60), sm: "sm-marche", qty: 45, tier: "standard",
			payments: []seedPayment{{after: 20, amount: 8100, kind: ledger.PaymentVirement, note: "Solde"}}},
	}
	for _, d := range deliveries {
		due := d.at.AddDate(0, 0, 15)
		d.expected = &due
		if err := h.seedSale(ctx, d); err != nil {
			return err
		}
	}

	return h.seedOrder(ctx, "order-aged-1", "sm-marche", now.AddDate(0, 0, -1), 36, "standard", now)
}

func (h *Handler) loadStockDivergenceScenario(ctx context.Context, now time.Time) error {
	if err := h.seedReference(ctx, now); err != nil {
		return err
	}

	day := func(n int) time.Time { return ledger.StartOfDay(now.AddDate(0, 0, -n)).Add(9 * time.Hour) }
	movements := []struct {
		id   ledger.MovementID
		at   time.Time
		qty  int
		typ  ledger.MovementType
		why  string
		dist map[ledger.FragranceID]int
	}{
		{"mv-1", day(30), 20, ledger.MovementAdded, "Réception fournisseur",
			map[ledger.FragranceID]int{"lavande": 5, "citron": 10, "jasmin": 5}},
		{"mv-2", day(20), 8, ledger.MovementAdded, "Retour client", nil},
		{"mv-3", day(12), 8, ledger.MovementRemoved, "Casse entrepôt",
			map[ledger.FragranceID]int{"lavande": 8}},
		{"mv-4", day(5), -3, ledger.MovementAdjusted, "Inventaire", nil},
	}
	for _, m := range movements {
		if err := h.seedMovement(ctx, m.id, m.at, m.qty, m.typ, m.why, m.dist); err != nil {
			return err
		}
	}

	return h.seedSale(ctx, seedSale{id: "sale-div-1", at: day(2), sm: "sm-centre", qty: 27, tier: "standard",
		dist: map[ledger.FragranceID]int{"citron": 3}, paid: true})
}

// =============================================================================
// SEED HELPERS
// =============================================================================

type seedPayment struct {
	after  int // days after the sale
	amount int64
	kind   ledger.PaymentType
	note   string
}

type seedSale struct {
	id       ledger.SaleID
	at       time.Time
	sm       ledger.SupermarketID
	qty      int
	tier     string
	dist     map[ledger.FragranceID]int
	paid     bool
	expected *time.Time
	payments []seedPayment
}

func (h *Handler) seedReference(ctx context.Context, now time.Time) error {
	lat := func(v float64) *float64 { return &v }

	sms := []ledger.Supermarket{
		{ID: "sm-centre", Name: "Supérette du Centre", Address: "12 rue Didouche Mourad, Alger", Phone: "0550 12 34 56",
			Latitude: lat(36.7681), Longitude: lat(3.0549)},
		{ID: "sm-gare", Name: "Market de la Gare", Address: "3 place de la Gare, Blida", Phone: "0661 98 76 54"},
		{ID: "sm-marche", Name: "Hypermarché El Souk", Address: "Route nationale 5, Boumerdès", Phone: "0770 11 22 33"},
	}
	for _, sm := range sms {
		sm.CreatedAt = now.AddDate(-1, 0, 0)
		if err := h.Store.SaveSupermarket(ctx, sm); err != nil {
			return fmt.Errorf("seed supermarket %s: %w", sm.ID, err)
		}
	}

	frs := []ledger.Fragrance{
		{ID: "lavande", Name: "Lavande", Color: "#9B7EDE"},
		{ID: "citron", Name: "Citron", Color: "#F4D03F"},
		{ID: "jasmin", Name: "Jasmin", Color: "#F5F5DC"},
	}
	for _, f := range frs {
		if err := h.Store.SaveFragrance(ctx, f); err != nil {
			return fmt.Errorf("seed fragrance %s: %w", f.ID, err)
		}
	}
	return nil
}

func (h *Handler) seedMovement(ctx context.Context, id ledger.MovementID, at time.Time, qty int,
	typ ledger.MovementType, reason string, dist map[ledger.FragranceID]int) error {
	err := h.Store.AppendMovement(ctx, ledger.StockMovement{
		ID:                    id,
		Date:                  at,
		Quantity:              qty,
		Type:                  typ,
		Reason:                reason,
		FragranceDistribution: dist,
	})
	if err != nil {
		return fmt.Errorf("seed movement %s: %w", id, err)
	}
	return nil
}

func (h *Handler) seedSale(ctx context.Context, s seedSale) error {
	price, tier, err := h.resolvePrice(s.tier, decimal.Zero)
	if err != nil {
		return err
	}
	sm, err := h.Store.GetSupermarket(ctx, s.sm)
	if err != nil {
		return err
	}

	d, err := ledger.NewDelivery(ledger.NewSaleInput{
		ID:                  s.id,
		Date:                s.at,
		SupermarketID:       s.sm,
		Quantity:            s.qty,
		PricePerUnit:        price,
		PriceTier:           tier,
		PaidImmediately:     s.paid,
		ExpectedPaymentDate: s.expected,
	}, s.dist, "Vente "+sm.Name)
	if err != nil {
		return fmt.Errorf("seed sale %s: %w", s.id, err)
	}
	if d.Movement != nil {
		d.Movement.ID = ledger.MovementID("mv-" + string(s.id))
	}
	if err := h.Store.RecordDelivery(ctx, d); err != nil {
		return fmt.Errorf("seed sale %s: %w", s.id, err)
	}

	for i, p := range s.payments {
		_, err := h.Store.AppendPayment(ctx, s.id, ledger.Payment{
			ID:     ledger.PaymentID(fmt.Sprintf("%s-pay-%d", s.id, i+1)),
			Date:   s.at.AddDate(0, 0, p.after),
			Amount: decimal.NewFromInt(p.amount),
			Note:   p.note,
			Type:   p.kind,
		})
		if err != nil {
			return fmt.Errorf("seed payment on %s: %w", s.id, err)
		}
	}
	return nil
}

func (h *Handler) seedOrder(ctx context.Context, id ledger.OrderID, sm ledger.SupermarketID, at time.Time,
	qty int, tierID string, now time.Time) error {
	price, tier, err := h.resolvePrice(tierID, decimal.Zero)
	if err != nil {
		return err
	}
	return h.Store.SaveOrder(ctx, ledger.Order{
		ID:            id,
		SupermarketID: sm,
		ScheduledDate: at,
		Quantity:      qty,
		PricePerUnit:  price,
		PriceTier:     tier,
		Status:        ledger.OrderPending,
		CreatedAt:     now,
	})
}
