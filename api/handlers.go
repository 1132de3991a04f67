/*
handlers.go - HTTP API handlers for the distribution ledger

PURPOSE:
  Exposes the ledger and its reporting engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to ledger, the
  engines and the store.

ENDPOINTS:
  Reference data:
    GET    /api/supermarkets            List supermarkets
    POST   /api/supermarkets            Create or update a supermarket
    GET    /api/supermarkets/{id}       Supermarket with balance and sales
    GET    /api/fragrances              List fragrances
    POST   /api/fragrances              Create or update a fragrance
    GET    /api/tiers                   Active price-tier table

  Sales:
    GET    /api/sales                   List (?supermarket_id, ?status=paid|unpaid)
    POST   /api/sales                   Record a delivery (+ stock removal)
    GET    /api/sales/{id}              One sale with payments
    DELETE /api/sales/{id}              Delete a sale and its payments
    POST   /api/sales/{id}/payments     Append a payment or virement

  Stock:
    GET    /api/stock                   Replayed aggregate and per-fragrance stock
    GET    /api/stock/movements         Movement history with running balance
    POST   /api/stock/movements         Append a movement
    POST   /api/stock/recompute         Replay and persist per-fragrance stock

  Orders:
    GET    /api/orders                  List (?status)
    POST   /api/orders                  Schedule an order
    POST   /api/orders/{id}/status      Mark delivered or cancelled
    POST   /api/orders/{id}/convert     Turn a pending order into a sale

  Reports (reports.go), reminders (scheduler.go), scenarios (scenarios.go).

REQUEST FLOW:
  1. Decode and validate the request body
  2. Build ledger values (ledger.NewDelivery, ledger.Normalizer)
  3. Persist through ledger.Store
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid amounts or periods
  - 404: Record not found
  - 409: Overpayment, closed sale, closed order, duplicate id
  - 500: Internal errors (logged)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/savon-distrib/ledger-engine/config"
	"github.com/savon-distrib/ledger-engine/factory"
	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/profitability"
	"github.com/savon-distrib/ledger-engine/receivables"
	"github.com/savon-distrib/ledger-engine/report"
	"github.com/savon-distrib/ledger-engine/stock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      ledger.Store
	Engine     *profitability.Engine
	Normalizer *ledger.Normalizer
	Logger     *logrus.Logger
	Currency   string

	// Now is the clock used for defaults and reports.
	Now func() time.Time

	// Reminders backs POST /api/reminders/run. Optional.
	Reminders *ReminderScheduler

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. A nil engine uses the built-in tiers; a nil
// logger uses logrus defaults.
func NewHandler(store ledger.Store, engine *profitability.Engine, logger *logrus.Logger) *Handler {
	if engine == nil {
		engine = profitability.NewEngine(nil)
	}
	if logger == nil {
		logger = logrus.New()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		Store:      store,
		Engine:     engine,
		Normalizer: ledger.NewNormalizer(engine.Tiers),
		Logger:     logger,
		Currency:   "DZD",
		Now:        time.Now,
		validate:   v,
	}
}

func (h *Handler) snapshot(ctx context.Context) (ledger.Snapshot, error) {
	return ledger.LoadSnapshot(ctx, h.Store)
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

func (h *Handler) ListSupermarkets(w http.ResponseWriter, r *http.Request) {
	sms, err := h.Store.LoadSupermarkets(r.Context())
	if err != nil {
		h.fail(w, r, "ListSupermarkets", "Failed to list supermarkets", err)
		return
	}

	dtos := make([]SupermarketDTO, len(sms))
	for i, sm := range sms {
		dtos[i] = toSupermarketDTO(sm)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSupermarket(w http.ResponseWriter, r *http.Request) {
	var req CreateSupermarketRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	sm := ledger.Supermarket{
		ID:        ledger.SupermarketID(req.ID),
		Name:      req.Name,
		Address:   req.Address,
		Phone:     req.Phone,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		CreatedAt: h.Now(),
	}
	if err := h.Store.SaveSupermarket(r.Context(), sm); err != nil {
		h.fail(w, r, "CreateSupermarket", "Failed to save supermarket", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSupermarketDTO(sm))
}

// GetSupermarket returns a supermarket with its sales and open balance.
func (h *Handler) GetSupermarket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := ledger.SupermarketID(chi.URLParam(r, "id"))

	sm, err := h.Store.GetSupermarket(ctx, id)
	if err != nil {
		h.fail(w, r, "GetSupermarket", "Supermarket not found", err)
		return
	}
	sales, err := h.Store.LoadSales(ctx)
	if err != nil {
		h.fail(w, r, "GetSupermarket", "Failed to load sales", err)
		return
	}

	now := h.Now()
	var own []ledger.Sale
	detail := SupermarketDetailDTO{SupermarketDTO: toSupermarketDTO(sm), Sales: []SaleDTO{}}
	for _, s := range sales {
		if s.SupermarketID == id {
			own = append(own, s)
			detail.Sales = append(detail.Sales, toSaleDTO(s, now))
		}
	}
	if balances := toBalanceDTOs(receivables.Outstanding(own, now), map[ledger.SupermarketID]string{id: sm.Name}); len(balances) > 0 {
		detail.Balance = &balances[0]
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) ListFragrances(w http.ResponseWriter, r *http.Request) {
	frs, err := h.Store.LoadFragrances(r.Context())
	if err != nil {
		h.fail(w, r, "ListFragrances", "Failed to list fragrances", err)
		return
	}

	dtos := make([]FragranceDTO, len(frs))
	for i, f := range frs {
		dtos[i] = FragranceDTO{ID: string(f.ID), Name: f.Name, Color: f.Color}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateFragrance(w http.ResponseWriter, r *http.Request) {
	var req CreateFragranceRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	f := ledger.Fragrance{ID: ledger.FragranceID(req.ID), Name: req.Name, Color: req.Color}
	if err := h.Store.SaveFragrance(r.Context(), f); err != nil {
		h.fail(w, r, "CreateFragrance", "Failed to save fragrance", err)
		return
	}
	writeJSON(w, http.StatusCreated, FragranceDTO{ID: req.ID, Name: req.Name, Color: req.Color})
}

// GetTiers returns the active price-tier table in its JSON config shape.
func (h *Handler) GetTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToJSON(h.Engine.Tiers))
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// ListSales returns sales, optionally filtered by supermarket and status.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Store.LoadSales(r.Context())
	if err != nil {
		h.fail(w, r, "ListSales", "Failed to list sales", err)
		return
	}

	smID := r.URL.Query().Get("supermarket_id")
	status := r.URL.Query().Get("status")
	if status != "" && status != "paid" && status != "unpaid" {
		writeError(w, http.StatusBadRequest, "Invalid status filter", fmt.Errorf("status must be paid or unpaid, got %q", status))
		return
	}

	now := h.Now()
	dtos := []SaleDTO{}
	for _, s := range sales {
		if smID != "" && string(s.SupermarketID) != smID {
			continue
		}
		if (status == "paid" && !s.IsPaid) || (status == "unpaid" && s.IsPaid) {
			continue
		}
		dtos = append(dtos, toSaleDTO(s, now))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSale records a delivery. The cartons delivered are removed from
// stock in the same store transaction.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSaleRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := h.Now()
	date, err := parseDate(req.Date, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	var expected *time.Time
	if req.ExpectedPaymentDate != "" {
		t, err := parseDate(req.ExpectedPaymentDate, now)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expected_payment_date", err)
			return
		}
		expected = &t
	}

	price, tier, err := h.resolvePrice(req.PriceTier, req.PricePerUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	sm, err := h.Store.GetSupermarket(ctx, ledger.SupermarketID(req.SupermarketID))
	if err != nil {
		h.fail(w, r, "CreateSale", "Unknown supermarket", err)
		return
	}

	delivery, err := ledger.NewDelivery(ledger.NewSaleInput{
		ID:                  ledger.SaleID(req.ID),
		Date:                date,
		SupermarketID:       sm.ID,
		Quantity:            req.Quantity,
		PricePerUnit:        price,
		PriceTier:           tier,
		PaidImmediately:     req.PaidImmediately,
		ExpectedPaymentDate: expected,
	}, toDistribution(req.FragranceDistribution), "Vente "+sm.Name)
	if err != nil {
		h.fail(w, r, "CreateSale", "Invalid sale", err)
		return
	}

	if err := h.Store.RecordDelivery(ctx, delivery); err != nil {
		h.fail(w, r, "CreateSale", "Failed to record sale", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSaleDTO(delivery.Sale, now))
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Store.GetSale(r.Context(), ledger.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "GetSale", "Sale not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale, h.Now()))
}

func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteSale(r.Context(), ledger.SaleID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "DeleteSale", "Failed to delete sale", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddPayment appends a payment. Overpayments and payments on closed sales
// are rejected with 409.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var req AddPaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := h.Now()
	date, err := parseDate(req.Date, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	sale, err := h.Store.AppendPayment(r.Context(), ledger.SaleID(chi.URLParam(r, "id")), ledger.Payment{
		Date:   date,
		Amount: req.Amount,
		Note:   req.Note,
		Type:   ledger.PaymentType(req.Type),
	})
	if err != nil {
		h.fail(w, r, "AddPayment", "Payment rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale, now))
}

// resolvePrice fills the unit price from the tier when it is omitted, then
// checks the pair through the normalizer: unknown tiers and a price that
// belongs to another tier are rejected.
func (h *Handler) resolvePrice(tierID string, price decimal.Decimal) (decimal.Decimal, ledger.PriceTier, error) {
	tier := ledger.PriceTier(tierID)
	if rates, ok := h.Engine.Tiers.Lookup(tier); ok && price.IsZero() {
		price = rates.Price
	}

	resolved, err := h.Normalizer.ResolveTier(tier, price)
	if err != nil {
		return price, "", err
	}
	return price, resolved, nil
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// GetStock replays the movement history. Nothing is persisted.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "GetStock", "Failed to load ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toStockDTO(report.Stock(snap.Movements), snap.Fragrances))
}

// ListMovements returns the history in replay order with running balances.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Store.LoadStockMovements(r.Context())
	if err != nil {
		h.fail(w, r, "ListMovements", "Failed to load stock history", err)
		return
	}

	history := stock.History(movements)
	dtos := make([]MovementDTO, len(history))
	for i, line := range history {
		dtos[i] = toMovementDTO(line.Movement, line.Delta, line.Balance)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req CreateMovementRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := parseDate(req.Date, h.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	m, err := h.Normalizer.Movement(ledger.MovementRecord{
		ID:                    req.ID,
		Date:                  date,
		Quantity:              req.Quantity,
		Type:                  req.Type,
		Reason:                req.Reason,
		FragranceDistribution: req.FragranceDistribution,
	})
	if err != nil {
		h.fail(w, r, "CreateMovement", "Invalid movement", err)
		return
	}

	if err := h.Store.AppendMovement(r.Context(), m); err != nil {
		h.fail(w, r, "CreateMovement", "Failed to append movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(m, m.Delta(), 0))
}

// RecomputeStock replays per-fragrance stock and persists the clamped levels.
func (h *Handler) RecomputeStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.snapshot(ctx)
	if err != nil {
		h.fail(w, r, "RecomputeStock", "Failed to load ledger", err)
		return
	}

	summary := report.Stock(snap.Movements)
	if err := h.Store.SaveFragranceStock(ctx, summary.Fragrances, h.Now()); err != nil {
		h.fail(w, r, "RecomputeStock", "Failed to save fragrance stock", err)
		return
	}
	if summary.Divergence != nil {
		h.Logger.WithFields(logrus.Fields{
			"module":     "api",
			"funcName":   "RecomputeStock",
			"aggregate":  summary.Divergence.Aggregate,
			"fragrances": summary.Divergence.FragranceTotal,
		}).Warn("aggregate and per-fragrance stock diverge")
	}
	writeJSON(w, http.StatusOK, toStockDTO(summary, snap.Fragrances))
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := ledger.OrderStatus(r.URL.Query().Get("status"))
	orders, err := h.Store.ListOrders(r.Context(), status)
	if err != nil {
		h.fail(w, r, "ListOrders", "Failed to list orders", err)
		return
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateOrderRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := h.Now()
	scheduled, err := parseDate(req.ScheduledDate, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scheduled_date", err)
		return
	}
	price, tier, err := h.resolvePrice(req.PriceTier, req.PricePerUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}
	if !price.IsPositive() {
		writeError(w, http.StatusBadRequest, "Invalid price", errors.New("price_per_unit must be positive"))
		return
	}
	if _, err := h.Store.GetSupermarket(ctx, ledger.SupermarketID(req.SupermarketID)); err != nil {
		h.fail(w, r, "CreateOrder", "Unknown supermarket", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	o := ledger.Order{
		ID:                    ledger.OrderID(req.ID),
		SupermarketID:         ledger.SupermarketID(req.SupermarketID),
		ScheduledDate:         scheduled,
		Quantity:              req.Quantity,
		PricePerUnit:          price,
		PriceTier:             tier,
		Status:                ledger.OrderPending,
		Notes:                 req.Notes,
		FragranceDistribution: toDistribution(req.FragranceDistribution),
		CreatedAt:             now,
	}
	if err := h.Store.SaveOrder(ctx, o); err != nil {
		h.fail(w, r, "CreateOrder", "Failed to save order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(o))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderStatusRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := ledger.OrderID(chi.URLParam(r, "id"))
	if err := h.Store.UpdateOrderStatus(r.Context(), id, ledger.OrderStatus(req.Status)); err != nil {
		h.fail(w, r, "UpdateOrderStatus", "Failed to update order", err)
		return
	}

	o, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, "UpdateOrderStatus", "Order not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// ConvertOrder turns a pending order into a sale and a stock removal, then
// deletes the order.
func (h *Handler) ConvertOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConvertOrderRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	now := h.Now()
	at, err := parseDate(req.Date, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	o, err := h.Store.GetOrder(ctx, ledger.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "ConvertOrder", "Order not found", err)
		return
	}

	delivery, err := ledger.ConvertOrder(o, at, req.PaidImmediately)
	if err != nil {
		h.fail(w, r, "ConvertOrder", "Order cannot be converted", err)
		return
	}
	if err := h.Store.CommitConversion(ctx, o.ID, delivery); err != nil {
		h.fail(w, r, "ConvertOrder", "Failed to convert order", err)
		return
	}

	resp := ConvertOrderResponse{Sale: toSaleDTO(delivery.Sale, now)}
	if delivery.Movement != nil {
		m := toMovementDTO(*delivery.Movement, delivery.Movement.Delta(), 0)
		resp.Movement = &m
	}
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates its tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	return nil
}

// fail maps a domain error to its HTTP status. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, funcName, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		config.LogError(h.Logger, "api", funcName, middleware.GetReqID(r.Context()), nil, err)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsConflict(err):
		return http.StatusConflict
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// parseDate accepts RFC3339 or YYYY-MM-DD (local midnight). Empty yields def.
func parseDate(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, def.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is neither RFC3339 nor YYYY-MM-DD", ledger.ErrValidation, s)
	}
	return t, nil
}
