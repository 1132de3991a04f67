/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS AND DATES:
  Amounts are decimal.Decimal and travel as JSON strings ("16200.5").
  Requests accept either strings or numbers. Dates are RFC3339 or plain
  "2006-01-02"; responses always use RFC3339.

VALIDATION:
  Request types carry go-playground/validator tags, checked in handlers
  through Handler.decode. Record-level rules (payment totals, movement
  signs) stay in ledger.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/normalize.go: Record validation
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/profitability"
	"github.com/savon-distrib/ledger-engine/receivables"
	"github.com/savon-distrib/ledger-engine/report"
	"github.com/savon-distrib/ledger-engine/stock"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

type SupermarketDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// SupermarketDetailDTO adds what the supermarket still owes.
type SupermarketDetailDTO struct {
	SupermarketDTO
	Balance *BalanceDTO `json:"balance,omitempty"`
	Sales   []SaleDTO   `json:"sales"`
}

type CreateSupermarketRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name" validate:"required"`
	Address   string   `json:"address"`
	Phone     string   `json:"phone"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
}

type FragranceDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type CreateFragranceRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// =============================================================================
// SALES AND PAYMENTS
// =============================================================================

type PaymentDTO struct {
	ID     string          `json:"id"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
	Type   string          `json:"type"`
}

type SaleDTO struct {
	ID                  string          `json:"id"`
	Date                string          `json:"date"`
	SupermarketID       string          `json:"supermarket_id"`
	Quantity            int             `json:"quantity"`
	Cartons             int             `json:"cartons"`
	PricePerUnit        decimal.Decimal `json:"price_per_unit"`
	PriceTier           string          `json:"price_tier,omitempty"`
	TotalValue          decimal.Decimal `json:"total_value"`
	RemainingAmount     decimal.Decimal `json:"remaining_amount"`
	IsPaid              bool            `json:"is_paid"`
	Overdue             bool            `json:"overdue"`
	Payments            []PaymentDTO    `json:"payments"`
	PaymentDate         *string         `json:"payment_date,omitempty"`
	ExpectedPaymentDate *string         `json:"expected_payment_date,omitempty"`
}

// CreateSaleRequest records a delivery. When PricePerUnit is zero the
// price of PriceTier is used.
type CreateSaleRequest struct {
	ID                    string          `json:"id"`
	SupermarketID         string          `json:"supermarket_id" validate:"required"`
	Date                  string          `json:"date"`
	Quantity              int             `json:"quantity" validate:"gt=0"`
	PricePerUnit          decimal.Decimal `json:"price_per_unit" validate:"-"`
	PriceTier             string          `json:"price_tier"`
	PaidImmediately       bool            `json:"paid_immediately"`
	ExpectedPaymentDate   string          `json:"expected_payment_date"`
	FragranceDistribution map[string]int  `json:"fragrance_distribution" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
}

type AddPaymentRequest struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount" validate:"-"`
	Note   string          `json:"note"`
	Type   string          `json:"type" validate:"omitempty,oneof=direct virement"`
}

// =============================================================================
// STOCK
// =============================================================================

type MovementDTO struct {
	ID                    string         `json:"id"`
	Date                  string         `json:"date"`
	Quantity              int            `json:"quantity"`
	Type                  string         `json:"type"`
	Reason                string         `json:"reason,omitempty"`
	FragranceDistribution map[string]int `json:"fragrance_distribution,omitempty"`
	Delta                 int            `json:"delta"`
	Balance               int            `json:"balance"` // aggregate stock after this movement
}

type CreateMovementRequest struct {
	ID                    string         `json:"id"`
	Date                  string         `json:"date"`
	Quantity              int            `json:"quantity"`
	Type                  string         `json:"type" validate:"required,oneof=added removed adjusted"`
	Reason                string         `json:"reason"`
	FragranceDistribution map[string]int `json:"fragrance_distribution"`
}

type FragranceStockDTO struct {
	FragranceID string `json:"fragrance_id"`
	Name        string `json:"name,omitempty"`
	Quantity    int    `json:"quantity"`
}

type DivergenceDTO struct {
	Aggregate      int      `json:"aggregate"`
	FragranceTotal int      `json:"fragrance_total"`
	Difference     int      `json:"difference"`
	Undistributed  []string `json:"undistributed,omitempty"`
	Mismatched     []string `json:"mismatched,omitempty"`
	Negative       []string `json:"negative,omitempty"`
}

type StockDTO struct {
	Aggregate  int                 `json:"aggregate"`
	Fragrances []FragranceStockDTO `json:"fragrances"`
	Divergence *DivergenceDTO      `json:"divergence,omitempty"`
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderDTO struct {
	ID                    string          `json:"id"`
	SupermarketID         string          `json:"supermarket_id"`
	ScheduledDate         string          `json:"scheduled_date"`
	Quantity              int             `json:"quantity"`
	PricePerUnit          decimal.Decimal `json:"price_per_unit"`
	PriceTier             string          `json:"price_tier,omitempty"`
	Status                string          `json:"status"`
	Notes                 string          `json:"notes,omitempty"`
	FragranceDistribution map[string]int  `json:"fragrance_distribution,omitempty"`
	CreatedAt             string          `json:"created_at,omitempty"`
}

type CreateOrderRequest struct {
	ID                    string          `json:"id"`
	SupermarketID         string          `json:"supermarket_id" validate:"required"`
	ScheduledDate         string          `json:"scheduled_date" validate:"required"`
	Quantity              int             `json:"quantity" validate:"gt=0"`
	PricePerUnit          decimal.Decimal `json:"price_per_unit" validate:"-"`
	PriceTier             string          `json:"price_tier"`
	Notes                 string          `json:"notes"`
	FragranceDistribution map[string]int  `json:"fragrance_distribution" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=delivered cancelled"`
}

type ConvertOrderRequest struct {
	Date            string `json:"date"`
	PaidImmediately bool   `json:"paid_immediately"`
}

// ConvertOrderResponse is what a conversion wrote.
type ConvertOrderResponse struct {
	Sale     SaleDTO      `json:"sale"`
	Movement *MovementDTO `json:"movement,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

type AgingDTO struct {
	Bucket           string  `json:"bucket"`
	MonthsBack       int     `json:"months_back"`
	ElapsedMonths    float64 `json:"elapsed_months"`
	OldestUnpaidDate *string `json:"oldest_unpaid_date,omitempty"`
	HasUnpaid        bool    `json:"has_unpaid"`
}

type SupplierReturnDTO struct {
	TotalUnpaid  decimal.Decimal `json:"total_unpaid"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	CanReturn    bool            `json:"can_return"`
	ReturnAmount decimal.Decimal `json:"return_amount"`
	UnpaidCount  int             `json:"unpaid_count"`
	PaidCount    int             `json:"paid_count"`
}

type PeriodDTO struct {
	Start            string          `json:"start"`
	End              string          `json:"end"`
	SaleCount        int             `json:"sale_count"`
	Quantity         int             `json:"quantity"`
	Revenue          decimal.Decimal `json:"revenue"`
	Profit           decimal.Decimal `json:"profit"`
	PaidProfit       decimal.Decimal `json:"paid_profit"`
	UnpaidProfit     decimal.Decimal `json:"unpaid_profit"`
	SupplierPayment  decimal.Decimal `json:"supplier_payment"`
	UnpricedQuantity int             `json:"unpriced_quantity"`
}

type WindowDTO struct {
	Label  string    `json:"label"`
	Period PeriodDTO `json:"period"`
	Aging  AgingDTO  `json:"aging"`
}

type BalanceDTO struct {
	SupermarketID    string          `json:"supermarket_id"`
	Name             string          `json:"name,omitempty"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	Collected        decimal.Decimal `json:"collected"`
	UnpaidCount      int             `json:"unpaid_count"`
	OverdueCount     int             `json:"overdue_count"`
	OldestUnpaidDate string          `json:"oldest_unpaid_date"`
	Bucket           string          `json:"bucket"`
}

type DashboardDTO struct {
	GeneratedAt    string            `json:"generated_at"`
	Aging          AgingDTO          `json:"aging"`
	SupplierReturn SupplierReturnDTO `json:"supplier_return"`
	Window         WindowDTO         `json:"window"`
	Today          PeriodDTO         `json:"today"`
	CurrentMonth   []PeriodDTO       `json:"current_month"`
	Stock          StockDTO          `json:"stock"`
	Outstanding    []BalanceDTO      `json:"outstanding"`
}

type ReminderDTO struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	SubjectID     string `json:"subject_id"`
	SupermarketID string `json:"supermarket_id,omitempty"`
	Message       string `json:"message"`
	DueDate       string `json:"due_date"`
	CreatedAt     string `json:"created_at"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatDate(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func toSupermarketDTO(sm ledger.Supermarket) SupermarketDTO {
	dto := SupermarketDTO{
		ID:        string(sm.ID),
		Name:      sm.Name,
		Address:   sm.Address,
		Phone:     sm.Phone,
		Latitude:  sm.Latitude,
		Longitude: sm.Longitude,
	}
	if !sm.CreatedAt.IsZero() {
		dto.CreatedAt = formatDate(sm.CreatedAt)
	}
	return dto
}

func toSaleDTO(s ledger.Sale, now time.Time) SaleDTO {
	dto := SaleDTO{
		ID:                  string(s.ID),
		Date:                formatDate(s.Date),
		SupermarketID:       string(s.SupermarketID),
		Quantity:            s.Quantity,
		Cartons:             s.Cartons,
		PricePerUnit:        s.PricePerUnit,
		PriceTier:           string(s.PriceTier),
		TotalValue:          s.TotalValue,
		RemainingAmount:     s.RemainingAmount,
		IsPaid:              s.IsPaid,
		Overdue:             s.IsOverdue(now),
		Payments:            make([]PaymentDTO, 0, len(s.Payments)),
		PaymentDate:         formatDatePtr(s.PaymentDate),
		ExpectedPaymentDate: formatDatePtr(s.ExpectedPaymentDate),
	}
	for _, p := range s.Payments {
		dto.Payments = append(dto.Payments, PaymentDTO{
			ID:     string(p.ID),
			Date:   formatDate(p.Date),
			Amount: p.Amount,
			Note:   p.Note,
			Type:   string(p.Type),
		})
	}
	return dto
}

func toMovementDTO(m ledger.StockMovement, delta, balance int) MovementDTO {
	dto := MovementDTO{
		ID:       string(m.ID),
		Date:     formatDate(m.Date),
		Quantity: m.Quantity,
		Type:     string(m.Type),
		Reason:   m.Reason,
		Delta:    delta,
		Balance:  balance,
	}
	if len(m.FragranceDistribution) > 0 {
		dto.FragranceDistribution = make(map[string]int, len(m.FragranceDistribution))
		for k, v := range m.FragranceDistribution {
			dto.FragranceDistribution[string(k)] = v
		}
	}
	return dto
}

func toOrderDTO(o ledger.Order) OrderDTO {
	dto := OrderDTO{
		ID:            string(o.ID),
		SupermarketID: string(o.SupermarketID),
		ScheduledDate: formatDate(o.ScheduledDate),
		Quantity:      o.Quantity,
		PricePerUnit:  o.PricePerUnit,
		PriceTier:     string(o.PriceTier),
		Status:        string(o.Status),
		Notes:         o.Notes,
	}
	if !o.CreatedAt.IsZero() {
		dto.CreatedAt = formatDate(o.CreatedAt)
	}
	if len(o.FragranceDistribution) > 0 {
		dto.FragranceDistribution = make(map[string]int, len(o.FragranceDistribution))
		for k, v := range o.FragranceDistribution {
			dto.FragranceDistribution[string(k)] = v
		}
	}
	return dto
}

func toAgingDTO(a receivables.AgingPeriod) AgingDTO {
	return AgingDTO{
		Bucket:           string(a.Bucket),
		MonthsBack:       a.MonthsBack,
		ElapsedMonths:    a.ElapsedMonths,
		OldestUnpaidDate: formatDatePtr(a.OldestUnpaidDate),
		HasUnpaid:        a.HasUnpaid,
	}
}

func toSupplierReturnDTO(r receivables.SupplierReturn) SupplierReturnDTO {
	return SupplierReturnDTO{
		TotalUnpaid:  r.TotalUnpaid,
		TotalPaid:    r.TotalPaid,
		CanReturn:    r.CanReturn,
		ReturnAmount: r.ReturnAmount,
		UnpaidCount:  r.UnpaidCount,
		PaidCount:    r.PaidCount,
	}
}

func toPeriodDTO(p ledger.Period, r profitability.PeriodResult) PeriodDTO {
	return PeriodDTO{
		Start:            formatDate(p.Start),
		End:              formatDate(p.End),
		SaleCount:        r.SaleCount,
		Quantity:         r.Quantity,
		Revenue:          r.Revenue,
		Profit:           r.Profit,
		PaidProfit:       r.PaidProfit,
		UnpaidProfit:     r.UnpaidProfit(),
		SupplierPayment:  r.SupplierPayment,
		UnpricedQuantity: r.UnpricedQuantity,
	}
}

func toWindowDTO(w profitability.ReportingWindow) WindowDTO {
	return WindowDTO{
		Label:  w.Label,
		Period: toPeriodDTO(w.Period, w.Data),
		Aging:  toAgingDTO(w.Aging),
	}
}

func toBalanceDTOs(balances []receivables.SupermarketBalance, names map[ledger.SupermarketID]string) []BalanceDTO {
	out := make([]BalanceDTO, 0, len(balances))
	for _, b := range balances {
		out = append(out, BalanceDTO{
			SupermarketID:    string(b.SupermarketID),
			Name:             names[b.SupermarketID],
			Outstanding:      b.Outstanding,
			Collected:        b.Collected,
			UnpaidCount:      b.UnpaidCount,
			OverdueCount:     b.OverdueCount,
			OldestUnpaidDate: formatDate(b.OldestUnpaidDate),
			Bucket:           string(b.Bucket),
		})
	}
	return out
}

func toStockDTO(s report.StockSummary, fragrances []ledger.Fragrance) StockDTO {
	dto := StockDTO{
		Aggregate:  s.Aggregate,
		Fragrances: make([]FragranceStockDTO, 0, len(fragrances)),
		Divergence: toDivergenceDTO(s.Divergence),
	}
	seen := make(map[ledger.FragranceID]bool, len(fragrances))
	for _, f := range fragrances {
		seen[f.ID] = true
		dto.Fragrances = append(dto.Fragrances, FragranceStockDTO{
			FragranceID: string(f.ID),
			Name:        f.Name,
			Quantity:    s.Fragrances[f.ID],
		})
	}
	// Fragrances referenced by movements but missing from reference data.
	for id, qty := range s.Fragrances {
		if !seen[id] {
			dto.Fragrances = append(dto.Fragrances, FragranceStockDTO{FragranceID: string(id), Quantity: qty})
		}
	}
	return dto
}

func toDivergenceDTO(d *stock.Divergence) *DivergenceDTO {
	if d == nil {
		return nil
	}
	dto := &DivergenceDTO{
		Aggregate:      d.Aggregate,
		FragranceTotal: d.FragranceTotal,
		Difference:     d.Difference,
	}
	for _, id := range d.Undistributed {
		dto.Undistributed = append(dto.Undistributed, string(id))
	}
	for _, id := range d.Mismatched {
		dto.Mismatched = append(dto.Mismatched, string(id))
	}
	for _, id := range d.Negative {
		dto.Negative = append(dto.Negative, string(id))
	}
	return dto
}

func toDashboardDTO(d report.Dashboard, snap ledger.Snapshot) DashboardDTO {
	dto := DashboardDTO{
		GeneratedAt:    formatDate(d.GeneratedAt),
		Aging:          toAgingDTO(d.Aging),
		SupplierReturn: toSupplierReturnDTO(d.SupplierReturn),
		Window:         toWindowDTO(d.Window),
		Today:          toPeriodDTO(ledger.DayPeriod(d.GeneratedAt), d.Today),
		CurrentMonth:   make([]PeriodDTO, 0, len(d.CurrentMonth)),
		Stock:          toStockDTO(d.Stock, snap.Fragrances),
		Outstanding:    toBalanceDTOs(d.Outstanding, supermarketNames(snap.Supermarkets)),
	}
	for _, day := range d.CurrentMonth {
		dto.CurrentMonth = append(dto.CurrentMonth, toPeriodDTO(ledger.DayPeriod(day.Day), day.PeriodResult))
	}
	return dto
}

func toReminderDTO(r ledger.Reminder) ReminderDTO {
	return ReminderDTO{
		ID:            r.ID,
		Kind:          string(r.Kind),
		SubjectID:     r.SubjectID,
		SupermarketID: string(r.SupermarketID),
		Message:       r.Message,
		DueDate:       formatDate(r.DueDate),
		CreatedAt:     formatDate(r.CreatedAt),
	}
}

func supermarketNames(sms []ledger.Supermarket) map[ledger.SupermarketID]string {
	names := make(map[ledger.SupermarketID]string, len(sms))
	for _, sm := range sms {
		names[sm.ID] = sm.Name
	}
	return names
}

func toDistribution(in map[string]int) map[ledger.FragranceID]int {
	if len(in) == 0 {
		return nil
	}
	out := make(map[ledger.FragranceID]int, len(in))
	for k, v := range in {
		out[ledger.FragranceID(k)] = v
	}
	return out
}
