/*
Package ledger provides the shared data model for the distribution ledger.

PURPOSE:
  Sales, payments and stock movements are append-only records owned by the
  persistence layer. Every report (receivables, profitability, stock) is a
  pure fold over one snapshot of these records. This package holds the
  record types, the rules for appending payments, and the boundary that
  turns raw stored records into well-formed values the engines can trust.

KEY CONCEPTS IN THIS FILE (types.go):
  - Sale: one soap delivery to one supermarket, with embedded payments
  - Payment: one partial or full settlement (direct or "virement")
  - StockMovement: one signed change to the carton inventory
  - Snapshot: the collections loaded once per computation cycle

DESIGN PRINCIPLES:
  1. Append-only: payments and movements are never edited, only appended
  2. Precision: money uses decimal.Decimal, never float64
  3. Type Safety: typed IDs prevent mixing sale/supermarket/fragrance IDs
  4. Derived fields are recomputed, not trusted (see normalize.go)

USAGE:
  sale, err := ledger.NewSale(ledger.NewSaleInput{
      Date:          time.Now(),
      SupermarketID: "sm-1",
      Quantity:      90,
      PricePerUnit:  decimal.NewFromInt(180),
  })
  sale, err = ledger.AppendPayment(sale, ledger.Payment{
      Date:   time.Now(),
      Amount: decimal.NewFromInt(5000),
      Type:   ledger.PaymentVirement,
  })

SEE ALSO:
  - sale.go: Sale creation and payment append rules
  - normalize.go: Validation boundary for stored records
  - store.go: Loader/Store contracts with the persistence collaborator
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitsPerCarton is the number of soap pieces in one carton.
const UnitsPerCarton = 9

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SaleID string
type PaymentID string
type MovementID string
type SupermarketID string
type FragranceID string
type OrderID string

// PriceTier identifies an entry of the price-tier table (see profitability).
// The empty tier means "resolve from the unit price".
type PriceTier string

const (
	TierStandard  PriceTier = "standard"
	TierWholesale PriceTier = "wholesale"
)

// =============================================================================
// PAYMENT - Settlement against one sale
// =============================================================================

type PaymentType string

const (
	PaymentDirect   PaymentType = "direct"   // Cash or cheque handed over on delivery
	PaymentVirement PaymentType = "virement" // Staged bank transfer against an open balance
)

// Payment is owned by its parent Sale and never referenced on its own.
type Payment struct {
	ID     PaymentID
	Date   time.Time
	Amount decimal.Decimal
	Note   string
	Type   PaymentType
}

// =============================================================================
// SALE - One delivery to one supermarket
// =============================================================================

// Sale is a delivery with its embedded, insertion-ordered payments.
//
// INVARIANTS:
//   - RemainingAmount = TotalValue - sum(Payments.Amount)
//   - RemainingAmount is never negative
//   - IsPaid is true exactly when RemainingAmount is zero
//   - PaymentDate is the date of the payment that closed the sale
type Sale struct {
	ID            SaleID
	Date          time.Time
	SupermarketID SupermarketID

	Quantity     int // units
	Cartons      int // Quantity / UnitsPerCarton
	PricePerUnit decimal.Decimal
	PriceTier    PriceTier

	TotalValue      decimal.Decimal
	RemainingAmount decimal.Decimal
	IsPaid          bool
	Payments        []Payment

	PaymentDate         *time.Time
	ExpectedPaymentDate *time.Time
}

// PaidAmount returns the sum of all recorded payments.
func (s Sale) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Collected returns what has been collected so far (TotalValue - RemainingAmount).
func (s Sale) Collected() decimal.Decimal {
	return s.TotalValue.Sub(s.RemainingAmount)
}

// IsOverdue reports whether an open sale is past its expected payment date.
func (s Sale) IsOverdue(now time.Time) bool {
	return !s.IsPaid && s.ExpectedPaymentDate != nil && s.ExpectedPaymentDate.Before(now)
}

// =============================================================================
// STOCK MOVEMENT - Signed change to carton inventory
// =============================================================================

type MovementType string

const (
	MovementAdded    MovementType = "added"    // Stock received: +quantity
	MovementRemoved  MovementType = "removed"  // Stock delivered or lost: -quantity
	MovementAdjusted MovementType = "adjusted" // Correction: quantity is a signed delta
)

// Apply folds one quantity into a running balance using the movement sign rule.
func (t MovementType) Apply(balance, quantity int) int {
	switch t {
	case MovementAdded:
		return balance + quantity
	case MovementRemoved:
		return balance - quantity
	case MovementAdjusted:
		return balance + quantity
	default:
		return balance
	}
}

// Valid reports whether t is one of the known movement types.
func (t MovementType) Valid() bool {
	return t == MovementAdded || t == MovementRemoved || t == MovementAdjusted
}

// StockMovement is immutable once recorded. Corrections are new adjusted movements.
type StockMovement struct {
	ID       MovementID
	Date     time.Time
	Quantity int // cartons
	Type     MovementType
	Reason   string

	// FragranceDistribution attributes cartons to scents. Nil when the
	// movement is not attributed to specific fragrances.
	FragranceDistribution map[FragranceID]int
}

// Delta returns the signed change this movement applies to aggregate stock.
func (m StockMovement) Delta() int {
	return m.Type.Apply(0, m.Quantity)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type Supermarket struct {
	ID        SupermarketID
	Name      string
	Address   string
	Phone     string
	Latitude  *float64
	Longitude *float64
	CreatedAt time.Time
}

type Fragrance struct {
	ID    FragranceID
	Name  string
	Color string
}

// =============================================================================
// ORDER - Scheduled future delivery
// =============================================================================

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID            OrderID
	SupermarketID SupermarketID
	ScheduledDate time.Time
	Quantity      int
	PricePerUnit  decimal.Decimal
	PriceTier     PriceTier
	Status        OrderStatus
	Notes         string

	FragranceDistribution map[FragranceID]int
	CreatedAt             time.Time
}

// =============================================================================
// REMINDER - Recorded payment/delivery reminder (delivery is out of scope)
// =============================================================================

type ReminderKind string

const (
	ReminderPaymentDue ReminderKind = "payment_due"
	ReminderOrderDue   ReminderKind = "order_due"
)

type Reminder struct {
	ID            string
	Key           string // one reminder per subject per day
	Kind          ReminderKind
	SubjectID     string
	SupermarketID SupermarketID
	Message       string
	DueDate       time.Time
	CreatedAt     time.Time
}

// =============================================================================
// SNAPSHOT - One computation cycle's input
// =============================================================================

// Snapshot is loaded once and handed to the engines. The engines never
// mutate it and never talk to the store themselves.
type Snapshot struct {
	Sales        []Sale
	Movements    []StockMovement
	Supermarkets []Supermarket
	Fragrances   []Fragrance
}
