/*
sale.go - Sale creation and the payment append rule

PAYMENT RULE:
  Payments are appended, never edited. A payment must be positive and may
  not exceed the remaining balance; an overpayment is REJECTED (not
  clamped) with an *OverpaymentError, so RemainingAmount can never go
  negative. The payment that brings RemainingAmount to zero closes the
  sale and stamps PaymentDate.

EXAMPLE FLOW:
  1. Deliver 90 units at 180:       TotalValue 16200, Remaining 16200
  2. Virement 10000:                Remaining 6200
  3. Virement 6200:                 Remaining 0, IsPaid, PaymentDate set
  4. Virement 1:                    ErrSaleAlreadyPaid
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewSaleInput contains inputs for recording a delivery.
type NewSaleInput struct {
	ID            SaleID // generated when empty
	Date          time.Time
	SupermarketID SupermarketID
	Quantity      int
	PricePerUnit  decimal.Decimal
	PriceTier     PriceTier

	// PaidImmediately records one synthetic full payment dated at Date.
	PaidImmediately     bool
	ExpectedPaymentDate *time.Time
}

// NewSale creates a sale with RemainingAmount = TotalValue, or a closed
// sale carrying one full direct payment when PaidImmediately is set.
func NewSale(in NewSaleInput) (Sale, error) {
	if in.Date.IsZero() {
		return Sale{}, &ValidationError{Record: "sale", Field: "date", Reason: "is required"}
	}
	if in.SupermarketID == "" {
		return Sale{}, &ValidationError{Record: "sale", Field: "supermarket_id", Reason: "is required"}
	}
	if in.Quantity <= 0 {
		return Sale{}, &ValidationError{Record: "sale", Field: "quantity", Reason: "must be positive"}
	}
	if !in.PricePerUnit.IsPositive() {
		return Sale{}, &ValidationError{Record: "sale", Field: "price_per_unit", Reason: "must be positive"}
	}
	if in.ID == "" {
		in.ID = SaleID(uuid.NewString())
	}

	total := in.PricePerUnit.Mul(decimal.NewFromInt(int64(in.Quantity)))
	sale := Sale{
		ID:                  in.ID,
		Date:                in.Date,
		SupermarketID:       in.SupermarketID,
		Quantity:            in.Quantity,
		Cartons:             in.Quantity / UnitsPerCarton,
		PricePerUnit:        in.PricePerUnit,
		PriceTier:           in.PriceTier,
		TotalValue:          total,
		RemainingAmount:     total,
		ExpectedPaymentDate: in.ExpectedPaymentDate,
	}

	if in.PaidImmediately {
		return AppendPayment(sale, Payment{
			Date:   in.Date,
			Amount: total,
			Type:   PaymentDirect,
			Note:   "payé à la livraison",
		})
	}
	return sale, nil
}

// AppendPayment returns a copy of sale with p appended. The input sale and
// its payment slice are left untouched.
func AppendPayment(sale Sale, p Payment) (Sale, error) {
	if p.Date.IsZero() {
		return sale, &ValidationError{Record: "payment", Field: "date", Reason: "is required"}
	}
	if !p.Amount.IsPositive() {
		return sale, fmt.Errorf("payment on sale %s: %w", sale.ID, ErrInvalidAmount)
	}
	if sale.IsPaid {
		return sale, fmt.Errorf("payment on sale %s: %w", sale.ID, ErrSaleAlreadyPaid)
	}
	if p.Amount.GreaterThan(sale.RemainingAmount) {
		return sale, &OverpaymentError{SaleID: sale.ID, Remaining: sale.RemainingAmount, Offered: p.Amount}
	}
	if p.ID == "" {
		p.ID = PaymentID(uuid.NewString())
	}
	if p.Type == "" {
		p.Type = PaymentDirect
	}

	payments := make([]Payment, len(sale.Payments), len(sale.Payments)+1)
	copy(payments, sale.Payments)
	sale.Payments = append(payments, p)

	sale.RemainingAmount = sale.RemainingAmount.Sub(p.Amount)
	if sale.RemainingAmount.IsZero() {
		sale.IsPaid = true
		paidAt := p.Date
		sale.PaymentDate = &paidAt
	}
	return sale, nil
}

// CheckInvariant verifies RemainingAmount = TotalValue - sum(payments) and
// that the derived flags agree with it.
func CheckInvariant(s Sale) error {
	expected := s.TotalValue.Sub(s.PaidAmount())
	if !s.RemainingAmount.Equal(expected) {
		return fmt.Errorf("sale %s: remaining %s, expected %s: %w",
			s.ID, s.RemainingAmount, expected, ErrValidation)
	}
	if s.RemainingAmount.IsNegative() {
		return fmt.Errorf("sale %s: negative remaining amount: %w", s.ID, ErrOverpayment)
	}
	if s.IsPaid != s.RemainingAmount.IsZero() {
		return fmt.Errorf("sale %s: is_paid=%t disagrees with remaining %s: %w",
			s.ID, s.IsPaid, s.RemainingAmount, ErrValidation)
	}
	return nil
}
