package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func dzd(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func openSale(t *testing.T, qty int, price int64) ledger.Sale {
	t.Helper()
	s, err := ledger.NewSale(ledger.NewSaleInput{
		ID:            "sale-1",
		Date:          day(2025, time.March, 3),
		SupermarketID: "sm-1",
		Quantity:      qty,
		PricePerUnit:  dzd(price),
		PriceTier:     ledger.TierStandard,
	})
	require.NoError(t, err)
	return s
}

// =============================================================================
// NEW SALE
// =============================================================================

func TestNewSale_DerivesTotalsAndCartons(t *testing.T) {
	// GIVEN: 20 units at 180
	s := openSale(t, 20, 180)

	// THEN: total 3600, fully open, 2 whole cartons
	assert.True(t, s.TotalValue.Equal(dzd(3600)))
	assert.True(t, s.RemainingAmount.Equal(dzd(3600)))
	assert.False(t, s.IsPaid)
	assert.Equal(t, 2, s.Cartons)
	assert.Nil(t, s.PaymentDate)
	assert.NoError(t, ledger.CheckInvariant(s))
}

func TestNewSale_PaidImmediately_RecordsOneFullPayment(t *testing.T) {
	// GIVEN: a delivery paid on the spot
	at := day(2025, time.March, 3)
	s, err := ledger.NewSale(ledger.NewSaleInput{
		Date:            at,
		SupermarketID:   "sm-1",
		Quantity:        9,
		PricePerUnit:    dzd(166),
		PaidImmediately: true,
	})
	require.NoError(t, err)

	// THEN: one direct payment for the full amount, sale closed on the delivery date
	require.Len(t, s.Payments, 1)
	assert.Equal(t, ledger.PaymentDirect, s.Payments[0].Type)
	assert.True(t, s.Payments[0].Amount.Equal(dzd(1494)))
	assert.True(t, s.IsPaid)
	assert.True(t, s.RemainingAmount.IsZero())
	require.NotNil(t, s.PaymentDate)
	assert.Equal(t, at, *s.PaymentDate)
	assert.NotEmpty(t, s.ID, "id is generated when omitted")
}

func TestNewSale_RejectsInvalidInput(t *testing.T) {
	base := ledger.NewSaleInput{Date: day(2025, 1, 1), SupermarketID: "sm", Quantity: 1, PricePerUnit: dzd(180)}

	tests := []struct {
		name  string
		edit  func(*ledger.NewSaleInput)
		field string
	}{
		{"missing date", func(in *ledger.NewSaleInput) { in.Date = time.Time{} }, "date"},
		{"missing supermarket", func(in *ledger.NewSaleInput) { in.SupermarketID = "" }, "supermarket_id"},
		{"zero quantity", func(in *ledger.NewSaleInput) { in.Quantity = 0 }, "quantity"},
		{"zero price", func(in *ledger.NewSaleInput) { in.PricePerUnit = decimal.Zero }, "price_per_unit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.edit(&in)
			_, err := ledger.NewSale(in)

			var verr *ledger.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.True(t, ledger.IsClientError(err))
		})
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestAppendPayment_PartialThenClosing(t *testing.T) {
	// GIVEN: an open sale of 1800
	s := openSale(t, 10, 180)

	// WHEN: a 500 virement then a 1300 payment are appended
	s1, err := ledger.AppendPayment(s, ledger.Payment{Date: day(2025, 3, 10), Amount: dzd(500), Type: ledger.PaymentVirement})
	require.NoError(t, err)
	s2, err := ledger.AppendPayment(s1, ledger.Payment{Date: day(2025, 4, 2), Amount: dzd(1300)})
	require.NoError(t, err)

	// THEN: the first leaves 1300 open, the second closes the sale on its date
	assert.True(t, s1.RemainingAmount.Equal(dzd(1300)))
	assert.False(t, s1.IsPaid)
	assert.Nil(t, s1.PaymentDate)

	assert.True(t, s2.IsPaid)
	assert.True(t, s2.RemainingAmount.IsZero())
	require.NotNil(t, s2.PaymentDate)
	assert.Equal(t, day(2025, 4, 2), *s2.PaymentDate)
	assert.Equal(t, ledger.PaymentDirect, s2.Payments[1].Type, "type defaults to direct")
	assert.NoError(t, ledger.CheckInvariant(s2))

	// AND: the input sales are untouched
	assert.Empty(t, s.Payments)
	assert.Len(t, s1.Payments, 1)
}

func TestAppendPayment_Overpayment_Rejected(t *testing.T) {
	// GIVEN: an open sale of 900
	s := openSale(t, 5, 180)

	// WHEN: paying 901
	_, err := ledger.AppendPayment(s, ledger.Payment{Date: day(2025, 3, 4), Amount: dzd(901)})

	// THEN: OverpaymentError carrying both amounts
	var op *ledger.OverpaymentError
	require.ErrorAs(t, err, &op)
	assert.True(t, op.Remaining.Equal(dzd(900)))
	assert.True(t, op.Offered.Equal(dzd(901)))
	assert.ErrorIs(t, err, ledger.ErrOverpayment)
	assert.True(t, ledger.IsConflict(err))
}

func TestAppendPayment_RejectsNonPositiveAndClosedSales(t *testing.T) {
	s := openSale(t, 1, 180)

	_, err := ledger.AppendPayment(s, ledger.Payment{Date: day(2025, 3, 4), Amount: decimal.Zero})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = ledger.AppendPayment(s, ledger.Payment{Date: day(2025, 3, 4), Amount: dzd(-5)})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = ledger.AppendPayment(s, ledger.Payment{Amount: dzd(5)})
	assert.ErrorIs(t, err, ledger.ErrValidation, "payment date is required")

	paid, err := ledger.AppendPayment(s, ledger.Payment{Date: day(2025, 3, 4), Amount: dzd(180)})
	require.NoError(t, err)
	_, err = ledger.AppendPayment(paid, ledger.Payment{Date: day(2025, 3, 5), Amount: dzd(1)})
	assert.ErrorIs(t, err, ledger.ErrSaleAlreadyPaid)
}

func TestCheckInvariant_DetectsTamperedSale(t *testing.T) {
	s := openSale(t, 10, 180)
	s.RemainingAmount = dzd(100)
	assert.ErrorIs(t, ledger.CheckInvariant(s), ledger.ErrValidation)

	s = openSale(t, 10, 180)
	s.IsPaid = true
	assert.ErrorIs(t, ledger.CheckInvariant(s), ledger.ErrValidation)
}

func TestSale_IsOverdue(t *testing.T) {
	s := openSale(t, 10, 180)
	now := day(2025, 5, 1)
	assert.False(t, s.IsOverdue(now), "no expected date")

	due := day(2025, 4, 1)
	s.ExpectedPaymentDate = &due
	assert.True(t, s.IsOverdue(now))
	assert.False(t, s.IsOverdue(day(2025, 3, 15)))

	paid, err := ledger.AppendPayment(s, ledger.Payment{Date: now, Amount: s.RemainingAmount})
	require.NoError(t, err)
	assert.False(t, paid.IsOverdue(now), "paid sales are never overdue")
}

func TestSale_PaidAmountAndCollected(t *testing.T) {
	s := openSale(t, 10, 180)
	s, _ = ledger.AppendPayment(s, ledger.Payment{Date: day(2025, 3, 5), Amount: dzd(300)})
	s, _ = ledger.AppendPayment(s, ledger.Payment{Date: day(2025, 3, 6), Amount: dzd(200)})

	assert.True(t, s.PaidAmount().Equal(dzd(500)))
	assert.True(t, s.Collected().Equal(dzd(500)))
}

func TestErrorHelpers_Classify(t *testing.T) {
	assert.True(t, ledger.IsNotFound(errors.Join(ledger.ErrNotFound)))
	assert.True(t, ledger.IsConflict(ledger.ErrDuplicateID))
	assert.True(t, ledger.IsClientError(ledger.ErrInvalidPeriod))
	assert.False(t, ledger.IsClientError(errors.New("disk full")))
}
