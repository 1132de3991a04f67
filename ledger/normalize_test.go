package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// fixedTiers resolves 180 to standard and 166 to wholesale.
type fixedTiers struct{}

func (fixedTiers) TierForPrice(price decimal.Decimal) (ledger.PriceTier, bool) {
	switch {
	case price.Equal(dzd(180)):
		return ledger.TierStandard, true
	case price.Equal(dzd(166)):
		return ledger.TierWholesale, true
	}
	return "", false
}

func (fixedTiers) HasTier(tier ledger.PriceTier) bool {
	return tier == ledger.TierStandard || tier == ledger.TierWholesale
}

func TestNormalizer_Sale_RecomputesDerivedFields(t *testing.T) {
	// GIVEN: a stored sale with two payments and no tier
	rec := ledger.SaleRecord{
		ID:            "s-1",
		Date:          day(2025, 2, 1),
		SupermarketID: "sm-1",
		Quantity:      18,
		PricePerUnit:  dzd(166),
		Payments: []ledger.PaymentRecord{
			{ID: "p-1", Date: day(2025, 2, 10), Amount: dzd(1000), Type: "virement"},
			{ID: "p-2", Date: day(2025, 2, 20), Amount: dzd(1988)},
		},
	}

	// WHEN: normalized
	s, err := ledger.NewNormalizer(fixedTiers{}).Sale(rec)
	require.NoError(t, err)

	// THEN: tier resolved from price, totals and closing date rebuilt
	assert.Equal(t, ledger.TierWholesale, s.PriceTier)
	assert.Equal(t, 2, s.Cartons)
	assert.True(t, s.TotalValue.Equal(dzd(2988)))
	assert.True(t, s.IsPaid)
	require.NotNil(t, s.PaymentDate)
	assert.Equal(t, day(2025, 2, 20), *s.PaymentDate)
	assert.Equal(t, ledger.PaymentVirement, s.Payments[0].Type)
	assert.Equal(t, ledger.PaymentDirect, s.Payments[1].Type)
}

func TestNormalizer_Sale_UnknownTier(t *testing.T) {
	rec := ledger.SaleRecord{ID: "s-1", Date: day(2025, 2, 1), SupermarketID: "sm-1", Quantity: 9, PricePerUnit: dzd(175)}

	// GIVEN: default normalizer
	n := ledger.NewNormalizer(fixedTiers{})
	s, err := n.Sale(rec)
	require.NoError(t, err)
	assert.Empty(t, s.PriceTier, "unmatched price keeps an empty tier")

	// WHEN: RejectUnknownTier is set
	n.RejectUnknownTier = true
	_, err = n.Sale(rec)

	// THEN: rejected on the price field
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "price_per_unit", verr.Field)
}

func TestNormalizer_Sale_TierMustAgreeWithPrice(t *testing.T) {
	rec := func(price int64, tier string) ledger.SaleRecord {
		return ledger.SaleRecord{ID: "s-1", Date: day(2025, 2, 1), SupermarketID: "sm-1", Quantity: 10,
			PricePerUnit: dzd(price), PriceTier: tier}
	}
	n := ledger.NewNormalizer(fixedTiers{})

	tests := []struct {
		name    string
		rec     ledger.SaleRecord
		want    ledger.PriceTier
		wantErr bool
	}{
		{"tier matches its price", rec(166, "wholesale"), ledger.TierWholesale, false},
		{"negotiated off-table price keeps its tier", rec(170, "wholesale"), ledger.TierWholesale, false},
		{"price of another tier", rec(166, "standard"), "", true},
		{"unknown tier id", rec(166, "bogus"), "", true},
		{"unknown tier id off-table", rec(170, "bogus"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := n.Sale(tt.rec)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, s.PriceTier)
				return
			}
			var verr *ledger.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "price_tier", verr.Field)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}

	// RejectUnknownTier does not relax the check on a given tier
	n.RejectUnknownTier = true
	_, err := n.Sale(rec(166, "bogus"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestNormalizer_Sale_RejectsMalformedRecords(t *testing.T) {
	n := ledger.NewNormalizer(nil)

	_, err := n.Sale(ledger.SaleRecord{ID: "s-1", Date: day(2025, 2, 1), Quantity: 9, PricePerUnit: dzd(180)})
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "supermarket_id", verr.Field)

	_, err = n.Sale(ledger.SaleRecord{ID: "s-1", Date: day(2025, 2, 1), SupermarketID: "sm", Quantity: 9, PricePerUnit: dzd(180),
		Payments: []ledger.PaymentRecord{{ID: "p", Date: day(2025, 2, 2), Amount: dzd(5000)}}})
	assert.ErrorIs(t, err, ledger.ErrOverpayment, "stored overpayments are rejected on load")

	_, err = n.Sale(ledger.SaleRecord{ID: "s-1", Date: day(2025, 2, 1), SupermarketID: "sm", Quantity: 9, PricePerUnit: dzd(180),
		Payments: []ledger.PaymentRecord{{ID: "p", Date: day(2025, 2, 2), Amount: dzd(10), Type: "cheque"}}})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestNormalizer_Movement(t *testing.T) {
	n := ledger.NewNormalizer(nil)

	m, err := n.Movement(ledger.MovementRecord{ID: "m-1", Date: day(2025, 1, 5), Quantity: 12, Type: "added",
		FragranceDistribution: map[string]int{"lavande": 7, "citron": 5}})
	require.NoError(t, err)
	assert.Equal(t, 12, m.Delta())
	assert.Equal(t, 7, m.FragranceDistribution["lavande"])

	adj, err := n.Movement(ledger.MovementRecord{ID: "m-2", Date: day(2025, 1, 6), Quantity: -3, Type: "adjusted"})
	require.NoError(t, err)
	assert.Equal(t, -3, adj.Delta())
	assert.Nil(t, adj.FragranceDistribution)

	_, err = n.Movement(ledger.MovementRecord{ID: "m-3", Date: day(2025, 1, 6), Quantity: -3, Type: "removed"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = n.Movement(ledger.MovementRecord{ID: "m-4", Date: day(2025, 1, 6), Quantity: 3, Type: "lost"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestRecordConversion_RoundTripsThroughNormalizer(t *testing.T) {
	s := openSale(t, 27, 180)
	s, err := ledger.AppendPayment(s, ledger.Payment{Date: day(2025, 3, 9), Amount: dzd(860), Type: ledger.PaymentVirement})
	require.NoError(t, err)

	back, err := ledger.NewNormalizer(fixedTiers{}).Sale(ledger.ToSaleRecord(s))
	require.NoError(t, err)
	assert.True(t, back.RemainingAmount.Equal(s.RemainingAmount))
	assert.Equal(t, s.Payments, back.Payments)
}
