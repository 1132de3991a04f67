/*
Package profitability computes revenue, margin and supplier cost over a
reporting window.

PRICE TIERS:
  Each sale is priced at one tier. A tier carries the unit margin kept by
  the distributor and the unit cost owed to the supplier:

    tier        price   margin   supplier cost
    standard    180     25       155
    wholesale   166     17       149

  A unit price that is some tier's price selects that tier. Otherwise the
  sale's own tier (Sale.PriceTier) applies, which covers negotiated
  off-table prices. A price that matches no tier contributes
  zero margin and zero cost; such quantities are reported separately in
  PeriodResult.UnpricedQuantity rather than dropped silently.

SEE ALSO:
  - factory/tiers.go: loads a TierTable from JSON
  - period.go: ComputePeriod and the reporting window
*/
package profitability

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// TierRates is the margin/cost record attached to one price tier.
type TierRates struct {
	Tier         ledger.PriceTier
	Label        string
	Price        decimal.Decimal
	Margin       decimal.Decimal
	SupplierCost decimal.Decimal
}

// TierTable is immutable once built and safe for concurrent use.
type TierTable struct {
	byTier map[ledger.PriceTier]TierRates
	order  []ledger.PriceTier
}

// NewTierTable rejects duplicate tiers, duplicate prices and non-positive prices.
func NewTierTable(rates ...TierRates) (*TierTable, error) {
	t := &TierTable{byTier: make(map[ledger.PriceTier]TierRates, len(rates))}
	for _, r := range rates {
		if r.Tier == "" {
			return nil, fmt.Errorf("price tier without id: %w", ledger.ErrValidation)
		}
		if !r.Price.IsPositive() {
			return nil, fmt.Errorf("price tier %s: price must be positive: %w", r.Tier, ledger.ErrValidation)
		}
		if _, dup := t.byTier[r.Tier]; dup {
			return nil, fmt.Errorf("price tier %s defined twice: %w", r.Tier, ledger.ErrDuplicateID)
		}
		if other, dup := t.TierForPrice(r.Price); dup {
			return nil, fmt.Errorf("price %s used by tiers %s and %s: %w", r.Price, other, r.Tier, ledger.ErrDuplicateID)
		}
		t.byTier[r.Tier] = r
		t.order = append(t.order, r.Tier)
	}
	return t, nil
}

var defaultTiers = mustTierTable(
	TierRates{
		Tier:         ledger.TierStandard,
		Label:        "Prix standard",
		Price:        decimal.NewFromInt(180),
		Margin:       decimal.NewFromInt(25),
		SupplierCost: decimal.NewFromInt(155),
	},
	TierRates{
		Tier:         ledger.TierWholesale,
		Label:        "Prix gros",
		Price:        decimal.NewFromInt(166),
		Margin:       decimal.NewFromInt(17),
		SupplierCost: decimal.NewFromInt(149),
	},
)

func mustTierTable(rates ...TierRates) *TierTable {
	t, err := NewTierTable(rates...)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTierTable returns the built-in 180/166 table.
func DefaultTierTable() *TierTable { return defaultTiers }

func (t *TierTable) Lookup(tier ledger.PriceTier) (TierRates, bool) {
	r, ok := t.byTier[tier]
	return r, ok
}

// MarginFor returns the unit margin of a tier.
func (t *TierTable) MarginFor(tier ledger.PriceTier) (decimal.Decimal, bool) {
	r, ok := t.byTier[tier]
	return r.Margin, ok
}

// HasTier implements ledger.TierResolver.
func (t *TierTable) HasTier(tier ledger.PriceTier) bool {
	_, ok := t.byTier[tier]
	return ok
}

// TierForPrice implements ledger.TierResolver.
func (t *TierTable) TierForPrice(price decimal.Decimal) (ledger.PriceTier, bool) {
	for _, id := range t.order {
		if t.byTier[id].Price.Equal(price) {
			return id, true
		}
	}
	return "", false
}

// Tiers returns the rates in definition order.
func (t *TierTable) Tiers() []TierRates {
	out := make([]TierRates, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byTier[id])
	}
	return out
}

// RatesFor resolves a sale's rates by unit price, then by tier id for
// prices that belong to no tier. A tier label never overrides the price.
func (t *TierTable) RatesFor(s ledger.Sale) (TierRates, bool) {
	if id, ok := t.TierForPrice(s.PricePerUnit); ok {
		return t.byTier[id], true
	}
	if r, ok := t.byTier[s.PriceTier]; ok && s.PriceTier != "" {
		return r, true
	}
	return TierRates{}, false
}

// MarginPerUnit looks up the default table by price. Unknown prices yield zero.
func MarginPerUnit(price decimal.Decimal) decimal.Decimal {
	if id, ok := defaultTiers.TierForPrice(price); ok {
		return defaultTiers.byTier[id].Margin
	}
	return decimal.Zero
}

// SupplierCostPerUnit looks up the default table by price. Unknown prices yield zero.
func SupplierCostPerUnit(price decimal.Decimal) decimal.Decimal {
	if id, ok := defaultTiers.TierForPrice(price); ok {
		return defaultTiers.byTier[id].SupplierCost
	}
	return decimal.Zero
}
