/*
Package factory provides JSON to Go price-tier conversion.

PURPOSE:
  Converts a JSON price-tier definition into a profitability.TierTable so
  a new price, margin or supplier cost can be introduced by editing a
  configuration file instead of the engine code.

JSON SCHEMA:
  {
    "tiers": [
      {"id": "standard",  "label": "Prix standard", "price": "180", "margin": "25", "supplier_cost": "155"},
      {"id": "wholesale", "label": "Prix gros",     "price": "166", "margin": "17", "supplier_cost": "149"}
    ]
  }

  Amounts may be JSON strings or numbers (decimal.Decimal accepts both).

USAGE:
  f := factory.NewTierFactory()
  table, err := f.ParseTiers(jsonString)
  engine := profitability.NewEngine(table)

SEE ALSO:
  - profitability/tiers.go: TierTable
  - config/config.go: TIER_CONFIG points at a JSON file
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/profitability"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type TierTableJSON struct {
	Tiers []TierJSON `json:"tiers"`
}

type TierJSON struct {
	ID           string          `json:"id"`
	Label        string          `json:"label,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Margin       decimal.Decimal `json:"margin"`
	SupplierCost decimal.Decimal `json:"supplier_cost"`
}

// =============================================================================
// TIER FACTORY
// =============================================================================

type TierFactory struct{}

func NewTierFactory() *TierFactory {
	return &TierFactory{}
}

// ParseTiers parses a JSON string into a TierTable.
func (f *TierFactory) ParseTiers(jsonStr string) (*profitability.TierTable, error) {
	var tj TierTableJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return nil, fmt.Errorf("failed to parse tier JSON: %w", err)
	}
	return f.FromJSON(tj)
}

// LoadFile reads a tier table from disk. An empty path yields the defaults.
func (f *TierFactory) LoadFile(path string) (*profitability.TierTable, error) {
	if path == "" {
		return profitability.DefaultTierTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier config %s: %w", path, err)
	}
	return f.ParseTiers(string(data))
}

// FromJSON converts TierTableJSON to a TierTable.
func (f *TierFactory) FromJSON(tj TierTableJSON) (*profitability.TierTable, error) {
	if len(tj.Tiers) == 0 {
		return nil, fmt.Errorf("tier table has no tiers: %w", ledger.ErrValidation)
	}

	rates := make([]profitability.TierRates, 0, len(tj.Tiers))
	for _, t := range tj.Tiers {
		if t.Margin.IsNegative() || t.SupplierCost.IsNegative() {
			return nil, fmt.Errorf("price tier %s: negative margin or cost: %w", t.ID, ledger.ErrValidation)
		}
		label := t.Label
		if label == "" {
			label = t.ID
		}
		rates = append(rates, profitability.TierRates{
			Tier:         ledger.PriceTier(t.ID),
			Label:        label,
			Price:        t.Price,
			Margin:       t.Margin,
			SupplierCost: t.SupplierCost,
		})
	}
	return profitability.NewTierTable(rates...)
}

// ToJSON renders a table back to its JSON schema (used by the API).
func ToJSON(t *profitability.TierTable) TierTableJSON {
	out := TierTableJSON{}
	for _, r := range t.Tiers() {
		out.Tiers = append(out.Tiers, TierJSON{
			ID:           string(r.Tier),
			Label:        r.Label,
			Price:        r.Price,
			Margin:       r.Margin,
			SupplierCost: r.SupplierCost,
		})
	}
	return out
}

// DefaultTiersJSON returns the built-in table as JSON.
func DefaultTiersJSON() string {
	data, _ := json.MarshalIndent(ToJSON(profitability.DefaultTierTable()), "", "  ")
	return string(data)
}
