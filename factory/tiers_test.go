package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savon-distrib/ledger-engine/factory"
	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/profitability"
)

func TestParseTiers_StringsAndNumbers(t *testing.T) {
	// GIVEN: a promotional tier added next to the standard one
	table, err := factory.NewTierFactory().ParseTiers(`{
		"tiers": [
			{"id": "standard", "label": "Prix standard", "price": "180", "margin": "25", "supplier_cost": "155"},
			{"id": "promo", "price": 160, "margin": 11.5, "supplier_cost": 148.5}
		]
	}`)
	require.NoError(t, err)

	// THEN: both tiers resolve by id and by price
	rates, ok := table.Lookup("promo")
	require.True(t, ok)
	assert.Equal(t, "promo", rates.Label, "label defaults to id")
	assert.True(t, rates.Margin.Equal(decimal.RequireFromString("11.5")))

	tier, ok := table.TierForPrice(decimal.NewFromInt(160))
	require.True(t, ok)
	assert.Equal(t, ledger.PriceTier("promo"), tier)

	engine := profitability.NewEngine(table)
	assert.Len(t, engine.Tiers.Tiers(), 2)
}

func TestParseTiers_Rejects(t *testing.T) {
	f := factory.NewTierFactory()

	_, err := f.ParseTiers(`{not json`)
	assert.ErrorContains(t, err, "failed to parse tier JSON")

	_, err = f.ParseTiers(`{"tiers": []}`)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = f.ParseTiers(`{"tiers": [{"id": "x", "price": "100", "margin": "-1", "supplier_cost": "101"}]}`)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = f.ParseTiers(`{"tiers": [{"id": "x", "margin": "1", "supplier_cost": "1"}]}`)
	assert.ErrorIs(t, err, ledger.ErrValidation, "missing price")
}

func TestLoadFile(t *testing.T) {
	f := factory.NewTierFactory()

	table, err := f.LoadFile("")
	require.NoError(t, err)
	assert.Same(t, profitability.DefaultTierTable(), table)

	path := filepath.Join(t.TempDir(), "tiers.json")
	require.NoError(t, os.WriteFile(path, []byte(factory.DefaultTiersJSON()), 0o600))
	loaded, err := f.LoadFile(path)
	require.NoError(t, err)
	for _, want := range profitability.DefaultTierTable().Tiers() {
		got, ok := loaded.Lookup(want.Tier)
		require.True(t, ok, want.Tier)
		assert.Equal(t, want.Label, got.Label)
		assert.True(t, want.Price.Equal(got.Price))
		assert.True(t, want.Margin.Equal(got.Margin))
		assert.True(t, want.SupplierCost.Equal(got.SupplierCost))
	}

	_, err = f.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
