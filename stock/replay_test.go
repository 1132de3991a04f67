package stock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/stock"
)

func on(d int) time.Time {
	return time.Date(2025, time.April, d, 9, 0, 0, 0, time.UTC)
}

func mv(id string, d int, typ ledger.MovementType, qty int, dist map[ledger.FragranceID]int) ledger.StockMovement {
	return ledger.StockMovement{ID: ledger.MovementID(id), Date: on(d), Quantity: qty, Type: typ, FragranceDistribution: dist}
}

func TestReplay_AddThenRemove(t *testing.T) {
	// GIVEN: 5 lavande added, 3 removed
	movements := []ledger.StockMovement{
		mv("m1", 1, ledger.MovementAdded, 5, map[ledger.FragranceID]int{"A": 5}),
		mv("m2", 2, ledger.MovementRemoved, 3, map[ledger.FragranceID]int{"A": 3}),
	}

	// THEN: both folds agree on 2
	assert.Equal(t, 2, stock.ReplayAggregateStock(movements))
	assert.Equal(t, map[ledger.FragranceID]int{"A": 2}, stock.ReplayFragranceStock(movements))
	assert.Nil(t, stock.CheckDivergence(movements))
}

func TestReplay_FragranceClampedAggregateNot(t *testing.T) {
	// GIVEN: an extra removal of 10 A
	movements := []ledger.StockMovement{
		mv("m1", 1, ledger.MovementAdded, 5, map[ledger.FragranceID]int{"A": 5}),
		mv("m2", 2, ledger.MovementRemoved, 3, map[ledger.FragranceID]int{"A": 3}),
		mv("m3", 3, ledger.MovementRemoved, 10, map[ledger.FragranceID]int{"A": 10}),
	}

	// THEN: A clamps at zero, the aggregate goes negative
	assert.Equal(t, map[ledger.FragranceID]int{"A": 0}, stock.ReplayFragranceStock(movements))
	assert.Equal(t, -8, stock.ReplayAggregateStock(movements))

	div := stock.CheckDivergence(movements)
	require.NotNil(t, div)
	assert.Equal(t, []ledger.FragranceID{"A"}, div.Negative)
	assert.Zero(t, div.Difference, "unclamped folds still agree")
}

func TestReplay_AdjustedIsSigned(t *testing.T) {
	movements := []ledger.StockMovement{
		mv("m1", 1, ledger.MovementAdded, 10, nil),
		mv("m2", 2, ledger.MovementAdjusted, -4, nil),
		mv("m3", 3, ledger.MovementAdjusted, 1, nil),
	}
	assert.Equal(t, 7, stock.ReplayAggregateStock(movements))
	assert.Empty(t, stock.ReplayFragranceStock(movements), "undistributed movements leave fragrances untouched")
}

func TestReplay_UsesDateOrderNotInputOrder(t *testing.T) {
	// Removal recorded before the reception it depends on
	movements := []ledger.StockMovement{
		mv("late", 5, ledger.MovementRemoved, 4, map[ledger.FragranceID]int{"A": 4}),
		mv("early", 1, ledger.MovementAdded, 4, map[ledger.FragranceID]int{"A": 4}),
	}
	assert.Equal(t, map[ledger.FragranceID]int{"A": 0}, stock.ReplayFragranceStock(movements))
	assert.Nil(t, stock.CheckDivergence(movements), "no intermediate negative once sorted")

	// Input is not reordered
	assert.Equal(t, ledger.MovementID("late"), movements[0].ID)
}

func TestReplay_Empty(t *testing.T) {
	assert.Zero(t, stock.ReplayAggregateStock(nil))
	assert.Empty(t, stock.ReplayFragranceStock(nil))
	assert.Nil(t, stock.CheckDivergence(nil))
	assert.Empty(t, stock.History(nil))
}

func TestCheckDivergence_ReportsUndistributedAndMismatched(t *testing.T) {
	movements := []ledger.StockMovement{
		mv("m1", 1, ledger.MovementAdded, 20, map[ledger.FragranceID]int{"A": 10, "B": 10}),
		mv("m2", 2, ledger.MovementAdded, 8, nil),
		mv("m3", 3, ledger.MovementRemoved, 6, map[ledger.FragranceID]int{"A": 4}),
	}

	div := stock.CheckDivergence(movements)
	require.NotNil(t, div)
	assert.Equal(t, 22, div.Aggregate)
	assert.Equal(t, 16, div.FragranceTotal)
	assert.Equal(t, 6, div.Difference)
	assert.Equal(t, []ledger.MovementID{"m2"}, div.Undistributed)
	assert.Equal(t, []ledger.MovementID{"m3"}, div.Mismatched)
	assert.Empty(t, div.Negative)
}

func TestHistory_RunningBalance(t *testing.T) {
	movements := []ledger.StockMovement{
		mv("m2", 2, ledger.MovementRemoved, 3, nil),
		mv("m1", 1, ledger.MovementAdded, 10, nil),
		mv("m3", 2, ledger.MovementAdjusted, -1, nil),
	}

	lines := stock.History(movements)

	require.Len(t, lines, 3)
	assert.Equal(t, ledger.MovementID("m1"), lines[0].Movement.ID)
	assert.Equal(t, 10, lines[0].Balance)
	assert.Equal(t, ledger.MovementID("m2"), lines[1].Movement.ID, "same-day ties keep input order")
	assert.Equal(t, -3, lines[1].Delta)
	assert.Equal(t, 7, lines[1].Balance)
	assert.Equal(t, 6, lines[2].Balance)
}

func TestReplay_IdempotentAndLeavesInputUntouched(t *testing.T) {
	// GIVEN: movements out of date order, one undistributed and one overdrawn
	movements := []ledger.StockMovement{
		mv("m3", 3, ledger.MovementRemoved, 6, map[ledger.FragranceID]int{"A": 6, "B": 2}),
		mv("m1", 1, ledger.MovementAdded, 10, map[ledger.FragranceID]int{"A": 4, "B": 6}),
		mv("m4", 2, ledger.MovementAdjusted, -1, nil),
		mv("m2", 2, ledger.MovementAdded, 5, nil),
	}
	before := make([]ledger.StockMovement, len(movements))
	for i, m := range movements {
		before[i] = m
		if m.FragranceDistribution != nil {
			before[i].FragranceDistribution = make(map[ledger.FragranceID]int, len(m.FragranceDistribution))
			for k, v := range m.FragranceDistribution {
				before[i].FragranceDistribution[k] = v
			}
		}
	}

	// WHEN: every fold runs twice on the same slice
	agg1, agg2 := stock.ReplayAggregateStock(movements), stock.ReplayAggregateStock(movements)
	frag1, frag2 := stock.ReplayFragranceStock(movements), stock.ReplayFragranceStock(movements)
	div1, div2 := stock.CheckDivergence(movements), stock.CheckDivergence(movements)
	hist1, hist2 := stock.History(movements), stock.History(movements)

	// THEN: identical results, and the caller's slice keeps its order and counts
	assert.Equal(t, 8, agg1)
	assert.Equal(t, agg1, agg2)
	assert.Equal(t, map[ledger.FragranceID]int{"A": 0, "B": 4}, frag1)
	assert.Equal(t, frag1, frag2)
	require.NotNil(t, div1)
	assert.Equal(t, div1, div2)
	assert.Equal(t, hist1, hist2)
	assert.Equal(t, before, movements)
}
