/*
Package stock derives current carton stock by replaying the movement ledger.

PURPOSE:
  Stock is never stored as a mutable counter. It is computed by folding
  the append-only movement history in chronological order, the same way a
  balance is computed by replaying transactions.

SIGN RULE:
  added    -> balance + quantity
  removed  -> balance - quantity
  adjusted -> balance + quantity (quantity is signed)

ORDERING:
  Movements are stable-sorted by Date. Movements sharing a Date keep the
  order in which they appear in the input slice.

AGGREGATE vs PER-FRAGRANCE:
  The aggregate folds every movement and is NOT clamped; it may go
  negative. The per-fragrance fold only sees movements that carry a
  fragrance distribution, and each final value is clamped at zero. The two
  can therefore disagree. CheckDivergence reports the gap; nothing here
  reconciles it.
*/
package stock

import (
	"sort"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// chronological returns a date-ordered copy; the input is not reordered.
func chronological(movements []ledger.StockMovement) []ledger.StockMovement {
	out := make([]ledger.StockMovement, len(movements))
	copy(out, movements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// ReplayAggregateStock returns total cartons on hand. Not clamped.
func ReplayAggregateStock(movements []ledger.StockMovement) int {
	balance := 0
	for _, m := range chronological(movements) {
		balance = m.Type.Apply(balance, m.Quantity)
	}
	return balance
}

// ReplayFragranceStock returns cartons per fragrance, clamped at zero.
// Movements without a distribution contribute nothing.
func ReplayFragranceStock(movements []ledger.StockMovement) map[ledger.FragranceID]int {
	levels := replayFragrances(movements)
	for id, qty := range levels {
		if qty < 0 {
			levels[id] = 0
		}
	}
	return levels
}

func replayFragrances(movements []ledger.StockMovement) map[ledger.FragranceID]int {
	levels := make(map[ledger.FragranceID]int)
	for _, m := range chronological(movements) {
		for id, qty := range m.FragranceDistribution {
			levels[id] = m.Type.Apply(levels[id], qty)
		}
	}
	return levels
}

// =============================================================================
// DIVERGENCE - Aggregate vs per-fragrance diagnostic
// =============================================================================

// Divergence describes why aggregate and per-fragrance totals disagree.
type Divergence struct {
	Aggregate      int
	FragranceTotal int // sum of unclamped per-fragrance balances
	Difference     int // Aggregate - FragranceTotal

	// Undistributed lists movements that moved stock without attributing it.
	Undistributed []ledger.MovementID

	// Mismatched lists movements whose distribution does not sum to Quantity.
	Mismatched []ledger.MovementID

	// Negative lists fragrances whose unclamped balance went below zero.
	Negative []ledger.FragranceID
}

// CheckDivergence returns nil when both folds agree and every movement is
// fully attributed.
func CheckDivergence(movements []ledger.StockMovement) *Divergence {
	d := &Divergence{Aggregate: ReplayAggregateStock(movements)}

	levels := replayFragrances(movements)
	for id, qty := range levels {
		d.FragranceTotal += qty
		if qty < 0 {
			d.Negative = append(d.Negative, id)
		}
	}
	sort.Slice(d.Negative, func(i, j int) bool { return d.Negative[i] < d.Negative[j] })
	d.Difference = d.Aggregate - d.FragranceTotal

	for _, m := range chronological(movements) {
		if len(m.FragranceDistribution) == 0 {
			if m.Quantity != 0 {
				d.Undistributed = append(d.Undistributed, m.ID)
			}
			continue
		}
		sum := 0
		for _, qty := range m.FragranceDistribution {
			sum += qty
		}
		if sum != m.Quantity {
			d.Mismatched = append(d.Mismatched, m.ID)
		}
	}

	if d.Difference == 0 && len(d.Undistributed) == 0 && len(d.Mismatched) == 0 && len(d.Negative) == 0 {
		return nil
	}
	return d
}

// =============================================================================
// HISTORY - Running balance after each movement
// =============================================================================

type HistoryLine struct {
	Movement ledger.StockMovement
	Delta    int
	Balance  int
}

// History returns the replay order with the aggregate balance after each step.
func History(movements []ledger.StockMovement) []HistoryLine {
	ordered := chronological(movements)
	lines := make([]HistoryLine, 0, len(ordered))
	balance := 0
	for _, m := range ordered {
		next := m.Type.Apply(balance, m.Quantity)
		lines = append(lines, HistoryLine{Movement: m, Delta: next - balance, Balance: next})
		balance = next
	}
	return lines
}
