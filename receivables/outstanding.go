package receivables

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// SupermarketBalance is what one supermarket still owes.
type SupermarketBalance struct {
	SupermarketID    ledger.SupermarketID
	Outstanding      decimal.Decimal
	Collected        decimal.Decimal // collected so far on the open sales
	UnpaidCount      int
	OverdueCount     int
	OldestUnpaidDate time.Time
	Bucket           Bucket
}

// Outstanding groups open sales by supermarket, largest balance first.
// Supermarkets with nothing open are omitted.
func Outstanding(sales []ledger.Sale, now time.Time) []SupermarketBalance {
	bySM := make(map[ledger.SupermarketID]*SupermarketBalance)

	for _, s := range sales {
		if s.IsPaid {
			continue
		}
		b, ok := bySM[s.SupermarketID]
		if !ok {
			b = &SupermarketBalance{
				SupermarketID:    s.SupermarketID,
				Outstanding:      decimal.Zero,
				Collected:        decimal.Zero,
				OldestUnpaidDate: s.Date,
			}
			bySM[s.SupermarketID] = b
		}
		b.Outstanding = b.Outstanding.Add(s.RemainingAmount)
		b.Collected = b.Collected.Add(s.Collected())
		b.UnpaidCount++
		if s.IsOverdue(now) {
			b.OverdueCount++
		}
		if s.Date.Before(b.OldestUnpaidDate) {
			b.OldestUnpaidDate = s.Date
		}
	}

	result := make([]SupermarketBalance, 0, len(bySM))
	for _, b := range bySM {
		b.Bucket, _ = bucketFor(ElapsedMonths(b.OldestUnpaidDate, now))
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		if c := result[i].Outstanding.Cmp(result[j].Outstanding); c != 0 {
			return c > 0
		}
		return result[i].SupermarketID < result[j].SupermarketID
	})
	return result
}
