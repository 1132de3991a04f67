/*
Package receivables classifies and totals outstanding sale balances.

PURPOSE:
  Answers three questions over one snapshot of sales:
    1. How old is the oldest unpaid delivery? (aging bucket)
    2. May collected money be remitted to the supplier? (supplier return)
    3. What does each supermarket still owe? (outstanding)

AGING BUCKETS:
  Elapsed months = (now - oldest unpaid date) / 30.44 days, then:

    elapsed > 6  -> "6+ mois"
    elapsed > 4  -> "4-6 mois"
    elapsed > 2  -> "2-4 mois"
    otherwise    -> "1-2 mois"

  Comparisons are strict, so a boundary value falls into the lower bucket:
  exactly 2.0 months is "1-2 mois".

PURITY:
  Every function takes plain slices and an explicit "now", never mutates
  its input and returns identical output for identical input.
*/
package receivables

import (
	"math"
	"time"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// DaysPerMonth is the average month length used for aging.
const DaysPerMonth = 30.44

type Bucket string

const (
	BucketCurrentMonth Bucket = "mois en cours" // No unpaid sales
	BucketUpTo2        Bucket = "1-2 mois"
	Bucket2To4         Bucket = "2-4 mois"
	Bucket4To6         Bucket = "4-6 mois"
	BucketOver6        Bucket = "6+ mois"
)

// AgingPeriod describes the oldest outstanding receivable.
//
// MonthsBack is the reporting horizon the bucket asks for: 2, 4 or 6 for
// the bounded buckets and the elapsed months rounded up beyond that. It is
// 0 when nothing is unpaid.
type AgingPeriod struct {
	Bucket           Bucket
	MonthsBack       int
	ElapsedMonths    float64
	OldestUnpaidDate *time.Time
	HasUnpaid        bool
}

// ComputeAgingPeriod buckets the oldest unpaid sale. Empty input is valid.
func ComputeAgingPeriod(sales []ledger.Sale, now time.Time) AgingPeriod {
	var oldest *time.Time
	for i := range sales {
		if sales[i].IsPaid {
			continue
		}
		d := sales[i].Date
		if oldest == nil || d.Before(*oldest) {
			oldest = &d
		}
	}

	if oldest == nil {
		return AgingPeriod{Bucket: BucketCurrentMonth}
	}

	elapsed := ElapsedMonths(*oldest, now)
	bucket, monthsBack := bucketFor(elapsed)
	return AgingPeriod{
		Bucket:           bucket,
		MonthsBack:       monthsBack,
		ElapsedMonths:    elapsed,
		OldestUnpaidDate: oldest,
		HasUnpaid:        true,
	}
}

// ElapsedMonths converts the span from..now into average-length months.
func ElapsedMonths(from, now time.Time) float64 {
	return now.Sub(from).Hours() / 24 / DaysPerMonth
}

func bucketFor(elapsed float64) (Bucket, int) {
	switch {
	case elapsed > 6:
		return BucketOver6, int(math.Ceil(elapsed))
	case elapsed > 4:
		return Bucket4To6, 6
	case elapsed > 2:
		return Bucket2To4, 4
	default:
		return BucketUpTo2, 2
	}
}
