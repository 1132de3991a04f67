package receivables

import (
	"github.com/shopspring/decimal"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// SupplierReturn says whether collected money may be remitted upstream.
//
// TotalPaid only counts closed sales: the collected part of a sale that is
// still open is excluded. CanReturn is all-or-nothing; one unpaid sale
// anywhere blocks the return.
type SupplierReturn struct {
	TotalUnpaid  decimal.Decimal
	TotalPaid    decimal.Decimal
	CanReturn    bool
	ReturnAmount decimal.Decimal
	UnpaidCount  int
	PaidCount    int
}

func ComputeSupplierReturn(sales []ledger.Sale) SupplierReturn {
	r := SupplierReturn{
		TotalUnpaid:  decimal.Zero,
		TotalPaid:    decimal.Zero,
		ReturnAmount: decimal.Zero,
	}

	for _, s := range sales {
		if s.IsPaid {
			r.TotalPaid = r.TotalPaid.Add(s.Collected())
			r.PaidCount++
			continue
		}
		r.TotalUnpaid = r.TotalUnpaid.Add(s.RemainingAmount)
		r.UnpaidCount++
	}

	r.CanReturn = r.UnpaidCount == 0
	if r.CanReturn {
		r.ReturnAmount = r.TotalPaid
	}
	return r
}
