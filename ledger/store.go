/*
store.go - Contracts with the persistence collaborator

PURPOSE:
  The engines never touch storage. A caller loads one Snapshot through the
  Loader, runs any subset of the engines over it, and discards it. The
  Store adds the write side used by the API: creating sales, appending
  payments and movements, and managing reference data and orders.

APPEND-ONLY CONTRACT:
  - Payments: AppendPayment only. No Update.
  - Stock movements: AppendMovement only. No Update, no Delete.
  - Sales: DeleteSale exists for explicit user action and removes the
    sale's payments with it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - ledger/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - normalize.go: stored records are normalized before reaching engines
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// LOADER - Read contract (one snapshot per computation cycle)
// =============================================================================

// Loader supplies the collections the engines read. Ordering of the
// returned slices is not significant; engines sort where they need to.
type Loader interface {
	// LoadSales returns every sale with its payments fully populated.
	LoadSales(ctx context.Context) ([]Sale, error)

	// LoadStockMovements returns every movement with its distribution.
	LoadStockMovements(ctx context.Context) ([]StockMovement, error)

	LoadSupermarkets(ctx context.Context) ([]Supermarket, error)
	LoadFragrances(ctx context.Context) ([]Fragrance, error)
}

// LoadSnapshot fetches all collections once.
func LoadSnapshot(ctx context.Context, l Loader) (Snapshot, error) {
	sales, err := l.LoadSales(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	movements, err := l.LoadStockMovements(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	supermarkets, err := l.LoadSupermarkets(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	fragrances, err := l.LoadFragrances(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Sales:        sales,
		Movements:    movements,
		Supermarkets: supermarkets,
		Fragrances:   fragrances,
	}, nil
}

// =============================================================================
// STORE - Write side
// =============================================================================

type Store interface {
	Loader

	// Reference data
	SaveSupermarket(ctx context.Context, s Supermarket) error
	GetSupermarket(ctx context.Context, id SupermarketID) (Supermarket, error)
	SaveFragrance(ctx context.Context, f Fragrance) error

	// Sales. CreateSale writes the sale and its payments atomically and
	// returns ErrDuplicateID if the ID exists. RecordDelivery does the same
	// and appends the delivery's movement in the same step.
	CreateSale(ctx context.Context, s Sale) error
	RecordDelivery(ctx context.Context, d Delivery) error
	GetSale(ctx context.Context, id SaleID) (Sale, error)
	DeleteSale(ctx context.Context, id SaleID) error

	// AppendPayment applies the ledger payment rule to the stored sale and
	// persists the result atomically. Returns the updated sale.
	AppendPayment(ctx context.Context, id SaleID, p Payment) (Sale, error)

	// Stock
	AppendMovement(ctx context.Context, m StockMovement) error
	SaveFragranceStock(ctx context.Context, levels map[FragranceID]int, at time.Time) error
	LoadFragranceStock(ctx context.Context) (map[FragranceID]int, error)

	// Orders
	SaveOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id OrderID) (Order, error)
	ListOrders(ctx context.Context, status OrderStatus) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id OrderID, status OrderStatus) error

	// CommitConversion records the delivery and deletes the order in one
	// step. Returns ErrOrderNotPending if the order was closed meanwhile.
	CommitConversion(ctx context.Context, id OrderID, d Delivery) error

	// Reminders. SaveReminder returns ErrDuplicateID when Key exists.
	SaveReminder(ctx context.Context, r Reminder) error
	ListReminders(ctx context.Context) ([]Reminder, error)

	// Reset removes every record (demo scenarios only).
	Reset(ctx context.Context) error
}
