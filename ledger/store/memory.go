// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/savon-distrib/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	supermarkets map[ledger.SupermarketID]ledger.Supermarket
	fragrances   map[ledger.FragranceID]ledger.Fragrance
	sales        map[ledger.SaleID]ledger.Sale
	saleOrder    []ledger.SaleID
	movements    []ledger.StockMovement // kept sorted by Date, ties in append order
	fragStock    map[ledger.FragranceID]int
	orders       map[ledger.OrderID]ledger.Order
	reminders    []ledger.Reminder
	reminderKeys map[string]bool
}

var _ ledger.Store = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.supermarkets = make(map[ledger.SupermarketID]ledger.Supermarket)
	m.fragrances = make(map[ledger.FragranceID]ledger.Fragrance)
	m.sales = make(map[ledger.SaleID]ledger.Sale)
	m.saleOrder = nil
	m.movements = nil
	m.fragStock = make(map[ledger.FragranceID]int)
	m.orders = make(map[ledger.OrderID]ledger.Order)
	m.reminders = nil
	m.reminderKeys = make(map[string]bool)
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// =============================================================================
// LOADER
// =============================================================================

func (m *Memory) LoadSales(_ context.Context) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Sale, 0, len(m.saleOrder))
	for _, id := range m.saleOrder {
		result = append(result, cloneSale(m.sales[id]))
	}
	return result, nil
}

func (m *Memory) LoadStockMovements(_ context.Context) ([]ledger.StockMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.StockMovement, len(m.movements))
	for i, mv := range m.movements {
		result[i] = cloneMovement(mv)
	}
	return result, nil
}

func (m *Memory) LoadSupermarkets(_ context.Context) ([]ledger.Supermarket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Supermarket, 0, len(m.supermarkets))
	for _, s := range m.supermarkets {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) LoadFragrances(_ context.Context) ([]ledger.Fragrance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Fragrance, 0, len(m.fragrances))
	for _, f := range m.fragrances {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (m *Memory) SaveSupermarket(_ context.Context, s ledger.Supermarket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supermarkets[s.ID] = s
	return nil
}

func (m *Memory) GetSupermarket(_ context.Context, id ledger.SupermarketID) (ledger.Supermarket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.supermarkets[id]
	if !ok {
		return ledger.Supermarket{}, ledger.ErrNotFound
	}
	return s, nil
}

func (m *Memory) SaveFragrance(_ context.Context, f ledger.Fragrance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fragrances[f.ID] = f
	return nil
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) CreateSale(_ context.Context, s ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSaleLocked(s)
}

func (m *Memory) createSaleLocked(s ledger.Sale) error {
	if _, exists := m.sales[s.ID]; exists {
		return ledger.ErrDuplicateID
	}
	m.sales[s.ID] = cloneSale(s)
	m.saleOrder = append(m.saleOrder, s.ID)
	return nil
}

func (m *Memory) RecordDelivery(_ context.Context, d ledger.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDeliveryLocked(d); err != nil {
		return err
	}
	m.recordDeliveryLocked(d)
	return nil
}

func (m *Memory) checkDeliveryLocked(d ledger.Delivery) error {
	if _, exists := m.sales[d.Sale.ID]; exists {
		return ledger.ErrDuplicateID
	}
	if d.Movement != nil && m.hasMovementLocked(d.Movement.ID) {
		return ledger.ErrDuplicateID
	}
	return nil
}

// recordDeliveryLocked assumes checkDeliveryLocked passed.
func (m *Memory) recordDeliveryLocked(d ledger.Delivery) {
	_ = m.createSaleLocked(d.Sale)
	if d.Movement != nil {
		_ = m.appendMovementLocked(*d.Movement)
	}
}

func (m *Memory) GetSale(_ context.Context, id ledger.SaleID) (ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[id]
	if !ok {
		return ledger.Sale{}, ledger.ErrNotFound
	}
	return cloneSale(s), nil
}

func (m *Memory) DeleteSale(_ context.Context, id ledger.SaleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.sales, id)
	for i, sid := range m.saleOrder {
		if sid == id {
			m.saleOrder = append(m.saleOrder[:i], m.saleOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) AppendPayment(_ context.Context, id ledger.SaleID, p ledger.Payment) (ledger.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sales[id]
	if !ok {
		return ledger.Sale{}, ledger.ErrNotFound
	}
	updated, err := ledger.AppendPayment(s, p)
	if err != nil {
		return ledger.Sale{}, err
	}
	m.sales[id] = updated
	return cloneSale(updated), nil
}

// =============================================================================
// STOCK
// =============================================================================

func (m *Memory) AppendMovement(_ context.Context, mv ledger.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendMovementLocked(mv)
}

func (m *Memory) appendMovementLocked(mv ledger.StockMovement) error {
	if m.hasMovementLocked(mv.ID) {
		return ledger.ErrDuplicateID
	}

	// Insert after every movement with Date <= mv.Date so ties keep ledger order.
	i := sort.Search(len(m.movements), func(i int) bool {
		return m.movements[i].Date.After(mv.Date)
	})
	m.movements = append(m.movements, ledger.StockMovement{})
	copy(m.movements[i+1:], m.movements[i:])
	m.movements[i] = cloneMovement(mv)
	return nil
}

func (m *Memory) hasMovementLocked(id ledger.MovementID) bool {
	for _, existing := range m.movements {
		if existing.ID == id {
			return true
		}
	}
	return false
}

func (m *Memory) SaveFragranceStock(_ context.Context, levels map[ledger.FragranceID]int, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fragStock = make(map[ledger.FragranceID]int, len(levels))
	for k, v := range levels {
		m.fragStock[k] = v
	}
	return nil
}

func (m *Memory) LoadFragranceStock(_ context.Context) (map[ledger.FragranceID]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[ledger.FragranceID]int, len(m.fragStock))
	for k, v := range m.fragStock {
		result[k] = v
	}
	return result, nil
}

// =============================================================================
// ORDERS
// =============================================================================

func (m *Memory) SaveOrder(_ context.Context, o ledger.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id ledger.OrderID) (ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return ledger.Order{}, ledger.ErrNotFound
	}
	return cloneOrder(o), nil
}

// ListOrders returns orders by scheduled date. An empty status lists all.
func (m *Memory) ListOrders(_ context.Context, status ledger.OrderStatus) ([]ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			result = append(result, cloneOrder(o))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ScheduledDate.Equal(result[j].ScheduledDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].ScheduledDate.Before(result[j].ScheduledDate)
	})
	return result, nil
}

func (m *Memory) UpdateOrderStatus(_ context.Context, id ledger.OrderID, status ledger.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if !ledger.CanTransition(o.Status, status) {
		return ledger.ErrOrderNotPending
	}
	o.Status = status
	m.orders[id] = o
	return nil
}

func (m *Memory) CommitConversion(_ context.Context, id ledger.OrderID, d ledger.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if o.Status != ledger.OrderPending {
		return ledger.ErrOrderNotPending
	}
	if err := m.checkDeliveryLocked(d); err != nil {
		return err
	}
	m.recordDeliveryLocked(d)
	delete(m.orders, id)
	return nil
}

// =============================================================================
// REMINDERS
// =============================================================================

func (m *Memory) SaveReminder(_ context.Context, r ledger.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reminderKeys[r.Key] {
		return ledger.ErrDuplicateID
	}
	m.reminderKeys[r.Key] = true
	m.reminders = append(m.reminders, r)
	return nil
}

func (m *Memory) ListReminders(_ context.Context) ([]ledger.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.Reminder, len(m.reminders))
	copy(result, m.reminders)
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// =============================================================================
// COPY HELPERS
// =============================================================================

func cloneSale(s ledger.Sale) ledger.Sale {
	if s.Payments != nil {
		s.Payments = append([]ledger.Payment(nil), s.Payments...)
	}
	return s
}

func cloneMovement(mv ledger.StockMovement) ledger.StockMovement {
	mv.FragranceDistribution = cloneDist(mv.FragranceDistribution)
	return mv
}

func cloneOrder(o ledger.Order) ledger.Order {
	o.FragranceDistribution = cloneDist(o.FragranceDistribution)
	return o
}

func cloneDist(d map[ledger.FragranceID]int) map[ledger.FragranceID]int {
	if d == nil {
		return nil
	}
	out := make(map[ledger.FragranceID]int, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
