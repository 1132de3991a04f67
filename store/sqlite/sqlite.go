/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Persists supermarkets, fragrances, sales with their payments, the stock
  movement history, scheduled orders and reminders. The engines never see
  this package: callers load a ledger.Snapshot and hand it over.

APPEND-ONLY ENFORCEMENT:
  - payments:      INSERT only. The sale row's derived columns are
                   rewritten from the ledger payment rule in the same
                   transaction.
  - stock_history: INSERT only. No UPDATE, no DELETE (except Reset).
  - sales:         DELETE only through DeleteSale, which removes the
                   sale's payments with it.

DERIVED COLUMNS:
  sales.total_value, remaining_amount, is_paid and payment_date are kept
  for ad-hoc SQL inspection only. LoadSales ignores them and rebuilds
  every sale through ledger.Normalizer from its base columns and payments.

KEY TABLES:
  sales, payments:   Deliveries and their settlements
  stock_history:     Immutable carton movements (distribution as JSON)
  fragrance_stock:   Last persisted per-fragrance levels
  orders:            Scheduled deliveries awaiting conversion
  reminders:         Recorded reminders, unique per key

TIME STORAGE:
  All times are stored in UTC with a fixed-width layout so that text
  ordering matches chronological ordering.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  snap, err := ledger.LoadSnapshot(ctx, store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/savon-distrib/ledger-engine/ledger"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements ledger.Store using SQLite.
type Store struct {
	db         *sql.DB
	mu         sync.RWMutex
	normalizer *ledger.Normalizer
}

var _ ledger.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTierResolver resolves the price tier of stored sales that have none.
func WithTierResolver(tiers ledger.TierResolver) Option {
	return func(s *Store) {
		s.normalizer = ledger.NewNormalizer(tiers)
	}
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, normalizer: ledger.NewNormalizer(nil)}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS supermarkets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT,
		latitude REAL,
		longitude REAL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fragrances (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT
	);

	-- Sales (derived columns are informational, see LoadSales)
	CREATE TABLE IF NOT EXISTS sales (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		date TEXT NOT NULL,
		supermarket_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		cartons INTEGER NOT NULL,
		price_per_unit TEXT NOT NULL,
		price_tier TEXT,
		total_value TEXT NOT NULL,
		remaining_amount TEXT NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		payment_date TEXT,
		expected_payment_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_supermarket
		ON sales(supermarket_id);
	CREATE INDEX IF NOT EXISTS idx_sales_unpaid
		ON sales(date) WHERE is_paid = FALSE;

	-- Payments (append-only, ordered by seq within a sale)
	CREATE TABLE IF NOT EXISTS payments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT,
		type TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_sale
		ON payments(sale_id, seq);

	-- Stock movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS stock_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		date TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		type TEXT NOT NULL,
		reason TEXT,
		distribution_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_history_date
		ON stock_history(date, seq);

	CREATE TABLE IF NOT EXISTS fragrance_stock (
		fragrance_id TEXT PRIMARY KEY,
		quantity INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		supermarket_id TEXT NOT NULL,
		scheduled_date TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price_per_unit TEXT NOT NULL,
		price_tier TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT,
		distribution_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status
		ON orders(status, scheduled_date);

	-- Reminders (one per key; the scheduler relies on the unique index)
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		supermarket_id TEXT,
		message TEXT NOT NULL,
		due_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Store) SaveSupermarket(ctx context.Context, sm ledger.Supermarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := sm.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO supermarkets (id, name, address, phone, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			phone = excluded.phone,
			latitude = excluded.latitude,
			longitude = excluded.longitude
	`
	_, err := s.db.ExecContext(ctx, query,
		sm.ID, sm.Name, nullString(sm.Address), nullString(sm.Phone),
		nullFloat(sm.Latitude), nullFloat(sm.Longitude), formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save supermarket: %w", err)
	}
	return nil
}

func (s *Store) GetSupermarket(ctx context.Context, id ledger.SupermarketID) (ledger.Supermarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, latitude, longitude, created_at
		FROM supermarkets WHERE id = ?`, id)
	if err != nil {
		return ledger.Supermarket{}, fmt.Errorf("failed to query supermarket: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return ledger.Supermarket{}, err
		}
		return ledger.Supermarket{}, ledger.ErrNotFound
	}
	return scanSupermarket(rows)
}

func (s *Store) LoadSupermarkets(ctx context.Context) ([]ledger.Supermarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, latitude, longitude, created_at
		FROM supermarkets ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query supermarkets: %w", err)
	}
	defer rows.Close()

	var result []ledger.Supermarket
	for rows.Next() {
		sm, err := scanSupermarket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sm)
	}
	return result, rows.Err()
}

func scanSupermarket(rows *sql.Rows) (ledger.Supermarket, error) {
	var (
		sm        ledger.Supermarket
		address   sql.NullString
		phone     sql.NullString
		lat, lng  sql.NullFloat64
		createdAt string
	)
	if err := rows.Scan(&sm.ID, &sm.Name, &address, &phone, &lat, &lng, &createdAt); err != nil {
		return sm, fmt.Errorf("failed to scan supermarket: %w", err)
	}
	sm.Address = address.String
	sm.Phone = phone.String
	if lat.Valid {
		sm.Latitude = &lat.Float64
	}
	if lng.Valid {
		sm.Longitude = &lng.Float64
	}
	sm.CreatedAt = parseTime(createdAt)
	return sm, nil
}

func (s *Store) SaveFragrance(ctx context.Context, f ledger.Fragrance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fragrances (id, name, color) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color`,
		f.ID, f.Name, nullString(f.Color),
	)
	if err != nil {
		return fmt.Errorf("failed to save fragrance: %w", err)
	}
	return nil
}

func (s *Store) LoadFragrances(ctx context.Context) ([]ledger.Fragrance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM fragrances ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragrances: %w", err)
	}
	defer rows.Close()

	var result []ledger.Fragrance
	for rows.Next() {
		var (
			f     ledger.Fragrance
			color sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Name, &color); err != nil {
			return nil, fmt.Errorf("failed to scan fragrance: %w", err)
		}
		f.Color = color.String
		result = append(result, f)
	}
	return result, rows.Err()
}

// =============================================================================
// SALES
// =============================================================================

// CreateSale inserts the sale and its payments atomically.
func (s *Store) CreateSale(ctx context.Context, sale ledger.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertSale(ctx, sqlTx, sale); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// RecordDelivery inserts the sale, its payments and its movement atomically.
func (s *Store) RecordDelivery(ctx context.Context, d ledger.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertDelivery(ctx, sqlTx, d); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func insertDelivery(ctx context.Context, db dbtx, d ledger.Delivery) error {
	if err := insertSale(ctx, db, d.Sale); err != nil {
		return err
	}
	if d.Movement != nil {
		return appendMovement(ctx, db, *d.Movement)
	}
	return nil
}

func insertSale(ctx context.Context, db dbtx, sale ledger.Sale) error {
	query := `
		INSERT INTO sales
		(id, date, supermarket_id, quantity, cartons, price_per_unit, price_tier,
		 total_value, remaining_amount, is_paid, payment_date, expected_payment_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		sale.ID,
		formatTime(sale.Date),
		sale.SupermarketID,
		sale.Quantity,
		sale.Cartons,
		sale.PricePerUnit.String(),
		nullString(string(sale.PriceTier)),
		sale.TotalValue.String(),
		sale.RemainingAmount.String(),
		sale.IsPaid,
		nullTime(sale.PaymentDate),
		nullTime(sale.ExpectedPaymentDate),
		formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateID
		}
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for _, p := range sale.Payments {
		if err := insertPayment(ctx, db, sale.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func insertPayment(ctx context.Context, db dbtx, saleID ledger.SaleID, p ledger.Payment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payments (id, sale_id, date, amount, note, type)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, saleID, formatTime(p.Date), p.Amount.String(), nullString(p.Note), p.Type,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateID
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, id ledger.SaleID) (ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSale(ctx, s.db, id)
}

func (s *Store) getSale(ctx context.Context, db dbtx, id ledger.SaleID) (ledger.Sale, error) {
	sales, err := s.querySales(ctx, db, "WHERE id = ?", id)
	if err != nil {
		return ledger.Sale{}, err
	}
	if len(sales) == 0 {
		return ledger.Sale{}, ledger.ErrNotFound
	}
	return sales[0], nil
}

// LoadSales returns every sale in insertion order, rebuilt from its base
// columns and payments.
func (s *Store) LoadSales(ctx context.Context) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.querySales(ctx, s.db, "")
}

func (s *Store) querySales(ctx context.Context, db dbtx, where string, args ...any) ([]ledger.Sale, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, date, supermarket_id, quantity, price_per_unit, price_tier, expected_payment_date
		FROM sales `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}

	var records []ledger.SaleRecord
	for rows.Next() {
		var (
			rec      ledger.SaleRecord
			date     string
			price    string
			tier     sql.NullString
			expected sql.NullString
		)
		if err := rows.Scan(&rec.ID, &date, &rec.SupermarketID, &rec.Quantity, &price, &tier, &expected); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		rec.Date = parseTime(date)
		rec.PricePerUnit, _ = decimal.NewFromString(price)
		rec.PriceTier = tier.String
		rec.ExpectedPaymentDate = parseNullTime(expected)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(records) == 0 {
		return nil, nil
	}

	var payments map[string][]ledger.PaymentRecord
	if len(records) == 1 {
		payments, err = queryPayments(ctx, db, "WHERE sale_id = ?", records[0].ID)
	} else {
		payments, err = queryPayments(ctx, db, "")
	}
	if err != nil {
		return nil, err
	}

	sales := make([]ledger.Sale, 0, len(records))
	for _, rec := range records {
		rec.Payments = payments[rec.ID]
		sale, err := s.normalizer.Sale(rec)
		if err != nil {
			return nil, fmt.Errorf("stored sale %s: %w", rec.ID, err)
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

// queryPayments returns the matching payments grouped by sale id, in append
// order.
func queryPayments(ctx context.Context, db dbtx, where string, args ...any) (map[string][]ledger.PaymentRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, sale_id, date, amount, note, type
		FROM payments `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]ledger.PaymentRecord)
	for rows.Next() {
		var (
			p      ledger.PaymentRecord
			saleID string
			date   string
			amount string
			note   sql.NullString
		)
		if err := rows.Scan(&p.ID, &saleID, &date, &amount, &note, &p.Type); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Date = parseTime(date)
		p.Amount, _ = decimal.NewFromString(amount)
		p.Note = note.String
		result[saleID] = append(result[saleID], p)
	}
	return result, rows.Err()
}

// DeleteSale removes a sale and its payments.
func (s *Store) DeleteSale(ctx context.Context, id ledger.SaleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM payments WHERE sale_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	res, err := sqlTx.ExecContext(ctx, "DELETE FROM sales WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return sqlTx.Commit()
}

// AppendPayment applies ledger.AppendPayment to the stored sale and writes
// the new payment plus the refreshed derived columns in one transaction.
func (s *Store) AppendPayment(ctx context.Context, id ledger.SaleID, p ledger.Payment) (ledger.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Sale{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	sale, err := s.getSale(ctx, sqlTx, id)
	if err != nil {
		return ledger.Sale{}, err
	}
	updated, err := ledger.AppendPayment(sale, p)
	if err != nil {
		return ledger.Sale{}, err
	}

	appended := updated.Payments[len(updated.Payments)-1]
	if err := insertPayment(ctx, sqlTx, id, appended); err != nil {
		return ledger.Sale{}, err
	}

	_, err = sqlTx.ExecContext(ctx, `
		UPDATE sales SET remaining_amount = ?, is_paid = ?, payment_date = ?
		WHERE id = ?`,
		updated.RemainingAmount.String(), updated.IsPaid, nullTime(updated.PaymentDate), id,
	)
	if err != nil {
		return ledger.Sale{}, fmt.Errorf("failed to update sale: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return ledger.Sale{}, err
	}
	return updated, nil
}

// =============================================================================
// STOCK
// =============================================================================

func (s *Store) AppendMovement(ctx context.Context, m ledger.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendMovement(ctx, s.db, m)
}

func appendMovement(ctx context.Context, db dbtx, m ledger.StockMovement) error {
	dist, err := encodeDistribution(m.FragranceDistribution)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO stock_history (id, date, quantity, type, reason, distribution_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, formatTime(m.Date), m.Quantity, m.Type, nullString(m.Reason), dist, formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateID
		}
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// LoadStockMovements returns the history ordered by date, ties in append order.
func (s *Store) LoadStockMovements(ctx context.Context) ([]ledger.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, quantity, type, reason, distribution_json
		FROM stock_history ORDER BY date ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock history: %w", err)
	}
	defer rows.Close()

	var result []ledger.StockMovement
	for rows.Next() {
		var (
			rec    ledger.MovementRecord
			date   string
			reason sql.NullString
			dist   sql.NullString
		)
		if err := rows.Scan(&rec.ID, &date, &rec.Quantity, &rec.Type, &reason, &dist); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		rec.Date = parseTime(date)
		rec.Reason = reason.String
		if dist.Valid && dist.String != "" {
			if err := json.Unmarshal([]byte(dist.String), &rec.FragranceDistribution); err != nil {
				return nil, fmt.Errorf("movement %s: bad distribution: %w", rec.ID, err)
			}
		}

		m, err := s.normalizer.Movement(rec)
		if err != nil {
			return nil, fmt.Errorf("stored movement %s: %w", rec.ID, err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// SaveFragranceStock replaces the persisted per-fragrance levels.
func (s *Store) SaveFragranceStock(ctx context.Context, levels map[ledger.FragranceID]int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM fragrance_stock"); err != nil {
		return fmt.Errorf("failed to clear fragrance stock: %w", err)
	}
	for id, qty := range levels {
		_, err := sqlTx.ExecContext(ctx,
			"INSERT INTO fragrance_stock (fragrance_id, quantity, updated_at) VALUES (?, ?, ?)",
			id, qty, formatTime(at))
		if err != nil {
			return fmt.Errorf("failed to save fragrance stock: %w", err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) LoadFragranceStock(ctx context.Context) (map[ledger.FragranceID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT fragrance_id, quantity FROM fragrance_stock")
	if err != nil {
		return nil, fmt.Errorf("failed to query fragrance stock: %w", err)
	}
	defer rows.Close()

	result := make(map[ledger.FragranceID]int)
	for rows.Next() {
		var (
			id  ledger.FragranceID
			qty int
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan fragrance stock: %w", err)
		}
		result[id] = qty
	}
	return result, rows.Err()
}

// =============================================================================
// ORDERS
// =============================================================================

func (s *Store) SaveOrder(ctx context.Context, o ledger.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist, err := encodeDistribution(o.FragranceDistribution)
	if err != nil {
		return err
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO orders
		(id, supermarket_id, scheduled_date, quantity, price_per_unit, price_tier,
		 status, notes, distribution_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			supermarket_id = excluded.supermarket_id,
			scheduled_date = excluded.scheduled_date,
			quantity = excluded.quantity,
			price_per_unit = excluded.price_per_unit,
			price_tier = excluded.price_tier,
			status = excluded.status,
			notes = excluded.notes,
			distribution_json = excluded.distribution_json
	`
	_, err = s.db.ExecContext(ctx, query,
		o.ID, o.SupermarketID, formatTime(o.ScheduledDate), o.Quantity, o.PricePerUnit.String(),
		nullString(string(o.PriceTier)), o.Status, nullString(o.Notes), dist, formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id ledger.OrderID) (ledger.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOrder(ctx, s.db, id)
}

func getOrder(ctx context.Context, db dbtx, id ledger.OrderID) (ledger.Order, error) {
	orders, err := queryOrders(ctx, db, "WHERE id = ?", id)
	if err != nil {
		return ledger.Order{}, err
	}
	if len(orders) == 0 {
		return ledger.Order{}, ledger.ErrNotFound
	}
	return orders[0], nil
}

// ListOrders returns orders by scheduled date. An empty status lists all.
func (s *Store) ListOrders(ctx context.Context, status ledger.OrderStatus) ([]ledger.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" {
		return queryOrders(ctx, s.db, "")
	}
	return queryOrders(ctx, s.db, "WHERE status = ?", status)
}

func queryOrders(ctx context.Context, db dbtx, where string, args ...any) ([]ledger.Order, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, supermarket_id, scheduled_date, quantity, price_per_unit, price_tier,
		       status, notes, distribution_json, created_at
		FROM orders `+where+` ORDER BY scheduled_date ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []ledger.Order
	for rows.Next() {
		var (
			o         ledger.Order
			scheduled string
			price     string
			tier      sql.NullString
			notes     sql.NullString
			dist      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&o.ID, &o.SupermarketID, &scheduled, &o.Quantity, &price, &tier,
			&o.Status, &notes, &dist, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.ScheduledDate = parseTime(scheduled)
		o.PricePerUnit, _ = decimal.NewFromString(price)
		o.PriceTier = ledger.PriceTier(tier.String)
		o.Notes = notes.String
		o.CreatedAt = parseTime(createdAt)
		if dist.Valid && dist.String != "" {
			if err := json.Unmarshal([]byte(dist.String), &o.FragranceDistribution); err != nil {
				return nil, fmt.Errorf("order %s: bad distribution: %w", o.ID, err)
			}
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id ledger.OrderID, status ledger.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := getOrder(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !ledger.CanTransition(o.Status, status) {
		return ledger.ErrOrderNotPending
	}
	_, err = s.db.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// CommitConversion records the delivery and deletes the order in one
// transaction.
func (s *Store) CommitConversion(ctx context.Context, id ledger.OrderID, d ledger.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	o, err := getOrder(ctx, sqlTx, id)
	if err != nil {
		return err
	}
	if o.Status != ledger.OrderPending {
		return ledger.ErrOrderNotPending
	}
	if err := insertDelivery(ctx, sqlTx, d); err != nil {
		return err
	}
	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return sqlTx.Commit()
}

// =============================================================================
// REMINDERS
// =============================================================================

func (s *Store) SaveReminder(ctx context.Context, r ledger.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, key, kind, subject_id, supermarket_id, message, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Key, r.Kind, r.SubjectID, nullString(string(r.SupermarketID)), r.Message,
		formatTime(r.DueDate), formatTime(r.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateID
		}
		return fmt.Errorf("failed to save reminder: %w", err)
	}
	return nil
}

// ListReminders returns reminders newest first.
func (s *Store) ListReminders(ctx context.Context) ([]ledger.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, kind, subject_id, supermarket_id, message, due_date, created_at
		FROM reminders ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var result []ledger.Reminder
	for rows.Next() {
		var (
			r         ledger.Reminder
			smID      sql.NullString
			dueDate   string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.Key, &r.Kind, &r.SubjectID, &smID, &r.Message, &dueDate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		r.SupermarketID = ledger.SupermarketID(smID.String)
		r.DueDate = parseTime(dueDate)
		r.CreatedAt = parseTime(createdAt)
		result = append(result, r)
	}
	return result, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "sales", "stock_history", "fragrance_stock", "orders", "reminders", "fragrances", "supermarkets"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func encodeDistribution(d map[ledger.FragranceID]int) (sql.NullString, error) {
	if len(d) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode distribution: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
