package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a single transaction. The transaction is rolled
// back on any error from fn and committed otherwise; fn must perform
// every read and write for one logical operation through the given tx.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// stockColumn maps a shipping_from warehouse to its inventory column.
// Column names come from a fixed map, never from caller input.
var stockColumns = map[string]string{
	"aus": "aus_stock",
	"nz":  "nz_stock",
}

// DeductStockTx decrements stock for a product in the given warehouse.
// The guard in the WHERE clause refuses decrements that would drive the
// counter negative; callers get a ValidationError in that case.
func (s *Store) DeductStockTx(ctx context.Context, tx *sqlx.Tx, productCode, shippingFrom string, units int) error {
	col, ok := stockColumns[shippingFrom]
	if !ok {
		return apperr.NewValidation("unknown shipping_from", shippingFrom)
	}

	query := fmt.Sprintf(
		"UPDATE inventory SET %s = %s - $1, updated_at = NOW() WHERE product_code = $2 AND %s >= $1",
		col, col, col)

	res, err := tx.ExecContext(ctx, query, units, productCode)
	if err != nil {
		return fmt.Errorf("failed to deduct stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM inventory WHERE product_code = $1)", productCode); err != nil {
			return fmt.Errorf("failed to check inventory row: %w", err)
		}
		if !exists {
			return apperr.NewNotFound("inventory", productCode)
		}
		return apperr.NewValidation(fmt.Sprintf("insufficient %s stock for %s", shippingFrom, productCode))
	}

	return nil
}

// RestoreStockTx increments stock for a product in the given warehouse.
func (s *Store) RestoreStockTx(ctx context.Context, tx *sqlx.Tx, productCode, shippingFrom string, units int) error {
	col, ok := stockColumns[shippingFrom]
	if !ok {
		return apperr.NewValidation("unknown shipping_from", shippingFrom)
	}

	query := fmt.Sprintf(
		"UPDATE inventory SET %s = %s + $1, updated_at = NOW() WHERE product_code = $2",
		col, col)

	res, err := tx.ExecContext(ctx, query, units, productCode)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NewNotFound("inventory", productCode)
	}
	return nil
}

// GetStock returns the current stock level for a product in one warehouse.
func (s *Store) GetStock(ctx context.Context, productCode, shippingFrom string) (int, error) {
	col, ok := stockColumns[shippingFrom]
	if !ok {
		return 0, apperr.NewValidation("unknown shipping_from", shippingFrom)
	}

	var stock int
	query := fmt.Sprintf("SELECT %s FROM inventory WHERE product_code = $1", col)
	err := s.db.GetContext(ctx, &stock, query, productCode)
	if err == sql.ErrNoRows {
		return 0, apperr.NewNotFound("inventory", productCode)
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// IsEventProcessed checks if a lifecycle event has been recorded
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed records a consumed lifecycle event
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
