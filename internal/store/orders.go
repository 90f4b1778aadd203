package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

const insertOrderQuery = `
	INSERT INTO orders (
		reference_no, sales_site, sku, product_code, product_name,
		quantity, set_qty, sales_price, unit_value,
		consignee_name, consignee_address, kana, postal_code, phone_number,
		shipment_location, shipment_batch, status
	) VALUES (
		:reference_no, :sales_site, :sku, :product_code, :product_name,
		:quantity, :set_qty, :sales_price, :unit_value,
		:consignee_name, :consignee_address, :kana, :postal_code, :phone_number,
		:shipment_location, :shipment_batch, :status
	)`

// InsertOrdersTx inserts a batch of normalized order lines.
func (s *Store) InsertOrdersTx(ctx context.Context, tx *sqlx.Tx, orders []models.Order) error {
	for i := range orders {
		if _, err := tx.NamedExecContext(ctx, insertOrderQuery, &orders[i]); err != nil {
			return fmt.Errorf("failed to insert order %s: %w", orders[i].ReferenceNo, err)
		}
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NewNotFound("order", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByIDsTx retrieves orders by id inside a transaction.
func (s *Store) GetOrdersByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []int64) ([]models.Order, error) {
	if len(ids) == 0 {
		return []models.Order{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM orders WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var orders []models.Order
	err = tx.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// GetOrderByIDTx retrieves a single order inside a transaction.
func (s *Store) GetOrderByIDTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NewNotFound("order", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersParams filters the paged order listing.
type ListOrdersParams struct {
	Page   int
	Limit  int
	Search string
	Date   string
}

// ListOrders retrieves a page of orders with an optional search pattern
// across the reference, product and consignee columns.
func (s *Store) ListOrders(ctx context.Context, p ListOrdersParams) ([]models.Order, int, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	offset := (p.Page - 1) * p.Limit

	conditions := []string{`(
		reference_no ILIKE $1
		OR sku ILIKE $1
		OR product_name ILIKE $1
		OR consignee_name ILIKE $1
		OR postal_code ILIKE $1
		OR consignee_address ILIKE $1
		OR phone_number ILIKE $1
	)`}
	args := []interface{}{"%" + p.Search + "%"}

	if p.Date != "" {
		conditions = append(conditions, fmt.Sprintf("DATE(created_at) = $%d", len(args)+1))
		args = append(args, p.Date)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM orders " + where
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(
		"SELECT * FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, p.Limit, offset)

	var orders []models.Order
	if err := s.db.SelectContext(ctx, &orders, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// GetOrdersByDate returns every order created on a calendar date; the
// anomaly detector runs over this closed batch.
func (s *Store) GetOrdersByDate(ctx context.Context, date string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE DATE(created_at) = $1 ORDER BY id", date)
	return orders, err
}

// PendingCount is the per-date count of orders not yet confirmed.
type PendingCount struct {
	Date  string `db:"date" json:"date"`
	Count int    `db:"count" json:"count"`
}

// GetPendingSummary returns daily counts of orders still awaiting
// shipment, most recent dates first.
func (s *Store) GetPendingSummary(ctx context.Context) ([]PendingCount, error) {
	var rows []PendingCount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT DATE(created_at)::text AS date, COUNT(*) AS count
		FROM orders
		WHERE status = $1
		GROUP BY DATE(created_at)
		ORDER BY date DESC
		LIMIT 30`, models.OrderStatusOrdered)
	return rows, err
}

// DeleteAllOrders is the explicit bulk-clear operation; orders are never
// hard-deleted any other way.
func (s *Store) DeleteAllOrders(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkOrderPreparingTx moves an order into the confirmed-awaiting-dispatch
// state and records its shipment number.
func (s *Store) MarkOrderPreparingTx(ctx context.Context, tx *sqlx.Tx, orderID int64, shipmentNo string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, shipment_no = $2, updated_at = NOW()
		WHERE id = $3`,
		models.OrderStatusPreparing, shipmentNo, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order preparing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NewNotFound("order", strconv.FormatInt(orderID, 10))
	}
	return nil
}

// RevertOrdersToOrderedTx reverts confirmed orders to ordered and clears
// their shipment numbers. Only orders still preparing are touched.
func (s *Store) RevertOrdersToOrderedTx(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error) {
	query, args, err := sqlx.In(`
		UPDATE orders
		SET status = ?, shipment_no = NULL, updated_at = NOW()
		WHERE id IN (?) AND status = ?`,
		models.OrderStatusOrdered, ids, models.OrderStatusPreparing)
	if err != nil {
		return 0, err
	}
	query = tx.Rebind(query)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to revert orders: %w", err)
	}
	return res.RowsAffected()
}

// ClearShipmentNosTx clears shipment numbers on the selected orders so a
// generation run starts from a clean slate.
func (s *Store) ClearShipmentNosTx(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	query, args, err := sqlx.In("UPDATE orders SET shipment_no = NULL, updated_at = NOW() WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	query = tx.Rebind(query)
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// SetShipmentNoTx assigns a shipment number to one order.
func (s *Store) SetShipmentNoTx(ctx context.Context, tx *sqlx.Tx, orderID int64, shipmentNo string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET shipment_no = $1, updated_at = NOW() WHERE id = $2",
		shipmentNo, orderID)
	return err
}

// MaxShipmentNoTx returns the highest shipment number matching the
// prefix+date pattern for a location, excluding the ids currently being
// regenerated so a re-run does not collide with itself.
func (s *Store) MaxShipmentNoTx(ctx context.Context, tx *sqlx.Tx, pattern, location string, excludeIDs []int64) (string, error) {
	query, args, err := sqlx.In(`
		SELECT shipment_no FROM orders
		WHERE shipment_no LIKE ?
		AND shipment_location = ?
		AND id NOT IN (?)
		ORDER BY shipment_no DESC
		LIMIT 1`,
		pattern, location, excludeIDs)
	if err != nil {
		return "", err
	}
	query = tx.Rebind(query)

	var last string
	err = tx.GetContext(ctx, &last, query, args...)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return last, nil
}

// SetOrderBatchTx assigns a merge batch id to one order.
func (s *Store) SetOrderBatchTx(ctx context.Context, tx *sqlx.Tx, orderID int64, batch string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET shipment_batch = $1, updated_at = NOW() WHERE id = $2",
		batch, orderID)
	if err != nil {
		return fmt.Errorf("failed to set shipment batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NewNotFound("order", strconv.FormatInt(orderID, 10))
	}
	return nil
}

// ClearOrderBatchesTx removes the selected orders from their merge groups.
func (s *Store) ClearOrderBatchesTx(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	query, args, err := sqlx.In(
		"UPDATE orders SET shipment_batch = NULL, updated_at = NOW() WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	query = tx.Rebind(query)
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// RepointBatchTx moves every member of oldBatch into newBatch, keeping a
// merge group coherent after a split.
func (s *Store) RepointBatchTx(ctx context.Context, tx *sqlx.Tx, oldBatch, newBatch string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET shipment_batch = $1, updated_at = NOW() WHERE shipment_batch = $2",
		newBatch, oldBatch)
	return err
}

// UpdateSplitOriginalTx shrinks the original order to the remaining
// quantity and marks it partially shipped.
func (s *Store) UpdateSplitOriginalTx(ctx context.Context, tx *sqlx.Tx, orderID int64, remaining int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET quantity = $1, status = $2, updated_at = NOW()
		WHERE id = $3`,
		remaining, models.OrderStatusPartiallyShipped, orderID)
	return err
}

// MoveOrderToBatchTx moves a whole order into a batch with status ordered.
func (s *Store) MoveOrderToBatchTx(ctx context.Context, tx *sqlx.Tx, orderID int64, batch string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET shipment_batch = $1, status = $2, updated_at = NOW()
		WHERE id = $3`,
		batch, models.OrderStatusOrdered, orderID)
	return err
}

// CompleteOrderByShipmentNoTx records dispatch for one shipment number,
// returning the number of rows updated (0 when the number is unknown).
func (s *Store) CompleteOrderByShipmentNoTx(ctx context.Context, tx *sqlx.Tx, shipmentNo, trackingNumber string, weight float64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, tracking_number = $2, weight = $3, updated_at = NOW()
		WHERE shipment_no = $4`,
		models.OrderStatusDispatched, nullString(trackingNumber), nullFloat(weight), shipmentNo)
	if err != nil {
		return 0, fmt.Errorf("failed to complete order %s: %w", shipmentNo, err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}
