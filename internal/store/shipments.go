package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

// InsertShipmentTx creates a shipment row at confirm time. A duplicate
// shipment number surfaces as a ConflictError.
func (s *Store) InsertShipmentTx(ctx context.Context, tx *sqlx.Tx, sh *models.Shipment) error {
	query := `
		INSERT INTO shipment (shipment_no, reference_no, sku, shipment_location, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := tx.GetContext(ctx, sh, query,
		sh.ShipmentNo, sh.ReferenceNo, sh.SKU, sh.ShipmentLocation, sh.Status)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apperr.NewConflict("shipment_no", sh.ShipmentNo)
		}
		return fmt.Errorf("failed to insert shipment %s: %w", sh.ShipmentNo, err)
	}
	return nil
}

// GetShipmentsByNosTx loads shipment rows by shipment number inside a
// transaction.
func (s *Store) GetShipmentsByNosTx(ctx context.Context, tx *sqlx.Tx, nos []string) ([]models.Shipment, error) {
	if len(nos) == 0 {
		return []models.Shipment{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM shipment WHERE shipment_no IN (?)", nos)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var shipments []models.Shipment
	if err := tx.SelectContext(ctx, &shipments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load shipments: %w", err)
	}
	return shipments, nil
}

// DeleteShipmentsByNosTx deletes processing shipment rows by shipment
// number. Shipment numbers are unique per row, unlike reference numbers
// which legitimately repeat across order lines, so cancelling one order
// can never take a sibling's shipment with it.
func (s *Store) DeleteShipmentsByNosTx(ctx context.Context, tx *sqlx.Tx, nos []string) (int64, error) {
	if len(nos) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM shipment WHERE shipment_no IN (?) AND status = ?",
		nos, models.ShipmentStatusProcessing)
	if err != nil {
		return 0, err
	}
	query = tx.Rebind(query)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete shipments: %w", err)
	}
	return res.RowsAffected()
}

// RevertShipmentsTx rolls dispatched shipments back to processing. Stock
// is deliberately left untouched; see the cancel-complete notes.
func (s *Store) RevertShipmentsTx(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error) {
	query, args, err := sqlx.In(`
		UPDATE shipment
		SET status = ?, updated_at = NOW()
		WHERE id IN (?) AND status = ?`,
		models.ShipmentStatusProcessing, ids, models.ShipmentStatusShipped)
	if err != nil {
		return 0, err
	}
	query = tx.Rebind(query)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to revert shipments: %w", err)
	}
	return res.RowsAffected()
}

// MarkShipmentShippedTx records dispatch on the shipment row keyed by
// shipment number.
func (s *Store) MarkShipmentShippedTx(ctx context.Context, tx *sqlx.Tx, shipmentNo, trackingNumber string, weight float64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE shipment
		SET status = $1, tracking_number = $2, weight = $3, updated_at = NOW()
		WHERE shipment_no = $4`,
		models.ShipmentStatusShipped, nullString(trackingNumber), nullFloat(weight), shipmentNo)
	return err
}

// ListShipmentsParams filters the paged shipment listing.
type ListShipmentsParams struct {
	Page     int
	Limit    int
	Search   string
	Location string
}

// ListShipments retrieves a page of shipment rows.
func (s *Store) ListShipments(ctx context.Context, p ListShipmentsParams) ([]models.Shipment, int, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	offset := (p.Page - 1) * p.Limit

	var conditions []string
	var args []interface{}

	if p.Search != "" {
		args = append(args, "%"+p.Search+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(shipment_no ILIKE $%d OR reference_no ILIKE $%d OR sku ILIKE $%d)",
			len(args), len(args), len(args)))
	}
	if p.Location != "" && p.Location != "all" {
		args = append(args, p.Location)
		conditions = append(conditions, fmt.Sprintf("shipment_location = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM shipment "+where, args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(
		"SELECT * FROM shipment %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, p.Limit, offset)

	var shipments []models.Shipment
	if err := s.db.SelectContext(ctx, &shipments, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return shipments, total, nil
}

// ExportRow carries everything the export templates render for one
// confirmed order awaiting dispatch.
type ExportRow struct {
	ReferenceNo      string  `db:"reference_no"`
	ShipmentNo       string  `db:"shipment_no"`
	SKU              string  `db:"sku"`
	ProductCode      string  `db:"product_code"`
	ProductName      string  `db:"product_name"`
	Quantity         int     `db:"quantity"`
	SetQty           int     `db:"set_qty"`
	UnitValue        float64 `db:"unit_value"`
	ConsigneeName    string  `db:"consignee_name"`
	Kana             string  `db:"kana"`
	PostalCode       string  `db:"postal_code"`
	ConsigneeAddress string  `db:"consignee_address"`
	PhoneNumber      string  `db:"phone_number"`
	SalesSite        string  `db:"sales_site"`
	Weight           float64 `db:"weight"`
	TrackingNumber   string  `db:"tracking_number"`
}

// GetExportRows returns the confirmed orders with assigned shipment
// numbers for one location, ordered by shipment number.
func (s *Store) GetExportRows(ctx context.Context, location string) ([]ExportRow, error) {
	var rows []ExportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT
			reference_no, shipment_no, sku, product_code, product_name,
			quantity, set_qty, unit_value,
			consignee_name, kana, postal_code, consignee_address, phone_number,
			sales_site,
			COALESCE(weight, 0) AS weight,
			COALESCE(tracking_number, '') AS tracking_number
		FROM orders
		WHERE shipment_no IS NOT NULL
		AND status = $1
		AND shipment_location = $2
		ORDER BY shipment_no ASC`,
		models.OrderStatusPreparing, location)
	return rows, err
}
