package models

import (
	"database/sql"
	"time"
)

// Order is one line item of a customer order imported from a marketplace
// export file. Physical quantity shipped = Quantity * SetQty.
type Order struct {
	ID               int64           `db:"id" json:"id"`
	ReferenceNo      string          `db:"reference_no" json:"reference_no"`
	SalesSite        string          `db:"sales_site" json:"sales_site"`
	SKU              string          `db:"sku" json:"sku"`
	ProductCode      string          `db:"product_code" json:"product_code"`
	ProductName      string          `db:"product_name" json:"product_name"`
	Quantity         int             `db:"quantity" json:"quantity"`
	SetQty           int             `db:"set_qty" json:"set_qty"`
	SalesPrice       float64         `db:"sales_price" json:"sales_price"`
	UnitValue        float64         `db:"unit_value" json:"unit_value"`
	ConsigneeName    string          `db:"consignee_name" json:"consignee_name"`
	ConsigneeAddress string          `db:"consignee_address" json:"consignee_address"`
	Kana             string          `db:"kana" json:"kana"`
	PostalCode       string          `db:"postal_code" json:"postal_code"`
	PhoneNumber      string          `db:"phone_number" json:"phone_number"`
	ShipmentLocation string          `db:"shipment_location" json:"shipment_location"`
	ShipmentNo       sql.NullString  `db:"shipment_no" json:"shipment_no"`
	ShipmentBatch    sql.NullString  `db:"shipment_batch" json:"shipment_batch"`
	Status           string          `db:"status" json:"status"`
	TrackingNumber   sql.NullString  `db:"tracking_number" json:"tracking_number"`
	Weight           sql.NullFloat64 `db:"weight" json:"weight"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// TotalUnits is the physical unit count for the line.
func (o *Order) TotalUnits() int {
	setQty := o.SetQty
	if setQty < 1 {
		setQty = 1
	}
	return o.Quantity * setQty
}

// Shipment is a physical dispatch unit created when an order is confirmed.
type Shipment struct {
	ID               int64           `db:"id" json:"id"`
	ShipmentNo       string          `db:"shipment_no" json:"shipment_no"`
	ReferenceNo      string          `db:"reference_no" json:"reference_no"`
	SKU              string          `db:"sku" json:"sku"`
	ShipmentLocation string          `db:"shipment_location" json:"shipment_location"`
	Status           string          `db:"status" json:"status"`
	TrackingNumber   sql.NullString  `db:"tracking_number" json:"tracking_number"`
	Weight           sql.NullFloat64 `db:"weight" json:"weight"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// InventoryItem holds per-product stock counters for both warehouses.
type InventoryItem struct {
	ID          int64          `db:"id" json:"id"`
	ProductCode string         `db:"product_code" json:"product_code"`
	ProductName string         `db:"product_name" json:"product_name"`
	NZStock     int            `db:"nz_stock" json:"nz_stock"`
	AusStock    int            `db:"aus_stock" json:"aus_stock"`
	Memo        sql.NullString `db:"memo" json:"memo,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// CatalogEntry maps a channel-specific sales code (SKU) to the canonical
// product. The catalog is read-only from this service's perspective.
type CatalogEntry struct {
	SalesCode    string  `db:"sales_code" json:"sales_code"`
	ProductCode  string  `db:"product_code" json:"product_code"`
	ProductName  string  `db:"product_name" json:"product_name"`
	SetQty       int     `db:"set_qty" json:"set_qty"`
	SalesPrice   float64 `db:"sales_price" json:"sales_price"`
	Weight       float64 `db:"weight" json:"weight"`
	SalesSite    string  `db:"sales_site" json:"sales_site"`
	ShippingFrom string  `db:"shipping_from" json:"shipping_from"`
}

// Order statuses
const (
	OrderStatusOrdered          = "ordered"
	OrderStatusPreparing        = "preparing"
	OrderStatusPartiallyShipped = "partially_shipped"
	OrderStatusDispatched       = "dispatched"
)

// Shipment statuses
const (
	ShipmentStatusProcessing = "processing"
	ShipmentStatusShipped    = "shipped"
)

// Shipment locations
const (
	LocationAusKN = "aus_kn"
	LocationNZBis = "nz_bis"
)

// Warehouses an order can ship from; selects which stock column the
// confirm transition decrements.
const (
	ShippingFromAus = "aus"
	ShippingFromNZ  = "nz"
)

// ValidLocation reports whether loc is a known shipment location.
func ValidLocation(loc string) bool {
	return loc == LocationAusKN || loc == LocationNZBis
}

// ValidShippingFrom reports whether from names a known warehouse.
func ValidShippingFrom(from string) bool {
	return from == ShippingFromAus || from == ShippingFromNZ
}

// LocationForShippingFrom maps a warehouse to its shipment location.
func LocationForShippingFrom(from string) string {
	switch from {
	case ShippingFromAus:
		return LocationAusKN
	case ShippingFromNZ:
		return LocationNZBis
	default:
		return ""
	}
}

// ShippingFromForLocation maps a shipment location back to the
// warehouse whose stock column it draws from.
func ShippingFromForLocation(loc string) string {
	switch loc {
	case LocationAusKN:
		return ShippingFromAus
	case LocationNZBis:
		return ShippingFromNZ
	default:
		return ""
	}
}

// CompletionRow is one parsed row of a bulk completion upload, keyed by
// shipment number.
type CompletionRow struct {
	ShipmentNo     string  `json:"shipment_no"`
	TrackingNumber string  `json:"tracking_number"`
	Weight         float64 `json:"weight"`
	Memo           string  `json:"memo"`
}

// ProcessedEvent records a consumed lifecycle event for idempotent audit.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
