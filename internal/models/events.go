package models

import "time"

// Event types published on the shipment lifecycle topic
const (
	EventTypeOrdersIngested           = "ORDERS_INGESTED"
	EventTypeShipmentConfirmed        = "SHIPMENT_CONFIRMED"
	EventTypeShipmentCancelled        = "SHIPMENT_CANCELLED"
	EventTypeShipmentDispatched       = "SHIPMENT_DISPATCHED"
	EventTypeShipmentCompleteReverted = "SHIPMENT_COMPLETE_REVERTED"
	EventTypeShipmentNumbersAssigned  = "SHIPMENT_NUMBERS_ASSIGNED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrdersIngestedEvent published after an export file is normalized and stored
type OrdersIngestedEvent struct {
	BaseEvent
	Channel       string `json:"channel"`
	OrderCount    int    `json:"order_count"`
	RejectedCount int    `json:"rejected_count"`
}

// ShipmentConfirmedEvent published when a confirm batch commits
type ShipmentConfirmedEvent struct {
	BaseEvent
	ShipmentNos  []string `json:"shipment_nos"`
	ShippingFrom string   `json:"shipping_from"`
}

// ShipmentCancelledEvent published when a pre-dispatch cancel commits
type ShipmentCancelledEvent struct {
	BaseEvent
	OrderIDs []int64 `json:"order_ids"`
}

// ShipmentDispatchedEvent published when a completion upload commits
type ShipmentDispatchedEvent struct {
	BaseEvent
	ShipmentNos []string `json:"shipment_nos"`
	FailedCount int      `json:"failed_count"`
}

// ShipmentCompleteRevertedEvent published when dispatched shipments are
// rolled back to processing
type ShipmentCompleteRevertedEvent struct {
	BaseEvent
	ShipmentIDs []int64 `json:"shipment_ids"`
}

// ShipmentNumbersAssignedEvent published after a number generation run
type ShipmentNumbersAssignedEvent struct {
	BaseEvent
	Location string   `json:"location"`
	Numbers  []string `json:"numbers"`
}
