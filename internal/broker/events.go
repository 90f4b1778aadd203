package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

// EventPublisher publishes shipment lifecycle events. Publishing is
// best-effort from the caller's point of view: the state machine has
// already committed when an event goes out.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish sends one event keyed by its type so per-type ordering is
// preserved within a partition.
func (ep *EventPublisher) Publish(ctx context.Context, eventType string, event interface{}) error {
	return ep.producer.PublishEvent(ctx, eventType, event)
}

// PublishOrdersIngested publishes OrdersIngested event
func (ep *EventPublisher) PublishOrdersIngested(ctx context.Context, event *models.OrdersIngestedEvent) error {
	return ep.producer.PublishEvent(ctx, models.EventTypeOrdersIngested, event)
}

// EventHandler routes consumed lifecycle events to registered callbacks.
type EventHandler struct {
	onOrdersIngested     func(context.Context, *models.OrdersIngestedEvent) error
	onShipmentConfirmed  func(context.Context, *models.ShipmentConfirmedEvent) error
	onShipmentDispatched func(context.Context, *models.ShipmentDispatchedEvent) error
	onOther              func(context.Context, *models.BaseEvent, []byte) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrdersIngested registers a handler for OrdersIngested events
func (eh *EventHandler) OnOrdersIngested(handler func(context.Context, *models.OrdersIngestedEvent) error) {
	eh.onOrdersIngested = handler
}

// OnShipmentConfirmed registers a handler for ShipmentConfirmed events
func (eh *EventHandler) OnShipmentConfirmed(handler func(context.Context, *models.ShipmentConfirmedEvent) error) {
	eh.onShipmentConfirmed = handler
}

// OnShipmentDispatched registers a handler for ShipmentDispatched events
func (eh *EventHandler) OnShipmentDispatched(handler func(context.Context, *models.ShipmentDispatchedEvent) error) {
	eh.onShipmentDispatched = handler
}

// OnOther registers a fallback handler for the remaining event types.
func (eh *EventHandler) OnOther(handler func(context.Context, *models.BaseEvent, []byte) error) {
	eh.onOther = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrdersIngested:
		if eh.onOrdersIngested != nil {
			var event models.OrdersIngestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrdersIngested event: %w", err)
			}
			return eh.onOrdersIngested(ctx, &event)
		}

	case models.EventTypeShipmentConfirmed:
		if eh.onShipmentConfirmed != nil {
			var event models.ShipmentConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ShipmentConfirmed event: %w", err)
			}
			return eh.onShipmentConfirmed(ctx, &event)
		}

	case models.EventTypeShipmentDispatched:
		if eh.onShipmentDispatched != nil {
			var event models.ShipmentDispatchedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ShipmentDispatched event: %w", err)
			}
			return eh.onShipmentDispatched(ctx, &event)
		}

	default:
		if eh.onOther != nil {
			return eh.onOther(ctx, &baseEvent, msg.Value)
		}
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
