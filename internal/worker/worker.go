package worker

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/NZSopa/orderdhash-sub001/internal/broker"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
	"github.com/NZSopa/orderdhash-sub001/internal/util"
)

// EventStore persists which lifecycle events have been audited.
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// AuditWorker consumes the shipment lifecycle topic and records each
// event in the structured audit log. The processed_events table makes
// consumption idempotent across restarts and rebalances.
type AuditWorker struct {
	consumer *broker.Consumer
	store    EventStore
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store EventStore) *AuditWorker {
	w := &AuditWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	handler := broker.NewEventHandler()
	handler.OnOrdersIngested(w.recordOrdersIngested)
	handler.OnShipmentConfirmed(w.recordShipmentConfirmed)
	handler.OnShipmentDispatched(w.recordShipmentDispatched)
	handler.OnOther(w.recordOther)
	w.handler = handler

	return w
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	log.Println("Starting audit worker...")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	log.Println("Stopping audit worker...")
	return w.consumer.Close()
}

func (w *AuditWorker) recordOrdersIngested(ctx context.Context, event *models.OrdersIngestedEvent) error {
	return w.record(ctx, event.BaseEvent,
		zap.String("channel", event.Channel),
		zap.Int("order_count", event.OrderCount),
		zap.Int("rejected_count", event.RejectedCount))
}

func (w *AuditWorker) recordShipmentConfirmed(ctx context.Context, event *models.ShipmentConfirmedEvent) error {
	return w.record(ctx, event.BaseEvent,
		zap.Strings("shipment_nos", event.ShipmentNos),
		zap.String("shipping_from", event.ShippingFrom))
}

func (w *AuditWorker) recordShipmentDispatched(ctx context.Context, event *models.ShipmentDispatchedEvent) error {
	return w.record(ctx, event.BaseEvent,
		zap.Strings("shipment_nos", event.ShipmentNos),
		zap.Int("failed_count", event.FailedCount))
}

func (w *AuditWorker) recordOther(ctx context.Context, base *models.BaseEvent, payload []byte) error {
	return w.record(ctx, *base, zap.ByteString("payload", payload))
}

// record writes one audit entry unless the event id was already seen.
func (w *AuditWorker) record(ctx context.Context, base models.BaseEvent, fields ...zap.Field) error {
	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	entry := append([]zap.Field{
		zap.String("event_id", base.EventID),
		zap.String("event_type", base.EventType),
		zap.Time("occurred_at", base.Timestamp),
	}, fields...)
	w.logger.Info("Lifecycle event", entry...)

	return w.store.MarkEventProcessed(ctx, base.EventID, base.EventType)
}
