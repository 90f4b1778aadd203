package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

type fakeEventStore struct {
	processed map[string]string
	marks     int
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{processed: map[string]string{}}
}

func (f *fakeEventStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeEventStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	f.processed[eventID] = eventType
	f.marks++
	return nil
}

func eventMessage(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestAuditWorkerRecordsEventOnce(t *testing.T) {
	store := newFakeEventStore()
	w := NewAuditWorker(nil, store)

	msg := eventMessage(t, &models.OrdersIngestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrdersIngested,
			Timestamp: time.Now(),
		},
		Channel:    "amazon",
		OrderCount: 3,
	})

	require.NoError(t, w.handler.HandleMessage(context.Background(), msg))
	assert.Equal(t, models.EventTypeOrdersIngested, store.processed["evt-1"])

	// Redelivery of the same event id is a no-op.
	require.NoError(t, w.handler.HandleMessage(context.Background(), msg))
	assert.Equal(t, 1, store.marks)
}

func TestAuditWorkerRoutesTypedEvents(t *testing.T) {
	store := newFakeEventStore()
	w := NewAuditWorker(nil, store)

	confirmed := eventMessage(t, &models.ShipmentConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypeShipmentConfirmed,
			Timestamp: time.Now(),
		},
		ShipmentNos:  []string{"HS240115001"},
		ShippingFrom: models.ShippingFromNZ,
	})
	dispatched := eventMessage(t, &models.ShipmentDispatchedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-3",
			EventType: models.EventTypeShipmentDispatched,
			Timestamp: time.Now(),
		},
		ShipmentNos: []string{"HS240115001"},
	})

	require.NoError(t, w.handler.HandleMessage(context.Background(), confirmed))
	require.NoError(t, w.handler.HandleMessage(context.Background(), dispatched))

	assert.Equal(t, models.EventTypeShipmentConfirmed, store.processed["evt-2"])
	assert.Equal(t, models.EventTypeShipmentDispatched, store.processed["evt-3"])
}

func TestAuditWorkerRecordsUnroutedTypes(t *testing.T) {
	store := newFakeEventStore()
	w := NewAuditWorker(nil, store)

	// Cancel events have no typed handler; the fallback still audits them.
	msg := eventMessage(t, &models.ShipmentCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-4",
			EventType: models.EventTypeShipmentCancelled,
			Timestamp: time.Now(),
		},
		OrderIDs: []int64{1, 2},
	})

	require.NoError(t, w.handler.HandleMessage(context.Background(), msg))
	assert.Equal(t, models.EventTypeShipmentCancelled, store.processed["evt-4"])
}
