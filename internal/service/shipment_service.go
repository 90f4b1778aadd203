package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/broker"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
	"github.com/NZSopa/orderdhash-sub001/internal/redisclient"
	"github.com/NZSopa/orderdhash-sub001/internal/store"
	"github.com/NZSopa/orderdhash-sub001/internal/util"
)

// ShipmentService executes the shipment lifecycle transitions. Every
// transition runs inside a single transaction: all reads and writes for
// one logical operation commit together or roll back together.
type ShipmentService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	numberLockTTL  time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewShipmentService creates a new shipment service
func NewShipmentService(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	numberLockTTL time.Duration,
) *ShipmentService {
	return &ShipmentService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		numberLockTTL:  numberLockTTL,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// ConfirmPair couples one order with its confirmation details.
type ConfirmPair struct {
	OrderID      int64  `json:"order_id" binding:"required"`
	ShipmentNo   string `json:"shipment_no" binding:"required"`
	ShippingFrom string `json:"shipping_from" binding:"required"`
}

// confirmableStatus reports whether an order in this status may be
// confirmed into a shipment. Re-confirming a preparing or dispatched
// order would deduct its stock a second time.
func confirmableStatus(status string) bool {
	return status == models.OrderStatusOrdered || status == models.OrderStatusPartiallyShipped
}

// Confirm commits a batch of orders into shipments: stock is decremented
// by quantity*set_qty in the chosen warehouse, a shipment row is created
// and the order moves to preparing. One failing pair aborts the batch.
func (s *ShipmentService) Confirm(ctx context.Context, pairs []ConfirmPair) error {
	ctx, span := util.StartSpan(ctx, "ShipmentService.Confirm")
	defer span.End()

	if len(pairs) == 0 {
		return apperr.NewValidation("no confirmation pairs given")
	}
	for _, p := range pairs {
		if p.OrderID == 0 || p.ShipmentNo == "" {
			return apperr.NewValidation("confirmation pair missing order_id or shipment_no")
		}
		if !models.ValidShippingFrom(p.ShippingFrom) {
			return apperr.NewValidation("unknown shipping_from", p.ShippingFrom)
		}
	}

	var shipmentNos []string
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range pairs {
			order, err := s.store.GetOrderByIDTx(ctx, tx, p.OrderID)
			if err != nil {
				return err
			}
			if !confirmableStatus(order.Status) {
				return apperr.NewConflict("order status",
					fmt.Sprintf("order %d is %s", order.ID, order.Status))
			}

			if err := s.store.DeductStockTx(ctx, tx, order.ProductCode, p.ShippingFrom, order.TotalUnits()); err != nil {
				return err
			}

			shipment := &models.Shipment{
				ShipmentNo:       p.ShipmentNo,
				ReferenceNo:      order.ReferenceNo,
				SKU:              order.SKU,
				ShipmentLocation: models.LocationForShippingFrom(p.ShippingFrom),
				Status:           models.ShipmentStatusProcessing,
			}
			if err := s.store.InsertShipmentTx(ctx, tx, shipment); err != nil {
				return err
			}

			if err := s.store.MarkOrderPreparingTx(ctx, tx, order.ID, p.ShipmentNo); err != nil {
				return err
			}
			shipmentNos = append(shipmentNos, p.ShipmentNo)
		}
		return nil
	})
	if err != nil {
		util.TxRollbacksTotal.WithLabelValues("confirm").Inc()
		return apperr.NewTransaction("confirm", err)
	}

	util.ShipmentsConfirmedTotal.Add(float64(len(pairs)))
	s.logger.Info("Shipments confirmed", zap.Int("count", len(pairs)))

	s.publish(ctx, models.EventTypeShipmentConfirmed, &models.ShipmentConfirmedEvent{
		BaseEvent:    s.baseEvent(models.EventTypeShipmentConfirmed),
		ShipmentNos:  shipmentNos,
		ShippingFrom: pairs[0].ShippingFrom,
	})
	return nil
}

// Cancel reverts confirmed-but-undispatched orders: stock deducted at
// confirm time returns to the shipment's warehouse, the order status
// returns to ordered, shipment numbers are cleared and the shipment
// rows are deleted. All-or-nothing.
func (s *ShipmentService) Cancel(ctx context.Context, orderIDs []int64) error {
	ctx, span := util.StartSpan(ctx, "ShipmentService.Cancel")
	defer span.End()

	if len(orderIDs) == 0 {
		return apperr.NewValidation("no orders selected for cancellation")
	}

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		orders, err := s.store.GetOrdersByIDsTx(ctx, tx, orderIDs)
		if err != nil {
			return err
		}
		if len(orders) != len(orderIDs) {
			return apperr.NewNotFound("order", fmt.Sprintf("%d of %d selected ids", len(orderIDs)-len(orders), len(orderIDs)))
		}

		// Shipment rows are keyed by the order's shipment number, never
		// by reference_no: duplicate reference numbers are legal input,
		// so a reference-keyed delete could take a sibling order's
		// shipment with it.
		nos := make([]string, 0, len(orders))
		for _, o := range orders {
			if !o.ShipmentNo.Valid || o.ShipmentNo.String == "" {
				return apperr.NewConflict("order status",
					fmt.Sprintf("order %d has no shipment to cancel", o.ID))
			}
			nos = append(nos, o.ShipmentNo.String)
		}

		shipments, err := s.store.GetShipmentsByNosTx(ctx, tx, nos)
		if err != nil {
			return err
		}
		byNo := make(map[string]models.Shipment, len(shipments))
		for _, sh := range shipments {
			byNo[sh.ShipmentNo] = sh
		}

		for _, o := range orders {
			sh, ok := byNo[o.ShipmentNo.String]
			if !ok {
				return apperr.NewNotFound("shipment", o.ShipmentNo.String)
			}
			if sh.Status != models.ShipmentStatusProcessing {
				return apperr.NewConflict("shipment status",
					fmt.Sprintf("shipment %s is %s", sh.ShipmentNo, sh.Status))
			}
			from := models.ShippingFromForLocation(sh.ShipmentLocation)
			if err := s.store.RestoreStockTx(ctx, tx, o.ProductCode, from, o.TotalUnits()); err != nil {
				return err
			}
		}

		if _, err := s.store.RevertOrdersToOrderedTx(ctx, tx, orderIDs); err != nil {
			return err
		}
		if _, err := s.store.DeleteShipmentsByNosTx(ctx, tx, nos); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		util.TxRollbacksTotal.WithLabelValues("cancel").Inc()
		return apperr.NewTransaction("cancel", err)
	}

	util.ShipmentsCancelledTotal.Add(float64(len(orderIDs)))
	s.logger.Info("Shipments cancelled", zap.Int("count", len(orderIDs)))

	s.publish(ctx, models.EventTypeShipmentCancelled, &models.ShipmentCancelledEvent{
		BaseEvent: s.baseEvent(models.EventTypeShipmentCancelled),
		OrderIDs:  orderIDs,
	})
	return nil
}

// CancelComplete rolls dispatched shipments back to processing. This is
// a status rollback only: inventory is NOT re-incremented here, matching
// how dispatch-level cancels have always been reconciled out of band.
func (s *ShipmentService) CancelComplete(ctx context.Context, shipmentIDs []int64) error {
	ctx, span := util.StartSpan(ctx, "ShipmentService.CancelComplete")
	defer span.End()

	if len(shipmentIDs) == 0 {
		return apperr.NewValidation("no shipments selected")
	}

	var reverted int64
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.store.RevertShipmentsTx(ctx, tx, shipmentIDs)
		if err != nil {
			return err
		}
		reverted = n
		return nil
	})
	if err != nil {
		util.TxRollbacksTotal.WithLabelValues("cancel_complete").Inc()
		return apperr.NewTransaction("cancel-complete", err)
	}

	s.logger.Warn("Dispatch reverted without stock restore",
		zap.Int64s("shipment_ids", shipmentIDs),
		zap.Int64("reverted", reverted))

	s.publish(ctx, models.EventTypeShipmentCompleteReverted, &models.ShipmentCompleteRevertedEvent{
		BaseEvent:   s.baseEvent(models.EventTypeShipmentCompleteReverted),
		ShipmentIDs: shipmentIDs,
	})
	return nil
}

// Merge assigns one shared shipment batch to the selected orders so they
// ship together. A fresh batch id is generated when the caller does not
// supply one. No status or inventory change.
func (s *ShipmentService) Merge(ctx context.Context, orderIDs []int64, batch string) (string, error) {
	ctx, span := util.StartSpan(ctx, "ShipmentService.Merge")
	defer span.End()

	if len(orderIDs) < 2 {
		return "", apperr.NewValidation("merge needs at least two orders")
	}
	if batch == "" {
		batch = uuid.New().String()
	}

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, id := range orderIDs {
			if err := s.store.SetOrderBatchTx(ctx, tx, id, batch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.TxRollbacksTotal.WithLabelValues("merge").Inc()
		return "", apperr.NewTransaction("merge", err)
	}

	util.OrdersMergedTotal.Add(float64(len(orderIDs)))
	return batch, nil
}

// MergeCancel removes the selected orders from their merge groups.
func (s *ShipmentService) MergeCancel(ctx context.Context, orderIDs []int64) error {
	ctx, span := util.StartSpan(ctx, "ShipmentService.MergeCancel")
	defer span.End()

	if len(orderIDs) == 0 {
		return apperr.NewValidation("no orders selected")
	}

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.store.ClearOrderBatchesTx(ctx, tx, orderIDs)
	})
	if err != nil {
		util.TxRollbacksTotal.WithLabelValues("merge_cancel").Inc()
		return apperr.NewTransaction("merge-cancel", err)
	}
	return nil
}

// SplitRequest names the order being split and how many units leave it
// into the target batch.
type SplitRequest struct {
	OrderID       int64  `json:"order_id" binding:"required"`
	SplitQuantity int    `json:"split_quantity" binding:"required,min=1"`
	TargetBatch   string `json:"target_batch"`
}

// SplitResult reports the outcome of one split.
type SplitResult struct {
	Batch             string `json:"batch"`
	RemainingQuantity int    `json:"remaining_quantity"`
}

// Split moves part of an order into a shipment batch. With units
// remaining, the original shrinks to the remainder and is marked
// partially shipped while a new order row carries the split-off
// quantity; with nothing remaining the whole order moves into the
// batch. Members of the order's previous merge group are re-pointed to
// the target batch so the group stays coherent.
func (s *ShipmentService) Split(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	ctx, span := util.StartSpan(ctx, "ShipmentService.Split")
	defer span.End()

	if req.OrderID == 0 {
		return nil, apperr.NewValidation("order_id is required")
	}
	if req.SplitQuantity <= 0 {
		return nil, apperr.NewValidation("split_quantity must be positive")
	}

	target := req.TargetBatch
	if target == "" {
		target = uuid.New().String()
	}

	var remaining int
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.store.GetOrderByIDTx(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}

		remaining = order.Quantity - req.SplitQuantity
		if remaining < 0 {
			return apperr.NewValidation(fmt.Sprintf(
				"split quantity %d exceeds order quantity %d", req.SplitQuantity, order.Quantity))
		}

		originalBatch := ""
		if order.ShipmentBatch.Valid {
			originalBatch = order.ShipmentBatch.String
		}

		if remaining > 0 {
			if err := s.store.UpdateSplitOriginalTx(ctx, tx, order.ID, remaining); err != nil {
				return err
			}

			split := *order
			split.ID = 0
			split.Quantity = req.SplitQuantity
			split.Status = models.OrderStatusOrdered
			split.ShipmentBatch = toNullString(target)
			split.ShipmentNo = toNullString("")
			if err := s.store.InsertOrdersTx(ctx, tx, []models.Order{split}); err != nil {
				return err
			}
		} else {
			if err := s.store.MoveOrderToBatchTx(ctx, tx, order.ID, target); err != nil {
				return err
			}
		}

		// Re-point the old merge group, original included, so every
		// member ends up on the same batch id.
		if originalBatch != "" && originalBatch != target {
			if err := s.store.RepointBatchTx(ctx, tx, originalBatch, target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.TxRollbacksTotal.WithLabelValues("split").Inc()
		return nil, apperr.NewTransaction("split", err)
	}

	util.OrdersSplitTotal.Inc()
	s.logger.Info("Order split",
		zap.Int64("order_id", req.OrderID),
		zap.Int("split_quantity", req.SplitQuantity),
		zap.Int("remaining", remaining),
		zap.String("batch", target))

	return &SplitResult{Batch: target, RemainingQuantity: remaining}, nil
}

// GenerateNumbers allocates shipment numbers for the selected orders at
// one location. Existing numbers on the selection are cleared first, the
// current daily maximum is read excluding the selection, and the
// sequence continues from there. Everything runs inside one transaction
// so concurrent generation runs cannot allocate the same number.
func (s *ShipmentService) GenerateNumbers(ctx context.Context, orderIDs []int64, location string) ([]NumberAssignment, error) {
	ctx, span := util.StartSpan(ctx, "ShipmentService.GenerateNumbers")
	defer span.End()

	if len(orderIDs) == 0 {
		return nil, apperr.NewValidation("no orders selected")
	}
	prefix, err := PrefixForLocation(location)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		lockKey := "shipnum:" + location
		ok, err := s.redis.AcquireLock(ctx, lockKey, s.numberLockTTL)
		if err != nil {
			s.logger.Warn("Number lock unavailable, relying on transaction", zap.Error(err))
		} else if !ok {
			return nil, apperr.NewConflict("number generation", location)
		} else {
			defer func() {
				if err := s.redis.ReleaseLock(context.Background(), lockKey); err != nil {
					s.logger.Warn("Failed to release number lock", zap.Error(err))
				}
			}()
		}
	}

	datePart := DatePart(s.now())
	pattern := prefix + datePart + "%"

	var assignments []NumberAssignment
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.store.ClearShipmentNosTx(ctx, tx, orderIDs); err != nil {
			return err
		}

		orders, err := s.store.GetOrdersByIDsTx(ctx, tx, orderIDs)
		if err != nil {
			return err
		}
		if len(orders) != len(orderIDs) {
			return apperr.NewNotFound("order", strconv.Itoa(len(orderIDs)-len(orders))+" of selected ids")
		}

		last, err := s.store.MaxShipmentNoTx(ctx, tx, pattern, location, orderIDs)
		if err != nil {
			return err
		}
		startSeq := SequenceFromShipmentNo(last) + 1

		assignments = PlanNumberAssignments(orders, prefix, datePart, startSeq)
		for _, a := range assignments {
			if err := s.store.SetShipmentNoTx(ctx, tx, a.OrderID, a.ShipmentNo); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.TxRollbacksTotal.WithLabelValues("generate_numbers").Inc()
		return nil, apperr.NewTransaction("generate-numbers", err)
	}

	util.ShipmentNumbersGeneratedTotal.WithLabelValues(location).Add(float64(len(assignments)))

	numbers := make([]string, 0, len(assignments))
	for _, a := range assignments {
		numbers = append(numbers, a.ShipmentNo)
	}
	s.publish(ctx, models.EventTypeShipmentNumbersAssigned, &models.ShipmentNumbersAssignedEvent{
		BaseEvent: s.baseEvent(models.EventTypeShipmentNumbersAssigned),
		Location:  location,
		Numbers:   numbers,
	})
	return assignments, nil
}

// CompletionResult reports one row of a bulk completion upload.
type CompletionResult struct {
	ShipmentNo string `json:"shipment_no"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// Complete records dispatch for each uploaded row keyed by shipment
// number: the order moves to dispatched with its tracking number and
// weight, and the shipment row is marked shipped. Rows with an unknown
// shipment number are reported as failures without aborting the rest.
func (s *ShipmentService) Complete(ctx context.Context, rows []models.CompletionRow) ([]CompletionResult, error) {
	ctx, span := util.StartSpan(ctx, "ShipmentService.Complete")
	defer span.End()

	if len(rows) == 0 {
		return nil, apperr.NewValidation("no completion rows in upload")
	}
	for _, row := range rows {
		if row.ShipmentNo == "" {
			return nil, apperr.NewValidation("completion row missing shipment number")
		}
	}

	results := make([]CompletionResult, 0, len(rows))
	var dispatched []string
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, row := range rows {
			n, err := s.store.CompleteOrderByShipmentNoTx(ctx, tx, row.ShipmentNo, row.TrackingNumber, row.Weight)
			if err != nil {
				return err
			}
			if n == 0 {
				results = append(results, CompletionResult{
					ShipmentNo: row.ShipmentNo,
					Error:      "shipment number not found",
				})
				continue
			}

			if err := s.store.MarkShipmentShippedTx(ctx, tx, row.ShipmentNo, row.TrackingNumber, row.Weight); err != nil {
				return err
			}
			results = append(results, CompletionResult{ShipmentNo: row.ShipmentNo, Success: true})
			dispatched = append(dispatched, row.ShipmentNo)
		}
		return nil
	})
	if err != nil {
		util.TxRollbacksTotal.WithLabelValues("complete").Inc()
		return nil, apperr.NewTransaction("complete", err)
	}

	util.ShipmentsDispatchedTotal.Add(float64(len(dispatched)))
	s.logger.Info("Completion upload processed",
		zap.Int("dispatched", len(dispatched)),
		zap.Int("failed", len(results)-len(dispatched)))

	s.publish(ctx, models.EventTypeShipmentDispatched, &models.ShipmentDispatchedEvent{
		BaseEvent:   s.baseEvent(models.EventTypeShipmentDispatched),
		ShipmentNos: dispatched,
		FailedCount: len(results) - len(dispatched),
	})
	return results, nil
}

// ListShipments returns a page of shipment rows.
func (s *ShipmentService) ListShipments(ctx context.Context, p store.ListShipmentsParams) ([]models.Shipment, int, error) {
	return s.store.ListShipments(ctx, p)
}

// ExportRows loads the confirmed orders awaiting dispatch for one
// location, in shipment number order, for the export templates.
func (s *ShipmentService) ExportRows(ctx context.Context, location string) ([]store.ExportRow, error) {
	if !models.ValidLocation(location) {
		return nil, apperr.NewValidation("unknown shipment location", location)
	}
	return s.store.GetExportRows(ctx, location)
}

func (s *ShipmentService) baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: s.now(),
	}
}

func (s *ShipmentService) publish(ctx context.Context, eventType string, event interface{}) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, eventType, event); err != nil {
		s.logger.Error("Failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
