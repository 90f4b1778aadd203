package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/broker"
	"github.com/NZSopa/orderdhash-sub001/internal/ingest"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
	"github.com/NZSopa/orderdhash-sub001/internal/store"
	"github.com/NZSopa/orderdhash-sub001/internal/util"
)

// IngestService drives the ingestion pipeline: normalize the uploaded
// export, run the anomaly report, and persist the accepted lines in one
// transaction. The report is advisory and never blocks persistence.
type IngestService struct {
	store          *store.Store
	normalizer     *ingest.Normalizer
	eventPublisher *broker.EventPublisher
	threshold      float64
	logger         *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	store *store.Store,
	normalizer *ingest.Normalizer,
	eventPublisher *broker.EventPublisher,
	highValueThreshold float64,
) *IngestService {
	return &IngestService{
		store:          store,
		normalizer:     normalizer,
		eventPublisher: eventPublisher,
		threshold:      highValueThreshold,
		logger:         util.GetLogger(),
	}
}

// IngestResponse summarizes one ingestion run.
type IngestResponse struct {
	Inserted  int               `json:"inserted"`
	RowErrors []ingest.RowError `json:"row_errors"`
	Report    ingest.Report     `json:"report"`
	Summary   map[string]int    `json:"summary"`
}

// Ingest parses the uploaded files and stores the normalized lines.
func (s *IngestService) Ingest(ctx context.Context, req ingest.NormalizeRequest) (*IngestResponse, error) {
	ctx, span := util.StartSpan(ctx, "IngestService.Ingest")
	defer span.End()

	start := time.Now()
	defer func() {
		util.IngestLatency.Observe(time.Since(start).Seconds())
	}()

	result, err := s.normalizer.Normalize(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(result.Lines) == 0 && len(result.RowErrors) == 0 {
		return nil, apperr.NewValidation("no order rows in upload")
	}

	for range result.RowErrors {
		util.OrderRowsRejectedTotal.WithLabelValues(req.Channel, "row_defect").Inc()
	}

	report := ingest.Detect(result.Lines, s.threshold)

	if len(result.Lines) > 0 {
		err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.store.InsertOrdersTx(ctx, tx, result.Lines)
		})
		if err != nil {
			util.TxRollbacksTotal.WithLabelValues("ingest").Inc()
			return nil, apperr.NewTransaction("ingest", err)
		}
	}

	util.OrdersIngestedTotal.WithLabelValues(req.Channel).Add(float64(len(result.Lines)))
	s.logger.Info("Orders ingested",
		zap.String("channel", req.Channel),
		zap.Int("inserted", len(result.Lines)),
		zap.Int("rejected", len(result.RowErrors)))

	if s.eventPublisher != nil {
		event := &models.OrdersIngestedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrdersIngested,
				Timestamp: time.Now(),
			},
			Channel:       req.Channel,
			OrderCount:    len(result.Lines),
			RejectedCount: len(result.RowErrors),
		}
		if err := s.eventPublisher.PublishOrdersIngested(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrdersIngested event", zap.Error(err))
		}
	}

	return &IngestResponse{
		Inserted:  len(result.Lines),
		RowErrors: result.RowErrors,
		Report:    report,
		Summary: map[string]int{
			"total":   len(result.Lines) + len(result.RowErrors),
			"success": len(result.Lines),
			"error":   len(result.RowErrors),
		},
	}, nil
}

// Summary re-runs the anomaly report over the stored orders of one
// calendar date.
func (s *IngestService) Summary(ctx context.Context, date string) (*ingest.Report, error) {
	if date == "" {
		return nil, apperr.NewValidation("date is required")
	}

	orders, err := s.store.GetOrdersByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders for %s: %w", date, err)
	}

	report := ingest.Detect(orders, s.threshold)
	return &report, nil
}

// PendingSummary returns daily counts of orders awaiting shipment.
func (s *IngestService) PendingSummary(ctx context.Context) ([]store.PendingCount, error) {
	return s.store.GetPendingSummary(ctx)
}

// ListOrders returns a page of stored orders.
func (s *IngestService) ListOrders(ctx context.Context, p store.ListOrdersParams) ([]models.Order, int, error) {
	return s.store.ListOrders(ctx, p)
}

// DeleteAllOrders is the explicit bulk-clear operation.
func (s *IngestService) DeleteAllOrders(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteAllOrders(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Warn("All orders deleted", zap.Int64("count", n))
	return n, nil
}
