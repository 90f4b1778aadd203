package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/export"
	"github.com/NZSopa/orderdhash-sub001/internal/ingest"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
	"github.com/NZSopa/orderdhash-sub001/internal/service"
	"github.com/NZSopa/orderdhash-sub001/internal/store"
	"github.com/NZSopa/orderdhash-sub001/internal/util"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler contains HTTP handlers
type Handler struct {
	ingestService   *service.IngestService
	shipmentService *service.ShipmentService
}

// NewHandler creates a new HTTP handler
func NewHandler(ingestService *service.IngestService, shipmentService *service.ShipmentService) *Handler {
	return &Handler{
		ingestService:   ingestService,
		shipmentService: shipmentService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders/ingest", h.ingestOrders)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/summary", h.orderSummary)
		v1.GET("/orders/pending", h.pendingSummary)
		v1.DELETE("/orders", h.deleteAllOrders)

		v1.GET("/shipments", h.listShipments)
		v1.GET("/shipments/export", h.exportShipments)
		v1.POST("/shipments/confirm", h.confirmShipments)
		v1.POST("/shipments/cancel", h.cancelShipments)
		v1.POST("/shipments/cancel-complete", h.cancelCompleteShipments)
		v1.POST("/shipments/merge", h.mergeOrders)
		v1.POST("/shipments/merge-cancel", h.mergeCancelOrders)
		v1.POST("/shipments/split", h.splitOrder)
		v1.POST("/shipments/generate-numbers", h.generateNumbers)
		v1.POST("/shipments/complete", h.completeShipments)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// ingestOrders accepts a multipart upload of marketplace export files
// and runs them through the ingestion pipeline. Yahoo uploads carry two
// files (order info and product info); Amazon carries one.
func (h *Handler) ingestOrders(c *gin.Context) {
	channel := c.PostForm("channel")
	if channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel is required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid multipart form",
			"details": err.Error(),
		})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	var contents [][]byte
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   fmt.Sprintf("failed to open %s", fh.Filename),
				"details": err.Error(),
			})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   fmt.Sprintf("failed to read %s", fh.Filename),
				"details": err.Error(),
			})
			return
		}
		contents = append(contents, data)
	}

	resp, err := h.ingestService.Ingest(c.Request.Context(), ingest.NormalizeRequest{
		Channel: channel,
		Files:   contents,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// listOrders handles the paged order listing
func (h *Handler) listOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	orders, total, err := h.ingestService.ListOrders(c.Request.Context(), store.ListOrdersParams{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
		Date:   c.Query("date"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// orderSummary re-runs the anomaly report over one calendar date
func (h *Handler) orderSummary(c *gin.Context) {
	report, err := h.ingestService.Summary(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// pendingSummary returns daily counts of orders awaiting shipment
func (h *Handler) pendingSummary(c *gin.Context) {
	rows, err := h.ingestService.PendingSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": rows})
}

// deleteAllOrders handles the explicit bulk clear
func (h *Handler) deleteAllOrders(c *gin.Context) {
	n, err := h.ingestService.DeleteAllOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// listShipments handles the paged shipment listing
func (h *Handler) listShipments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	shipments, total, err := h.shipmentService.ListShipments(c.Request.Context(), store.ListShipmentsParams{
		Page:     page,
		Limit:    limit,
		Search:   c.Query("search"),
		Location: c.Query("location"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shipments": shipments,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// exportShipments renders the confirmed orders of one location in the
// requested carrier format and streams the workbook back.
func (h *Handler) exportShipments(c *gin.Context) {
	format := c.Query("format")
	location := c.Query("location")

	if !export.ValidFormat(format) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown export format: " + format})
		return
	}
	if format == export.FormatKSE && location != models.LocationAusKN {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kse export is only available for aus_kn"})
		return
	}

	rows, err := h.shipmentService.ExportRows(c.Request.Context(), location)
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := export.Build(format, rows)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("shipment_%s_%s_%s.xlsx", format, location, time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

type confirmRequest struct {
	Pairs []service.ConfirmPair `json:"pairs" binding:"required"`
}

// confirmShipments handles the confirm transition
func (h *Handler) confirmShipments(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.shipmentService.Confirm(c.Request.Context(), req.Pairs); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"confirmed": len(req.Pairs)})
}

type orderIDsRequest struct {
	OrderIDs []int64 `json:"order_ids" binding:"required"`
}

// cancelShipments handles the pre-dispatch cancel transition
func (h *Handler) cancelShipments(c *gin.Context) {
	var req orderIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.shipmentService.Cancel(c.Request.Context(), req.OrderIDs); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": len(req.OrderIDs)})
}

type shipmentIDsRequest struct {
	ShipmentIDs []int64 `json:"shipment_ids" binding:"required"`
}

// cancelCompleteShipments rolls dispatched shipments back to processing
func (h *Handler) cancelCompleteShipments(c *gin.Context) {
	var req shipmentIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.shipmentService.CancelComplete(c.Request.Context(), req.ShipmentIDs); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reverted": len(req.ShipmentIDs)})
}

type mergeRequest struct {
	OrderIDs []int64 `json:"order_ids" binding:"required"`
	Batch    string  `json:"batch"`
}

// mergeOrders assigns the selected orders a shared shipment batch
func (h *Handler) mergeOrders(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	batch, err := h.shipmentService.Merge(c.Request.Context(), req.OrderIDs, req.Batch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch": batch, "merged": len(req.OrderIDs)})
}

// mergeCancelOrders removes the selected orders from their merge groups
func (h *Handler) mergeCancelOrders(c *gin.Context) {
	var req orderIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.shipmentService.MergeCancel(c.Request.Context(), req.OrderIDs); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unmerged": len(req.OrderIDs)})
}

// splitOrder moves part of an order into a shipment batch
func (h *Handler) splitOrder(c *gin.Context) {
	var req service.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.shipmentService.Split(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type generateNumbersRequest struct {
	OrderIDs []int64 `json:"order_ids" binding:"required"`
	Location string  `json:"location" binding:"required"`
}

// generateNumbers allocates shipment numbers for the selected orders
func (h *Handler) generateNumbers(c *gin.Context) {
	var req generateNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	assignments, err := h.shipmentService.GenerateNumbers(c.Request.Context(), req.OrderIDs, req.Location)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

// completeShipments accepts the completion workbook and records
// dispatch per row. Unknown shipment numbers are reported per row while
// the rest of the batch proceeds.
func (h *Handler) completeShipments(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "failed to open upload",
			"details": err.Error(),
		})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "failed to read upload",
			"details": err.Error(),
		})
		return
	}

	rows, err := export.ParseCompletionUpload(data)
	if err != nil {
		respondError(c, err)
		return
	}

	results, err := h.shipmentService.Complete(c.Request.Context(), rows)
	if err != nil {
		respondError(c, err)
		return
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"completed": len(results) - failed,
		"failed":    failed,
	})
}

// respondError maps the error taxonomy onto HTTP statuses. Wrapped
// causes are honored, so a validation failure inside a rolled-back
// transaction still surfaces as 400.
func respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
