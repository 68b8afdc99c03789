package restsvc

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vcherkasov/orders-ms/internal/domain"
	ordersvc "github.com/vcherkasov/orders-ms/internal/service/order"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// OrderHandler реализует публичный HTTP API поверх сервиса заказов.
type OrderHandler struct {
	orders   *ordersvc.Service
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
}

// NewOrderHandler конструирует handler. idemRepo опционален: без него
// мутации выполняются без проверки Idempotency-Key.
func NewOrderHandler(orders *ordersvc.Service, idemRepo domain.IdempotencyRepository, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.New().WithField("component", "rest-api")
	}
	return &OrderHandler{
		orders:   orders,
		idemRepo: idemRepo,
		logger:   logger,
	}
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type createOrderRequest struct {
	Items []createOrderItemRequest `json:"items"`
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type timelineEventView struct {
	Type       string `json:"type"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type orderDetailsResponse struct {
	Order    ordersvc.OrderView  `json:"order"`
	Timeline []timelineEventView `json:"timeline,omitempty"`
}

// CreateOrder обрабатывает POST /api/v1/orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorBody(c, http.StatusBadRequest, codeInvalidArgument, "request body is not a valid order")
		return
	}

	items := make([]ordersvc.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ordersvc.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	view, err := h.orders.Create(c.Request.Context(), ordersvc.CreateRequest{Items: items})
	if err != nil {
		h.writeError(c, "create_order", err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// ListOrders обрабатывает GET /api/v1/orders.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, err := queryInt(c, "page", defaultPage)
	if err != nil {
		writeErrorBody(c, http.StatusBadRequest, codeInvalidArgument, "page must be an integer")
		return
	}
	pageSize, err := queryInt(c, "page_size", defaultPageSize)
	if err != nil {
		writeErrorBody(c, http.StatusBadRequest, codeInvalidArgument, "page_size must be an integer")
		return
	}

	result, err := h.orders.FindAll(c.Request.Context(), ordersvc.ListRequest{
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.writeError(c, "list_orders", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrder обрабатывает GET /api/v1/orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	details, err := h.orders.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "get_order", err)
		return
	}

	resp := orderDetailsResponse{Order: details.Order}
	for _, event := range details.Timeline {
		resp.Timeline = append(resp.Timeline, timelineEventView{
			Type:       event.Type,
			Reason:     event.Reason,
			OccurredAt: event.Occurred.UTC().Format(timeFormat),
		})
	}

	c.JSON(http.StatusOK, resp)
}

// ChangeOrderStatus обрабатывает PATCH /api/v1/orders/:id/status.
func (h *OrderHandler) ChangeOrderStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorBody(c, http.StatusBadRequest, codeInvalidArgument, "status is required")
		return
	}

	view, err := h.orders.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, "change_order_status", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return value, nil
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

const (
	codeInvalidArgument     = "invalid_argument"
	codeNotFound            = "not_found"
	codeValidationFailed    = "validation_failed"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeInternal            = "internal"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeErrorBody(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeError переводит доменную ошибку в HTTP-статус и тело ошибки.
func (h *OrderHandler) writeError(c *gin.Context, operation string, err error) {
	switch {
	case domain.IsInvalidArgument(err):
		writeErrorBody(c, http.StatusBadRequest, codeInvalidArgument, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeErrorBody(c, http.StatusNotFound, codeNotFound, domain.ErrOrderNotFound.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		writeErrorBody(c, http.StatusUnprocessableEntity, codeValidationFailed, err.Error())
	case errors.Is(err, domain.ErrCatalogUnavailable):
		writeErrorBody(c, http.StatusServiceUnavailable, codeUpstreamUnavailable, domain.ErrCatalogUnavailable.Error())
	case errors.Is(err, domain.ErrStorage):
		h.logger.WithError(err).WithField("operation", operation).Error("storage failure")
		writeErrorBody(c, http.StatusInternalServerError, codeInternal, "failed to persist order")
	default:
		h.logger.WithError(err).WithField("operation", operation).Error("unexpected failure")
		writeErrorBody(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
