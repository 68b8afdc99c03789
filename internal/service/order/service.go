package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vcherkasov/orders-ms/internal/domain"
	"github.com/vcherkasov/orders-ms/internal/metrics"
)

const (
	timelineEventOrderCreated       = "OrderCreated"
	timelineEventOrderStatusChanged = "OrderStatusChanged"

	outboxAggregateOrder    = "order"
	outboxEventOrderCreated = "order.created"
	outboxEventOrderStatus  = "order.status_changed"

	catalogResultOK          = "ok"
	catalogResultNotFound    = "not_found"
	catalogResultUnavailable = "unavailable"
	catalogResultError       = "error"
)

// CreateRequest описывает вход операции создания заказа.
type CreateRequest struct {
	Items []ItemRequest
}

// ListRequest описывает параметры страницы списка заказов.
type ListRequest struct {
	// Status — опциональный фильтр; пустая строка означает "все заказы".
	Status   string
	Page     int
	PageSize int
}

// PageMeta — метаданные пагинации в ответе списка.
type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"lastPage"`
}

// ListResult — страница обогащённых заказов с метаданными.
type ListResult struct {
	Data []OrderView `json:"data"`
	Meta PageMeta    `json:"meta"`
}

// OrderDetails — обогащённый заказ вместе с таймлайном событий.
type OrderDetails struct {
	Order    OrderView              `json:"order"`
	Timeline []domain.TimelineEvent `json:"timeline,omitempty"`
}

// Service реализует операции над заказами поверх репозитория и каталога товаров.
type Service struct {
	repo     domain.OrderRepository
	catalog  domain.ProductCatalog
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
}

// NewService конструирует сервис с зависимостями. timeline, outbox и metrics
// опциональны: их отсутствие отключает соответствующую функциональность.
func NewService(
	repo domain.OrderRepository,
	catalog domain.ProductCatalog,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	orderMetrics *metrics.OrderMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		repo:     repo,
		catalog:  catalog,
		timeline: timeline,
		outbox:   outbox,
		metrics:  orderMetrics,
		logger:   logger,
	}
}

// Create валидирует позиции в каталоге, вычисляет агрегаты и атомарно
// сохраняет заказ. Ответ обогащается из уже полученных товаров каталога,
// без повторного запроса.
func (s *Service) Create(ctx context.Context, req CreateRequest) (OrderView, error) {
	started := time.Now()
	defer func() {
		s.recordOperation("create", started)
	}()

	if err := ValidateItems(req.Items); err != nil {
		s.recordOrderCreated("invalid")
		return OrderView{}, err
	}

	ids := DistinctProductIDs(req.Items)
	products, err := s.validateProducts(ctx, ids)
	if err != nil {
		s.recordOrderCreated("catalog_error")
		return OrderView{}, err
	}

	agg, err := BuildAggregate(req.Items, products)
	if err != nil {
		// Контракт каталога подтверждает каждый запрошенный id; сюда попадаем
		// только при его нарушении.
		s.recordOrderCreated("catalog_error")
		return OrderView{}, err
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(agg.Items))
	for _, item := range agg.Items {
		item.ID = uuid.NewString()
		item.CreatedAt = now
		items = append(items, item)
	}

	order := domain.Order{
		ID:               uuid.NewString(),
		Status:           domain.OrderStatusPending,
		TotalAmountMinor: agg.TotalAmountMinor,
		TotalItems:       agg.TotalItems,
		Items:            items,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		s.recordOrderCreated("invalid")
		return OrderView{}, errors.Join(errs...)
	}

	created, err := s.repo.CreateWithItems(order)
	if err != nil {
		s.logger.WithError(err).Error("failed to persist order")
		s.recordOrderCreated("storage_error")
		return OrderView{}, fmt.Errorf("create order: %w", err)
	}

	s.appendTimelineEvent(created.ID, timelineEventOrderCreated, string(created.Status))
	s.enqueueOutbox(created.ID, outboxEventOrderCreated, orderEventPayload{
		OrderID:          created.ID,
		Status:           string(created.Status),
		TotalAmountMinor: created.TotalAmountMinor,
		TotalItems:       created.TotalItems,
		OccurredAt:       now,
	})
	s.recordOrderCreated("ok")

	view, err := EnrichOrder(created, products)
	if err != nil {
		s.recordEnrichmentFailure()
		return OrderView{}, err
	}
	return view, nil
}

// FindAll возвращает страницу заказов с метаданными пагинации. Названия
// товаров всей страницы запрашиваются у каталога одним батчем.
func (s *Service) FindAll(ctx context.Context, req ListRequest) (ListResult, error) {
	started := time.Now()
	defer func() {
		s.recordOperation("list", started)
	}()

	if req.Page < 1 {
		return ListResult{}, domain.ErrPageInvalid
	}
	if req.PageSize < 1 {
		return ListResult{}, domain.ErrPageSizeInvalid
	}

	var status domain.OrderStatus
	if req.Status != "" {
		parsed, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			return ListResult{}, err
		}
		status = parsed
	}

	total, err := s.repo.CountByStatus(status)
	if err != nil {
		s.logger.WithError(err).Error("failed to count orders")
		return ListResult{}, fmt.Errorf("count orders: %w", err)
	}

	orders, err := s.repo.List(status, req.Page, req.PageSize)
	if err != nil {
		s.logger.WithError(err).Error("failed to list orders")
		return ListResult{}, fmt.Errorf("list orders: %w", err)
	}

	views, err := s.enrichOrders(ctx, orders)
	if err != nil {
		return ListResult{}, err
	}

	lastPage := int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	return ListResult{
		Data: views,
		Meta: PageMeta{
			Total:    total,
			Page:     req.Page,
			LastPage: lastPage,
		},
	}, nil
}

// FindOne возвращает обогащённый заказ с таймлайном или ErrOrderNotFound.
func (s *Service) FindOne(ctx context.Context, id string) (OrderDetails, error) {
	started := time.Now()
	defer func() {
		s.recordOperation("get", started)
	}()

	order, err := s.loadOrder(id, "FindOne")
	if err != nil {
		return OrderDetails{}, err
	}

	views, err := s.enrichOrders(ctx, []domain.Order{order})
	if err != nil {
		return OrderDetails{}, err
	}

	return OrderDetails{
		Order:    views[0],
		Timeline: s.buildTimeline(order.ID),
	}, nil
}

// ChangeStatus переводит заказ в новый статус. Запрещённый переход, включая
// любой переход из терминального статуса, отклоняется с ErrStatusTransition.
// Повторная установка текущего статуса — no-op без записи.
func (s *Service) ChangeStatus(ctx context.Context, id, rawStatus string) (OrderView, error) {
	started := time.Now()
	defer func() {
		s.recordOperation("change_status", started)
	}()

	next, err := domain.ParseOrderStatus(rawStatus)
	if err != nil {
		return OrderView{}, err
	}

	order, err := s.loadOrder(id, "ChangeStatus")
	if err != nil {
		return OrderView{}, err
	}

	if order.Status != next {
		if !order.Status.CanTransitionTo(next) {
			return OrderView{}, fmt.Errorf("%s -> %s: %w", order.Status, next, domain.ErrStatusTransition)
		}

		now := time.Now().UTC()
		updated, err := s.repo.UpdateStatus(order.ID, next, now)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to update order status")
			if errors.Is(err, domain.ErrOrderNotFound) {
				return OrderView{}, err
			}
			return OrderView{}, fmt.Errorf("update order status: %w", err)
		}
		order = updated

		s.appendTimelineEvent(order.ID, timelineEventOrderStatusChanged, string(next))
		s.enqueueOutbox(order.ID, outboxEventOrderStatus, orderEventPayload{
			OrderID:          order.ID,
			Status:           string(next),
			TotalAmountMinor: order.TotalAmountMinor,
			TotalItems:       order.TotalItems,
			OccurredAt:       now,
		})
		s.recordStatusTransition(string(next))
	}

	views, err := s.enrichOrders(ctx, []domain.Order{order})
	if err != nil {
		return OrderView{}, err
	}
	return views[0], nil
}

// enrichOrders собирает уникальные товары всех заказов, валидирует их одним
// запросом к каталогу и обогащает каждый заказ.
func (s *Service) enrichOrders(ctx context.Context, orders []domain.Order) ([]OrderView, error) {
	views := make([]OrderView, 0, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	ids := CollectProductIDs(orders)
	products, err := s.validateProducts(ctx, ids)
	if err != nil {
		// Хранилище содержит только провалидированные id: отсутствие товара
		// в каталоге на этапе чтения — рассинхронизация, а не ошибка клиента.
		if errors.Is(err, domain.ErrProductNotFound) {
			s.recordEnrichmentFailure()
			return nil, fmt.Errorf("enrich orders: %w", domain.ErrProductMismatch)
		}
		return nil, err
	}

	for _, order := range orders {
		view, err := EnrichOrder(order, products)
		if err != nil {
			s.recordEnrichmentFailure()
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// validateProducts запрашивает подтверждение товаров у каталога и проверяет,
// что каждый запрошенный id присутствует в ответе.
func (s *Service) validateProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	started := time.Now()
	products, err := s.catalog.Validate(ctx, ids)
	elapsed := time.Since(started)
	if err != nil {
		result := catalogResultError
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			result = catalogResultNotFound
		case errors.Is(err, domain.ErrCatalogUnavailable):
			result = catalogResultUnavailable
		}
		s.recordCatalogRequest(result, elapsed)
		s.logger.WithError(err).WithField("product_count", len(ids)).Warn("catalog validation failed")
		return nil, err
	}

	index := IndexProducts(products)
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			s.recordCatalogRequest(catalogResultNotFound, elapsed)
			return nil, fmt.Errorf("product %s: %w", id, domain.ErrProductNotFound)
		}
	}

	s.recordCatalogRequest(catalogResultOK, elapsed)
	return index, nil
}

func (s *Service) loadOrder(orderID, operation string) (domain.Order, error) {
	order, err := s.repo.Get(orderID)
	if err == nil {
		return order, nil
	}

	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.Order{}, err
	}

	s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"order_id":  orderID,
	}).Error("failed to load order")
	return domain.Order{}, fmt.Errorf("load order: %w", err)
}

// orderEventPayload — тело события заказа в outbox.
type orderEventPayload struct {
	OrderID          string    `json:"order_id"`
	Status           string    `json:"status"`
	TotalAmountMinor int64     `json:"total_amount_minor"`
	TotalItems       int32     `json:"total_items"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func (s *Service) enqueueOutbox(orderID, eventType string, payload orderEventPayload) {
	if s.outbox == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to encode outbox payload")
		return
	}

	msg := domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: outboxAggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       body,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("failed to enqueue outbox event")
	}
}

func (s *Service) appendTimelineEvent(orderID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("failed to append timeline event")
	}
}

func (s *Service) buildTimeline(orderID string) []domain.TimelineEvent {
	if s.timeline == nil {
		return nil
	}
	events, err := s.timeline.List(orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to list timeline events")
		return nil
	}
	return events
}

func (s *Service) recordOperation(operation string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOperationDuration(operation, time.Since(started))
}

func (s *Service) recordOrderCreated(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOrderCreated(result)
}

func (s *Service) recordStatusTransition(status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordStatusTransition(status)
}

func (s *Service) recordCatalogRequest(result string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCatalogRequest(result, duration)
}

func (s *Service) recordEnrichmentFailure() {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordEnrichmentFailure()
}
