package ordersvc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vcherkasov/orders-ms/internal/domain"
	"github.com/vcherkasov/orders-ms/internal/service/catalog"
	ordersvc "github.com/vcherkasov/orders-ms/internal/service/order"
	"github.com/vcherkasov/orders-ms/internal/storage/memory"
)

type serviceFixture struct {
	service *ordersvc.Service
	repo    domain.OrderRepository
	mock    *catalog.MockService
	outbox  interface {
		domain.OutboxRepository
		AllPending() []domain.OutboxMessage
	}
	timeline domain.TimelineRepository
}

func newFixture(products ...domain.Product) *serviceFixture {
	repo := memory.NewOrderRepository()
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()
	mock := catalog.NewMockService(products...)

	service := ordersvc.NewService(repo, mock, timeline, outbox, nil, nil)
	return &serviceFixture{
		service:  service,
		repo:     repo,
		mock:     mock,
		outbox:   outbox,
		timeline: timeline,
	}
}

func defaultProducts() []domain.Product {
	return []domain.Product{
		{ID: "p-1", Name: "Keyboard", PriceMinor: 4500},
		{ID: "p-2", Name: "Mouse", PriceMinor: 1500},
	}
}

func TestService_Create(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	view, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if view.ID == "" {
		t.Fatal("expected generated order id")
	}
	if view.Status != "pending" {
		t.Fatalf("new order must be pending, got %s", view.Status)
	}
	if view.TotalAmountMinor != 10500 {
		t.Fatalf("expected total 10500, got %d", view.TotalAmountMinor)
	}
	if view.TotalItems != 3 {
		t.Fatalf("expected 3 total items, got %d", view.TotalItems)
	}
	if view.Items[0].Name != "Keyboard" {
		t.Fatalf("expected enriched name, got %s", view.Items[0].Name)
	}

	// Создание валидирует товары одним запросом, без повторного
	// обращения ради обогащения ответа.
	if fx.mock.ValidateCalls != 1 {
		t.Fatalf("expected single catalog call, got %d", fx.mock.ValidateCalls)
	}

	// Заказ действительно сохранён.
	stored, err := fx.repo.Get(view.ID)
	if err != nil {
		t.Fatalf("stored order not found: %v", err)
	}
	if stored.TotalAmountMinor != 10500 {
		t.Fatalf("stored totals mismatch: %d", stored.TotalAmountMinor)
	}

	// Создание оставляет событие в outbox и в таймлайне.
	if pending := fx.outbox.AllPending(); len(pending) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(pending))
	}
	events, err := fx.timeline.List(view.ID)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected 1 timeline event, got %d (err=%v)", len(events), err)
	}
}

func TestService_Create_DeduplicatesCatalogIDs(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	_, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{
			{ProductID: "p-1", Quantity: 1},
			{ProductID: "p-1", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if len(fx.mock.LastIDs) != 1 || fx.mock.LastIDs[0] != "p-1" {
		t.Fatalf("expected deduplicated catalog request, got %v", fx.mock.LastIDs)
	}
}

func TestService_Create_ProductNotFound(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	_, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-missing", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	// Ничего не должно быть сохранено.
	total, err := fx.repo.CountByStatus("")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no orders persisted, got %d", total)
	}
}

func TestService_Create_CatalogUnavailable(t *testing.T) {
	fx := newFixture(defaultProducts()...)
	fx.mock.ValidateErr = domain.ErrCatalogUnavailable

	_, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestService_Create_InvalidItems(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	cases := []struct {
		name  string
		items []ordersvc.ItemRequest
		want  error
	}{
		{"empty", nil, domain.ErrItemsRequired},
		{"no product", []ordersvc.ItemRequest{{Quantity: 1}}, domain.ErrItemProductRequired},
		{"zero qty", []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: 0}}, domain.ErrItemQuantityInvalid},
		{"negative qty", []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: -2}}, domain.ErrItemQuantityInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{Items: tc.items})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	// Каталог при невалидном входе не вызывается.
	if fx.mock.ValidateCalls != 0 {
		t.Fatalf("catalog must not be called for invalid input, got %d calls", fx.mock.ValidateCalls)
	}
}

func TestService_FindAll(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	for i := 0; i < 5; i++ {
		if _, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
			Items: []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: 1}},
		}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	callsAfterCreate := fx.mock.ValidateCalls

	result, err := fx.service.FindAll(context.Background(), ordersvc.ListRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(result.Data) != 2 {
		t.Fatalf("expected 2 orders on page, got %d", len(result.Data))
	}
	if result.Meta.Total != 5 {
		t.Fatalf("expected total 5, got %d", result.Meta.Total)
	}
	if result.Meta.Page != 1 {
		t.Fatalf("expected page 1, got %d", result.Meta.Page)
	}
	if result.Meta.LastPage != 3 {
		t.Fatalf("expected lastPage 3, got %d", result.Meta.LastPage)
	}

	// Вся страница обогащается одним запросом к каталогу.
	if fx.mock.ValidateCalls != callsAfterCreate+1 {
		t.Fatalf("expected single catalog call per page, got %d extra", fx.mock.ValidateCalls-callsAfterCreate)
	}

	if result.Data[0].Items[0].Name != "Keyboard" {
		t.Fatalf("expected enriched name, got %s", result.Data[0].Items[0].Name)
	}
}

func TestService_FindAll_EmptyPage(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	result, err := fx.service.FindAll(context.Background(), ordersvc.ListRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(result.Data) != 0 {
		t.Fatalf("expected empty page, got %d", len(result.Data))
	}
	if result.Meta.Total != 0 || result.Meta.LastPage != 0 {
		t.Fatalf("unexpected meta: %+v", result.Meta)
	}

	// Пустая страница не требует обращения к каталогу.
	if fx.mock.ValidateCalls != 0 {
		t.Fatalf("catalog must not be called for empty page, got %d", fx.mock.ValidateCalls)
	}
}

func TestService_FindAll_StatusFilter(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	first, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-2", Quantity: 1}},
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := fx.service.ChangeStatus(context.Background(), first.ID, "paid"); err != nil {
		t.Fatalf("change status failed: %v", err)
	}

	paid, err := fx.service.FindAll(context.Background(), ordersvc.ListRequest{Status: "paid", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if paid.Meta.Total != 1 || len(paid.Data) != 1 {
		t.Fatalf("unexpected filter result: %+v", paid.Meta)
	}
	if paid.Data[0].ID != first.ID {
		t.Fatalf("expected order %s, got %s", first.ID, paid.Data[0].ID)
	}

	if _, err := fx.service.FindAll(context.Background(), ordersvc.ListRequest{Status: "shipped", Page: 1, PageSize: 10}); !errors.Is(err, domain.ErrStatusInvalid) {
		t.Fatalf("expected ErrStatusInvalid, got %v", err)
	}
}

func TestService_FindAll_InvalidPagination(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	if _, err := fx.service.FindAll(context.Background(), ordersvc.ListRequest{Page: 0, PageSize: 10}); !errors.Is(err, domain.ErrPageInvalid) {
		t.Fatalf("expected ErrPageInvalid, got %v", err)
	}
	if _, err := fx.service.FindAll(context.Background(), ordersvc.ListRequest{Page: 1, PageSize: 0}); !errors.Is(err, domain.ErrPageSizeInvalid) {
		t.Fatalf("expected ErrPageSizeInvalid, got %v", err)
	}
}

func TestService_FindOne(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	created, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-2", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	details, err := fx.service.FindOne(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("find one failed: %v", err)
	}
	if details.Order.ID != created.ID {
		t.Fatalf("unexpected order: %s", details.Order.ID)
	}
	if details.Order.Items[0].Name != "Mouse" {
		t.Fatalf("expected enriched name, got %s", details.Order.Items[0].Name)
	}
	if len(details.Timeline) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(details.Timeline))
	}

	if _, err := fx.service.FindOne(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestService_FindOne_EnrichmentMismatch(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	created, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Товар исчез из каталога после создания заказа.
	delete(fx.mock.Products, "p-1")

	if _, err := fx.service.FindOne(context.Background(), created.ID); !errors.Is(err, domain.ErrProductMismatch) {
		t.Fatalf("expected ErrProductMismatch, got %v", err)
	}
}

func TestService_ChangeStatus(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	created, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	paid, err := fx.service.ChangeStatus(context.Background(), created.ID, "paid")
	if err != nil {
		t.Fatalf("change status failed: %v", err)
	}
	if paid.Status != "paid" {
		t.Fatalf("expected paid, got %s", paid.Status)
	}

	delivered, err := fx.service.ChangeStatus(context.Background(), created.ID, "delivered")
	if err != nil {
		t.Fatalf("change status failed: %v", err)
	}
	if delivered.Status != "delivered" {
		t.Fatalf("expected delivered, got %s", delivered.Status)
	}

	events, err := fx.timeline.List(created.ID)
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	// Созданиe + два перехода.
	if len(events) != 3 {
		t.Fatalf("expected 3 timeline events, got %d", len(events))
	}
}

func TestService_ChangeStatus_SameStatusNoOp(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	created, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	view, err := fx.service.ChangeStatus(context.Background(), created.ID, "pending")
	if err != nil {
		t.Fatalf("same-status change must be a no-op: %v", err)
	}
	if view.Status != "pending" {
		t.Fatalf("unexpected status: %s", view.Status)
	}

	// No-op не оставляет новых событий.
	events, err := fx.timeline.List(created.ID)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected 1 timeline event, got %d (err=%v)", len(events), err)
	}
}

func TestService_ChangeStatus_Rejected(t *testing.T) {
	fx := newFixture(defaultProducts()...)

	created, err := fx.service.Create(context.Background(), ordersvc.CreateRequest{
		Items: []ordersvc.ItemRequest{{ProductID: "p-1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// pending -> delivered перескакивает оплату.
	if _, err := fx.service.ChangeStatus(context.Background(), created.ID, "delivered"); !errors.Is(err, domain.ErrStatusTransition) {
		t.Fatalf("expected ErrStatusTransition, got %v", err)
	}

	if _, err := fx.service.ChangeStatus(context.Background(), created.ID, "shipped"); !errors.Is(err, domain.ErrStatusInvalid) {
		t.Fatalf("expected ErrStatusInvalid, got %v", err)
	}

	// Из терминального статуса пути нет.
	if _, err := fx.service.ChangeStatus(context.Background(), created.ID, "cancelled"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := fx.service.ChangeStatus(context.Background(), created.ID, "paid"); !errors.Is(err, domain.ErrStatusTransition) {
		t.Fatalf("expected ErrStatusTransition from terminal, got %v", err)
	}

	if _, err := fx.service.ChangeStatus(context.Background(), "missing", "paid"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
