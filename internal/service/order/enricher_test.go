package ordersvc

import (
	"errors"
	"testing"
	"time"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

func TestEnrichOrder(t *testing.T) {
	now := time.Now().UTC()
	order := domain.Order{
		ID:               "order-1",
		Status:           domain.OrderStatusPending,
		TotalAmountMinor: 4500,
		TotalItems:       1,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "p-1", Quantity: 1, PriceMinor: 4500, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	products := map[string]domain.Product{
		// Актуальная цена каталога отличается от снимка в заказе.
		"p-1": {ID: "p-1", Name: "Keyboard", PriceMinor: 9900},
	}

	view, err := EnrichOrder(order, products)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Items[0].Name != "Keyboard" {
		t.Fatalf("expected catalog name, got %s", view.Items[0].Name)
	}
	// Цена в ответе — снимок на момент создания, не актуальная цена каталога.
	if view.Items[0].PriceMinor != 4500 {
		t.Fatalf("expected price snapshot 4500, got %d", view.Items[0].PriceMinor)
	}
	if view.Status != "pending" {
		t.Fatalf("unexpected status: %s", view.Status)
	}
}

func TestEnrichOrder_MissingProduct(t *testing.T) {
	order := domain.Order{
		ID:    "order-1",
		Items: []domain.OrderItem{{ProductID: "p-gone", Quantity: 1}},
	}

	_, err := EnrichOrder(order, map[string]domain.Product{})
	if !errors.Is(err, domain.ErrProductMismatch) {
		t.Fatalf("expected ErrProductMismatch, got %v", err)
	}
}

func TestCollectProductIDs(t *testing.T) {
	orders := []domain.Order{
		{Items: []domain.OrderItem{{ProductID: "p-1"}, {ProductID: "p-2"}}},
		{Items: []domain.OrderItem{{ProductID: "p-2"}, {ProductID: "p-3"}}},
	}

	ids := CollectProductIDs(orders)
	if len(ids) != 3 {
		t.Fatalf("expected 3 distinct ids across page, got %v", ids)
	}
}
