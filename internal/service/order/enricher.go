package ordersvc

import (
	"fmt"
	"time"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

// ItemView — позиция заказа в ответах API: снимок цены дополнен
// актуальным названием товара из каталога.
type ItemView struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
}

// OrderView — заказ, обогащённый данными каталога, для ответов API.
type OrderView struct {
	ID               string      `json:"id"`
	Status           string      `json:"status"`
	TotalAmountMinor int64       `json:"total_amount_minor"`
	TotalItems       int32       `json:"total_items"`
	Items            []ItemView  `json:"items"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// EnrichOrder дополняет заказ названиями товаров из products. Для каждой
// позиции товар обязан присутствовать в индексе: заказ хранит только
// провалидированные каталогом id, поэтому промах означает рассинхронизацию
// и превращается в ErrProductMismatch.
func EnrichOrder(order domain.Order, products map[string]domain.Product) (OrderView, error) {
	view := OrderView{
		ID:               order.ID,
		Status:           string(order.Status),
		TotalAmountMinor: order.TotalAmountMinor,
		TotalItems:       order.TotalItems,
		Items:            make([]ItemView, 0, len(order.Items)),
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, item := range order.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return OrderView{}, fmt.Errorf("order %s product %s: %w", order.ID, item.ProductID, domain.ErrProductMismatch)
		}
		view.Items = append(view.Items, ItemView{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Name:       product.Name,
			Quantity:   item.Quantity,
			PriceMinor: item.PriceMinor,
		})
	}
	return view, nil
}

// CollectProductIDs собирает уникальные идентификаторы товаров по всем
// заказам страницы: каталогу уходит один батч-запрос на страницу.
func CollectProductIDs(orders []domain.Order) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, order := range orders {
		for _, item := range order.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
