package ordersvc

import (
	"fmt"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

// ItemRequest описывает позицию заказа во входящем запросе: клиент присылает
// только товар и количество, цена всегда берётся из каталога.
type ItemRequest struct {
	ProductID string
	Quantity  int32
}

// Aggregate содержит вычисленные агрегаты нового заказа и его позиции
// со снимками цен каталога.
type Aggregate struct {
	TotalAmountMinor int64
	TotalItems       int32
	Items            []domain.OrderItem
}

// ValidateItems проверяет входной список позиций до обращения к каталогу.
func ValidateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return domain.ErrItemsRequired
	}
	for i, item := range items {
		if item.ProductID == "" {
			return fmt.Errorf("items[%d]: %w", i, domain.ErrItemProductRequired)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("items[%d]: %w", i, domain.ErrItemQuantityInvalid)
		}
	}
	return nil
}

// DistinctProductIDs возвращает уникальные идентификаторы товаров
// в порядке первого появления. Каталог получает каждый id один раз.
func DistinctProductIDs(items []ItemRequest) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// IndexProducts строит индекс подтверждённых товаров по их идентификаторам.
func IndexProducts(products []domain.Product) map[string]domain.Product {
	index := make(map[string]domain.Product, len(products))
	for _, product := range products {
		index[product.ID] = product
	}
	return index
}

// BuildAggregate вычисляет агрегаты заказа по запрошенным позициям и
// подтверждённым товарам каталога. Цены берутся только из products;
// позиция без подтверждённого товара — нарушение контракта вызова.
func BuildAggregate(items []ItemRequest, products map[string]domain.Product) (Aggregate, error) {
	agg := Aggregate{Items: make([]domain.OrderItem, 0, len(items))}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return Aggregate{}, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrProductMismatch)
		}
		agg.Items = append(agg.Items, domain.OrderItem{
			ProductID:  product.ID,
			Quantity:   item.Quantity,
			PriceMinor: product.PriceMinor,
		})
		agg.TotalAmountMinor += int64(item.Quantity) * product.PriceMinor
		agg.TotalItems += item.Quantity
	}
	return agg, nil
}
