package catalog

import (
	"context"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

// MockService — конфигурируемая заглушка ProductCatalog для тестов.
// Возвращает товары из Products для каждого запрошенного id; неизвестные id
// просто отсутствуют в ответе, как у настоящего каталога.
type MockService struct {
	Products    map[string]domain.Product
	ValidateErr error

	ValidateCalls int
	LastIDs       []string
}

// NewMockService возвращает mock с каталогом из products.
func NewMockService(products ...domain.Product) *MockService {
	index := make(map[string]domain.Product, len(products))
	for _, product := range products {
		index[product.ID] = product
	}
	return &MockService{Products: index}
}

// Validate возвращает заранее настроенную ошибку либо найденные товары
// и считает вызовы.
func (m *MockService) Validate(_ context.Context, ids []string) ([]domain.Product, error) {
	m.ValidateCalls++
	m.LastIDs = append([]string(nil), ids...)

	if m.ValidateErr != nil {
		return nil, m.ValidateErr
	}

	found := make([]domain.Product, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if product, ok := m.Products[id]; ok {
			found = append(found, product)
		}
	}
	return found, nil
}

var _ domain.ProductCatalog = (*MockService)(nil)

// DemoProducts — небольшой каталог для запуска сервиса без брокеров.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{ID: "demo-espresso", Name: "Espresso Beans 1kg", PriceMinor: 1500},
		{ID: "demo-moka", Name: "Moka Pot", PriceMinor: 4500},
		{ID: "demo-grinder", Name: "Hand Grinder", PriceMinor: 9900},
		{ID: "demo-kettle", Name: "Gooseneck Kettle", PriceMinor: 6200},
	}
}
