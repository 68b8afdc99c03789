package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// CreateWithItems сохраняет новый заказ вместе с позициями, если ID ещё не занят.
func (r *orderRepositoryInMemory) CreateWithItems(order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.Order{}, domain.ErrStorage
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	return cloneOrder(order), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// List возвращает страницу заказов, отсортированных по времени создания
// (новые первыми), с опциональным фильтром по статусу.
func (r *orderRepositoryInMemory) List(status domain.OrderStatus, page, pageSize int) ([]domain.Order, error) {
	if page < 1 {
		return nil, domain.ErrPageInvalid
	}
	if pageSize < 1 {
		return nil, domain.ErrPageSizeInvalid
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if status != "" && order.Status != status {
			continue
		}
		matched = append(matched, order)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return []domain.Order{}, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]domain.Order, 0, end-offset)
	for _, order := range matched[offset:end] {
		result = append(result, cloneOrder(order))
	}
	return result, nil
}

// CountByStatus возвращает число заказов со статусом status (пустой — все).
func (r *orderRepositoryInMemory) CountByStatus(status domain.OrderStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, order := range r.items {
		if status != "" && order.Status != status {
			continue
		}
		total++
	}
	return total, nil
}

// UpdateStatus перезаписывает статус заказа и возвращает обновлённый заказ.
func (r *orderRepositoryInMemory) UpdateStatus(id string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = updatedAt
	r.items[id] = order
	return cloneOrder(order), nil
}

// cloneOrder копирует заказ вместе со срезом позиций.
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = make([]domain.OrderItem, len(order.Items))
	copy(clone.Items, order.Items)
	return clone
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
