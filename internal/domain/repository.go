package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateWithItems атомарно сохраняет заказ вместе с позициями (всё или ничего)
	// и возвращает сохранённый заказ.
	CreateWithItems(order Order) (Order, error)
	// Get возвращает заказ с позициями или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// List возвращает страницу заказов с опциональным фильтром по статусу
	// (пустой статус — без фильтра). Порядок детерминирован на неизменных данных.
	List(status OrderStatus, page, pageSize int) ([]Order, error)
	// CountByStatus возвращает число заказов со статусом status
	// (пустой статус — общее число).
	CountByStatus(status OrderStatus) (int64, error)
	// UpdateStatus перезаписывает статус заказа и возвращает обновлённый заказ.
	// Легальность перехода здесь не проверяется — это забота оркестратора.
	UpdateStatus(id string, status OrderStatus, updatedAt time.Time) (Order, error)
}
