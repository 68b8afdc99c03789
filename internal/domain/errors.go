package domain

import "errors"

var (
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQuantityInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount_minor must be non-negative")
	// Ошибка несоответствия агрегатов заказа и его позиций.
	ErrTotalsMismatch = errors.New("order totals do not match items")
	// ErrStatusInvalid — статус не входит в закрытый набор жизненного цикла.
	ErrStatusInvalid = errors.New("unknown order status")
	// ErrStatusTransition — запрошенный переход статуса запрещён.
	ErrStatusTransition = errors.New("order status transition is not allowed")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPageInvalid — номер страницы меньше 1.
	ErrPageInvalid = errors.New("page must be greater than zero")
	// ErrPageSizeInvalid — размер страницы меньше 1.
	ErrPageSizeInvalid = errors.New("page_size must be greater than zero")
	// ErrProductNotFound — каталог не подтвердил один из запрошенных товаров.
	ErrProductNotFound = errors.New("product not found in catalog")
	// ErrProductMismatch — нарушение контракта: позиция ссылается на товар,
	// которого нет в уже провалидированном наборе каталога.
	ErrProductMismatch = errors.New("order item does not match validated products")
	// ErrCatalogUnavailable — каталог недоступен или не ответил в срок.
	ErrCatalogUnavailable = errors.New("product catalog is unavailable")
	// ErrStorage — сбой операции хранилища.
	ErrStorage = errors.New("storage operation failed")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// Ошибка отсутствующего idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// Ошибка отсутствующего хэша запроса для idempotency-записи.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — ключ уже занят другой записью.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is used with a different request")
)

// IsInvalidArgument проверяет, относится ли ошибка к некорректному входу запроса.
func IsInvalidArgument(err error) bool {
	for _, target := range []error{
		ErrItemsRequired,
		ErrItemProductRequired,
		ErrItemQuantityInvalid,
		ErrItemPriceInvalid,
		ErrAmountNegative,
		ErrTotalsMismatch,
		ErrStatusInvalid,
		ErrStatusTransition,
		ErrPageInvalid,
		ErrPageSizeInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
