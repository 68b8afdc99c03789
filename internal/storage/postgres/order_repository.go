package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// CreateWithItems пишет заказ и его позиции в одной транзакции.
func (r *orderRepository) CreateWithItems(order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w: %v", domain.ErrStorage, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, status, total_amount_minor, total_items, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		order.ID, string(order.Status), order.TotalAmountMinor, order.TotalItems,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, fmt.Errorf("order id taken: %w", domain.ErrStorage)
		}
		return domain.Order{}, fmt.Errorf("insert order: %w: %v", domain.ErrStorage, err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, quantity, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			item.ID, order.ID, item.ProductID, item.Quantity, item.PriceMinor, item.CreatedAt,
		); err != nil {
			return domain.Order{}, fmt.Errorf("insert order item: %w: %v", domain.ErrStorage, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w: %v", domain.ErrStorage, err)
	}

	return order, nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.Order
	var status string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, total_amount_minor, total_items, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &status, &order.TotalAmountMinor, &order.TotalItems,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w: %v", domain.ErrStorage, err)
	}
	order.Status = domain.OrderStatus(status)

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

// List возвращает страницу заказов в порядке created_at DESC, id DESC.
func (r *orderRepository) List(status domain.OrderStatus, page, pageSize int) ([]domain.Order, error) {
	if page < 1 {
		return nil, domain.ErrPageInvalid
	}
	if pageSize < 1 {
		return nil, domain.ErrPageSizeInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	offset := (page - 1) * pageSize

	var (
		rows *sql.Rows
		err  error
	)

	if status != "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, status, total_amount_minor, total_items, created_at, updated_at
			FROM orders
			WHERE status = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`, string(status), pageSize, offset)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, status, total_amount_minor, total_items, created_at, updated_at
			FROM orders
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`, pageSize, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, pageSize)
	for rows.Next() {
		var order domain.Order
		var statusRaw string
		if err := rows.Scan(
			&order.ID, &statusRaw, &order.TotalAmountMinor, &order.TotalItems,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w: %v", domain.ErrStorage, err)
		}
		order.Status = domain.OrderStatus(statusRaw)

		items, err := r.loadItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w: %v", domain.ErrStorage, err)
	}

	return orders, nil
}

func (r *orderRepository) CountByStatus(status domain.OrderStatus) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		total int64
		err   error
	)

	if status != "" {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM orders WHERE status = $1
		`, string(status)).Scan(&total)
	} else {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM orders
		`).Scan(&total)
	}
	if err != nil {
		return 0, fmt.Errorf("count orders: %w: %v", domain.ErrStorage, err)
	}

	return total, nil
}

func (r *orderRepository) UpdateStatus(id string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    updated_at = $2
		WHERE id = $3
	`, string(status), updatedAt, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w: %v", domain.ErrStorage, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("rows affected: %w: %v", domain.ErrStorage, err)
	}
	if affected == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	return r.Get(id)
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.PriceMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w: %v", domain.ErrStorage, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w: %v", domain.ErrStorage, err)
	}

	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
