package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
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

// Place записывает заказ одной транзакцией: заголовок, условное списание
// остатков по каждой позиции, позиции и итоговая сумма. Списание идёт
// через UPDATE ... WHERE stock >= qty — авторитетная проверка резерва
// живёт здесь, а не в сервисном слое.
func (r *orderRepository) Place(plan domain.OrderPlan, ownerID string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if len(plan.Lines) == 0 {
		return domain.Order{}, domain.ErrEmptyOrder
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Status:    domain.OrderStatusPending,
		Total:     plan.Total,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, status, total, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		order.ID, order.UserID, string(order.Status), order.Total,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		if err = r.reserveStockTx(ctx, tx, line.Product.ID, line.Quantity); err != nil {
			return domain.Order{}, err
		}

		item := domain.OrderItem{
			OrderID:   order.ID,
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			Subtotal:  line.Subtotal,
			CreatedAt: now,
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, quantity, price, subtotal, created_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			item.OrderID, item.ProductID, item.Quantity, item.Price, item.Subtotal, item.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				err = fmt.Errorf("%w: product %s", domain.ErrDuplicateProduct, item.ProductID)
				return domain.Order{}, err
			}
			return domain.Order{}, fmt.Errorf("insert order item: %w", err)
		}
		items = append(items, item)
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit place order: %w", err)
	}

	order.Items = items
	return order, nil
}

// reserveStockTx условно списывает qty единиц; 0 затронутых строк означает
// либо нехватку остатка, либо отсутствие активного товара.
func (r *orderRepository) reserveStockTx(ctx context.Context, tx *sql.Tx, productID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("%w: product %s: quantity %d", domain.ErrInvalidQuantity, productID, qty)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND active
		  AND stock >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock for %s: %w", productID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for stock reserve: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var (
		available int32
		active    bool
	)
	err = tx.QueryRowContext(ctx, `SELECT stock, active FROM products WHERE id = $1`, productID).
		Scan(&available, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return fmt.Errorf("check product stock: %w", err)
	}
	if !active {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}

	return fmt.Errorf("%w: product %s: requested %d, available %d",
		domain.ErrInsufficientStock, productID, qty, available)
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.Order
	var status string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, total, version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.UserID, &status, &order.Total,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) ListByUser(userID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, user_id, status, total, version, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		var status string
		if err := rows.Scan(
			&order.ID, &order.UserID, &status, &order.Total,
			&order.Version, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)

		items, err := r.loadItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    total = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
		  AND version = $5
	`,
		string(order.Status),
		order.Total,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, product_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.OrderID, &item.ProductID, &item.Quantity,
			&item.Price, &item.Subtotal, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

var _ domain.OrderRepository = (*orderRepository)(nil)
