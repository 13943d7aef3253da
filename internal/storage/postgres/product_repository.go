package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, description, price, stock, category_id, active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		product.ID, product.Name, product.Description, product.Price,
		product.Stock, product.CategoryID, product.Active,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, product.CategoryID)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, category_id, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.Description, &product.Price,
		&product.Stock, &product.CategoryID, &product.Active,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

func (r *productRepository) List(categoryID string) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, name, description, price, stock, category_id, active, created_at, updated_at
		FROM products
	`
	args := []interface{}{}
	if categoryID != "" {
		query += " WHERE category_id = $1"
		args = append(args, categoryID)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID, &product.Name, &product.Description, &product.Price,
			&product.Stock, &product.CategoryID, &product.Active,
			&product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *productRepository) Update(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    description = $2,
		    price = $3,
		    stock = $4,
		    category_id = $5,
		    active = $6,
		    updated_at = $7
		WHERE id = $8
	`,
		product.Name, product.Description, product.Price, product.Stock,
		product.CategoryID, product.Active, product.UpdatedAt, product.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, product.CategoryID)
		}
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (r *productRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

// Restock возвращает qty единиц на остаток (компенсация отмены заказа).
func (r *productRepository) Restock(productID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("%w: restock quantity %d", domain.ErrInvalidQuantity, qty)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("restock product %s: %w", productID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for restock: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
