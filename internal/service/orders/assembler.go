package orders

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// ItemRequest — запрошенная позиция заказа: товар и количество.
type ItemRequest struct {
	ProductID string
	Quantity  int32
}

// Assembler валидирует запрошенные позиции, резолвит товары и считает цены.
// Только чтение: остатки здесь не трогаются, мутации отложены до записи,
// чтобы отклонённый план не оставлял частичного состояния.
type Assembler struct {
	products domain.ProductRepository
}

// NewAssembler создаёт сборщик поверх репозитория товаров.
func NewAssembler(products domain.ProductRepository) *Assembler {
	return &Assembler{products: products}
}

// Assemble превращает запрошенные позиции в OrderPlan либо возвращает первую
// ошибку валидации. Порядок проверок фиксирован: пустой заказ, дубликаты,
// количество, существование товара, остаток. Проверка остатка здесь
// совещательная: авторитетная происходит внутри транзакции записи.
func (a *Assembler) Assemble(items []ItemRequest) (domain.OrderPlan, error) {
	if len(items) == 0 {
		return domain.OrderPlan{}, domain.ErrEmptyOrder
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ProductID]; dup {
			// Дубликаты не склеиваем: консолидация количеств — задача клиента.
			return domain.OrderPlan{}, fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return domain.OrderPlan{}, fmt.Errorf("%w: product %s: got %d",
				domain.ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
	}

	plan := domain.OrderPlan{Lines: make([]domain.PlanLine, 0, len(items))}
	for _, item := range items {
		product, err := a.products.Get(item.ProductID)
		if err != nil {
			return domain.OrderPlan{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
		}
		if !product.Active {
			return domain.OrderPlan{}, fmt.Errorf("%w: %s is inactive", domain.ErrProductNotFound, item.ProductID)
		}
		if product.Stock < item.Quantity {
			return domain.OrderPlan{}, fmt.Errorf("%w: product %s: requested %d, available %d",
				domain.ErrInsufficientStock, product.ID, item.Quantity, product.Stock)
		}

		// Снапшот цены фиксируется здесь; запись его не перечитывает.
		price := product.Price
		plan.Lines = append(plan.Lines, domain.PlanLine{
			Product:  product,
			Quantity: item.Quantity,
			Price:    price,
			Subtotal: price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}

	plan.Total = plan.ComputeTotal()
	return plan, nil
}
