package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, ожидает обработки.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — заказ взят в работу.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted — заказ исполнен.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён до исполнения.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition сообщает, допустим ли переход между статусами.
// Разрешённые переходы: pending → processing → completed и pending → cancelled.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return to == OrderStatusProcessing || to == OrderStatusCompleted || to == OrderStatusCancelled
	case OrderStatusProcessing:
		return to == OrderStatusCompleted
	default:
		return false
	}
}

// OrderItem — одна позиция заказа. Идентичность составная (OrderID, ProductID):
// не больше одной строки на товар в заказе. Price — снапшот цены на момент
// сборки заказа, последующие изменения каталога его не трогают.
type OrderItem struct {
	OrderID   string
	ProductID string
	Quantity  int32
	Price     decimal.Decimal
	Subtotal  decimal.Decimal
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции. Заказы не удаляются:
// отмена — это переход статуса, а не удаление записи.
type Order struct {
	ID        string
	UserID    string
	Status    OrderStatus
	Total     decimal.Decimal
	Items     []OrderItem
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrOwnerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrEmptyOrder)
	}
	if o.Total.IsNegative() {
		errs = append(errs, ErrTotalNegative)
	}

	// Сверяем сумму заказа с суммой позиций: price * quantity.
	seen := make(map[string]struct{}, len(o.Items))
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrPriceNegative)
		}
		if _, dup := seen[item.ProductID]; dup {
			errs = append(errs, ErrDuplicateProduct)
		}
		seen[item.ProductID] = struct{}{}
		calc = calc.Add(item.Subtotal)
	}
	if !calc.Round(2).Equal(o.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// StatusEvent описывает одно изменение статуса в истории заказа.
type StatusEvent struct {
	OrderID  string
	Status   OrderStatus
	Reason   string
	Occurred time.Time
}
