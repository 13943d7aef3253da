package domain

import "errors"

var (
	// ErrUnauthenticated возвращается, когда запрос пришёл без проверенной identity.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden возвращается, когда роль или владение ресурсом не дают права на операцию.
	ErrForbidden = errors.New("not authorized")

	// ErrProductNotFound возвращается, если товар не найден или неактивен.
	ErrProductNotFound = errors.New("product not found")
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")

	// ErrEmptyOrder — заказ без единой позиции.
	ErrEmptyOrder = errors.New("order must contain at least one item")
	// ErrDuplicateProduct — один и тот же товар встречается в заказе дважды.
	ErrDuplicateProduct = errors.New("duplicate product in order items")
	// ErrInvalidQuantity — количество позиции не положительное.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrInsufficientStock — на складе меньше единиц, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition — недопустимый переход статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrCategoryNameTaken — имя категории уже занято.
	ErrCategoryNameTaken = errors.New("category name already exists")
	// ErrCategoryInUse — категорию нельзя удалить, пока на неё ссылаются товары.
	ErrCategoryInUse = errors.New("category is referenced by products")

	// Ошибки валидации каталога.
	ErrProductNameRequired  = errors.New("product name is required")
	ErrPriceNegative        = errors.New("price must be non-negative")
	ErrPriceScale           = errors.New("price must have at most 2 decimal places")
	ErrStockNegative        = errors.New("stock must be non-negative")
	ErrCategoryRequired     = errors.New("category_id is required")
	ErrCategoryNameRequired = errors.New("category name is required")

	// Ошибки валидации заказа.
	ErrOwnerRequired  = errors.New("user_id is required")
	ErrTotalNegative  = errors.New("total must be non-negative")
	ErrTotalMismatch  = errors.New("order total does not match items sum")
	ErrOrderIDMissing = errors.New("order_id is required")

	// ErrOrderWrite — ошибка хранилища во время атомарной записи заказа.
	ErrOrderWrite = errors.New("order write failed")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки слоя идемпотентности.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key is used with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsAuthError проверяет, относится ли ошибка к слою авторизации.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrForbidden)
}
