package domain

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// Create сохраняет новый товар. Ссылка на несуществующую категорию — ErrCategoryNotFound.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
	// List возвращает товары, опционально отфильтрованные по категории.
	List(categoryID string) ([]Product, error)
	// Update перезаписывает изменяемые поля товара.
	Update(product Product) error
	// Delete удаляет товар из каталога.
	Delete(id string) error
	// Restock возвращает qty единиц на остаток товара (компенсация отмены).
	Restock(productID string, qty int32) error
}

// CategoryRepository описывает требования к хранилищу категорий.
type CategoryRepository interface {
	// Create сохраняет новую категорию. Занятое имя — ErrCategoryNameTaken.
	Create(category Category) error
	// Get возвращает категорию по идентификатору или ErrCategoryNotFound.
	Get(id string) (Category, error)
	// List возвращает все категории.
	List() ([]Category, error)
	// Delete удаляет категорию; ErrCategoryInUse, пока на неё ссылаются товары.
	Delete(id string) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Place атомарно записывает заказ по плану: заголовок, позиции,
	// резервирование остатков и итоговая сумма — одна транзакция.
	// Любая ошибка шага откатывает всё; частичных заказов не бывает.
	Place(plan OrderPlan, ownerID string) (Order, error)
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByUser возвращает заказы пользователя с опциональным лимитом.
	ListByUser(userID string, limit int) ([]Order, error)
	// Save применяет обновление статуса с учётом optimistic locking.
	Save(order Order) error
}

// HistoryRepository хранит историю смен статуса заказа.
type HistoryRepository interface {
	Append(event StatusEvent) error
	List(orderID string) ([]StatusEvent, error)
}
