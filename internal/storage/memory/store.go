// Пакет memory — in-memory реализация хранилища для локальной разработки и
// тестов. Каталог и заказы живут под одним мьютексом, поэтому размещение
// заказа (резерв остатков + запись заказа) атомарно, как и в postgres.
package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Store держит состояние каталога и заказов под общим мьютексом.
type Store struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	categories map[string]domain.Category
	orders     map[string]domain.Order
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		products:   make(map[string]domain.Product),
		categories: make(map[string]domain.Category),
		orders:     make(map[string]domain.Order),
	}
}

// Products возвращает репозиторий товаров поверх общего состояния.
func (s *Store) Products() domain.ProductRepository {
	return &productRepositoryInMemory{store: s}
}

// Categories возвращает репозиторий категорий поверх общего состояния.
func (s *Store) Categories() domain.CategoryRepository {
	return &categoryRepositoryInMemory{store: s}
}

// Orders возвращает репозиторий заказов поверх общего состояния.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepositoryInMemory{store: s}
}
