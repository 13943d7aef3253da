package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/authz"
	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Service реализует операции каталога: товары и категории. Чтение доступно
// любому аутентифицированному пользователю, мутации — только админу.
type Service struct {
	products   domain.ProductRepository
	categories domain.CategoryRepository
	logger     *log.Entry
}

// NewService конструирует сервис каталога.
func NewService(products domain.ProductRepository, categories domain.CategoryRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

// ListProducts возвращает товары, опционально по категории.
func (s *Service) ListProducts(identity *domain.Identity, categoryID string) ([]domain.Product, error) {
	if _, err := authz.RequireAuthenticated(identity); err != nil {
		return nil, err
	}
	if categoryID != "" {
		if _, err := s.categories.Get(categoryID); err != nil {
			return nil, err
		}
	}
	return s.products.List(categoryID)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(identity *domain.Identity, id string) (domain.Product, error) {
	if _, err := authz.RequireAuthenticated(identity); err != nil {
		return domain.Product{}, err
	}
	return s.products.Get(id)
}

// CreateProduct создаёт товар. Только админ.
func (s *Service) CreateProduct(identity *domain.Identity, product domain.Product) (domain.Product, error) {
	if _, err := authz.RequireRole(identity, domain.RoleAdmin); err != nil {
		return domain.Product{}, err
	}

	product.Name = strings.TrimSpace(product.Name)
	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	now := time.Now().UTC()
	product.ID = uuid.New().String()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Create(product); err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("product created")

	return product, nil
}

// UpdateProduct перезаписывает изменяемые поля товара. Только админ.
func (s *Service) UpdateProduct(identity *domain.Identity, product domain.Product) (domain.Product, error) {
	if _, err := authz.RequireRole(identity, domain.RoleAdmin); err != nil {
		return domain.Product{}, err
	}
	if product.ID == "" {
		return domain.Product{}, domain.ErrProductNotFound
	}

	current, err := s.products.Get(product.ID)
	if err != nil {
		return domain.Product{}, err
	}

	product.Name = strings.TrimSpace(product.Name)
	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(product); err != nil {
		return domain.Product{}, err
	}

	s.logger.WithField("product_id", product.ID).Info("product updated")

	return product, nil
}

// DeleteProduct удаляет товар из каталога. Только админ.
func (s *Service) DeleteProduct(identity *domain.Identity, id string) error {
	if _, err := authz.RequireRole(identity, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.products.Delete(id); err != nil {
		return err
	}

	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// ListCategories возвращает все категории.
func (s *Service) ListCategories(identity *domain.Identity) ([]domain.Category, error) {
	if _, err := authz.RequireAuthenticated(identity); err != nil {
		return nil, err
	}
	return s.categories.List()
}

// GetCategory возвращает категорию по идентификатору.
func (s *Service) GetCategory(identity *domain.Identity, id string) (domain.Category, error) {
	if _, err := authz.RequireAuthenticated(identity); err != nil {
		return domain.Category{}, err
	}
	return s.categories.Get(id)
}

// CreateCategory создаёт категорию с уникальным именем. Только админ.
func (s *Service) CreateCategory(identity *domain.Identity, category domain.Category) (domain.Category, error) {
	if _, err := authz.RequireRole(identity, domain.RoleAdmin); err != nil {
		return domain.Category{}, err
	}

	category.Name = strings.TrimSpace(category.Name)
	if errs := category.ValidateInvariants(); len(errs) > 0 {
		return domain.Category{}, errors.Join(errs...)
	}

	now := time.Now().UTC()
	category.ID = uuid.New().String()
	category.Active = true
	category.CreatedAt = now
	category.UpdatedAt = now

	if err := s.categories.Create(category); err != nil {
		return domain.Category{}, err
	}

	s.logger.WithFields(log.Fields{
		"category_id": category.ID,
		"name":        category.Name,
	}).Info("category created")

	return category, nil
}

// DeleteCategory удаляет категорию, если на неё не ссылаются товары. Только админ.
func (s *Service) DeleteCategory(identity *domain.Identity, id string) error {
	if _, err := authz.RequireRole(identity, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.categories.Delete(id); err != nil {
		return err
	}

	s.logger.WithField("category_id", id).Info("category deleted")
	return nil
}
