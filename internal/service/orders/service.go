package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/authz"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

const defaultListLimit = 100

// Service реализует размещение заказов и переходы жизненного цикла поверх
// доменных репозиториев. Все мутирующие операции проходят через authz ровно
// один раз до обращения к хранилищу.
type Service struct {
	orders    domain.OrderRepository
	products  domain.ProductRepository
	history   domain.HistoryRepository
	outbox    domain.OutboxRepository
	assembler *Assembler
	metrics   *metrics.OrderMetrics
	logger    *log.Entry

	// restockOnCancel возвращает резерв на склад при отмене. Исходное
	// поведение — не возвращать, поэтому по умолчанию выключено.
	restockOnCancel bool
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает метрики заказов (nil — метрики отключены, для тестов).
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRestockOnCancel включает возврат остатков при отмене заказа.
func WithRestockOnCancel(enabled bool) Option {
	return func(s *Service) {
		s.restockOnCancel = enabled
	}
}

// NewService конструирует сервис заказов с зависимостями.
func NewService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	history domain.HistoryRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
	options ...Option,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	s := &Service{
		orders:    orders,
		products:  products,
		history:   history,
		outbox:    outbox,
		assembler: NewAssembler(products),
		logger:    logger,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Place размещает заказ: авторизация, сборка плана (только чтение), затем
// атомарная запись. Остатки могли измениться между сборкой и записью, поэтому
// авторитетная проверка резерва живёт внутри транзакции записи.
func (s *Service) Place(identity *domain.Identity, items []ItemRequest) (domain.Order, error) {
	start := time.Now()

	caller, err := authz.RequireAuthenticated(identity)
	if err != nil {
		return domain.Order{}, err
	}

	plan, err := s.assembler.Assemble(items)
	if err != nil {
		s.recordRejection(err)
		return domain.Order{}, err
	}

	order, err := s.orders.Place(plan, caller.ID)
	if err != nil {
		s.recordRejection(err)
		s.logger.WithError(err).WithField("user_id", caller.ID).Warn("order placement failed")
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderPlaced()
		s.metrics.RecordPlaceDuration(time.Since(start))
		var units int64
		for _, item := range order.Items {
			units += int64(item.Quantity)
		}
		s.metrics.RecordUnitsReserved(units)
	}

	s.appendHistory(order.ID, order.Status, "", order.CreatedAt)
	s.emitEvent(&order, "order.placed", map[string]interface{}{
		"total": order.Total.StringFixed(2),
		"items": len(order.Items),
	})

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  caller.ID,
		"total":    order.Total.StringFixed(2),
	}).Info("order placed")

	return order, nil
}

// Get возвращает заказ с историей статусов. Доступ: владелец или админ.
func (s *Service) Get(identity *domain.Identity, orderID string) (domain.Order, []domain.StatusEvent, error) {
	if _, err := authz.RequireAuthenticated(identity); err != nil {
		return domain.Order{}, nil, err
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	if _, err := authz.RequireOwnerOrAdmin(identity, order.UserID); err != nil {
		return domain.Order{}, nil, err
	}

	events, err := s.history.List(order.ID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to list order history")
		events = nil
	}

	return order, events, nil
}

// List возвращает заказы пользователя. Свои заказы видит любой
// аутентифицированный, чужие — только админ.
func (s *Service) List(identity *domain.Identity, userID string, limit int) ([]domain.Order, error) {
	caller, err := authz.RequireAuthenticated(identity)
	if err != nil {
		return nil, err
	}

	if userID == "" {
		userID = caller.ID
	}
	if userID != caller.ID {
		if _, err := authz.RequireRole(identity, domain.RoleAdmin); err != nil {
			return nil, err
		}
	}

	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.orders.ListByUser(userID, limit)
}

// UpdateStatus выполняет переход статуса заказа. Переходы в processing и
// completed доступны админу и продавцу; переход в cancelled идёт через Cancel
// с его правилами владения.
func (s *Service) UpdateStatus(identity *domain.Identity, orderID string, target domain.OrderStatus, reason string) (domain.Order, error) {
	if target == domain.OrderStatusCancelled {
		return s.Cancel(identity, orderID, reason)
	}

	if _, err := authz.RequireRole(identity, domain.RoleAdmin, domain.RoleSeller); err != nil {
		return domain.Order{}, err
	}
	if !target.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, target)
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransition(target) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, target)
	}

	updated, err := s.transition(order, target, reason)
	if err != nil {
		return domain.Order{}, err
	}

	s.emitEvent(&updated, "order.status_changed", map[string]interface{}{
		"status": string(updated.Status),
		"reason": reason,
	})

	return updated, nil
}

// Cancel отменяет заказ. Доступ: владелец или админ; только из pending.
// Возврат остатков управляется restockOnCancel.
func (s *Service) Cancel(identity *domain.Identity, orderID string, reason string) (domain.Order, error) {
	if _, err := authz.RequireAuthenticated(identity); err != nil {
		return domain.Order{}, err
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := authz.RequireOwnerOrAdmin(identity, order.UserID); err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusPending {
		return domain.Order{}, fmt.Errorf("%w: cannot cancel order in status %s", domain.ErrInvalidTransition, order.Status)
	}

	updated, err := s.transition(order, domain.OrderStatusCancelled, reason)
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCanceled()
	}

	if s.restockOnCancel {
		s.restock(&updated)
	}

	s.emitEvent(&updated, "order.cancelled", map[string]interface{}{
		"reason":  reason,
		"restock": s.restockOnCancel,
	})

	s.logger.WithFields(log.Fields{
		"order_id": updated.ID,
		"reason":   reason,
	}).Info("order cancelled")

	return updated, nil
}

// transition сохраняет новый статус с retry на конфликт версий и пишет историю.
func (s *Service) transition(order domain.Order, target domain.OrderStatus, reason string) (domain.Order, error) {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order.Status = target
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		err := s.orders.Save(order)
		if err == nil {
			order.Version = prevVersion + 1
			if s.metrics != nil {
				s.metrics.RecordStatusTransition(string(target))
			}
			s.appendHistory(order.ID, target, reason, order.UpdatedAt)
			return order, nil
		}

		if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
			s.logger.WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Warn("version conflict detected, retrying")

			fresh, loadErr := s.orders.Get(order.ID)
			if loadErr != nil {
				return domain.Order{}, loadErr
			}
			// Переход мог стать недопустимым после перезагрузки.
			if !fresh.Status.CanTransition(target) {
				return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, fresh.Status, target)
			}
			order = fresh
			time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
			continue
		}

		s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist status")
		return domain.Order{}, err
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

// restock возвращает позиции отменённого заказа на склад. Ошибки не
// прерывают отмену: заказ уже отменён, недовозврат остаётся в логах.
func (s *Service) restock(order *domain.Order) {
	var units int64
	for _, item := range order.Items {
		if err := s.products.Restock(item.ProductID, item.Quantity); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Warn("restock failed")
			continue
		}
		units += int64(item.Quantity)
	}
	if s.metrics != nil && units > 0 {
		s.metrics.RecordUnitsRestocked(units)
	}
}

func (s *Service) appendHistory(orderID string, status domain.OrderStatus, reason string, occurred time.Time) {
	if s.history == nil {
		return
	}
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	event := domain.StatusEvent{
		OrderID:  orderID,
		Status:   status,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := s.history.Append(event); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append status history")
	}
}

func (s *Service) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["user_id"] = order.UserID

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	}
}

// recordRejection классифицирует ошибку размещения для метрик.
func (s *Service) recordRejection(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOrderRejected(rejectionReason(err))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder):
		return "empty_order"
	case errors.Is(err, domain.ErrDuplicateProduct):
		return "duplicate_product"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "write_error"
	}
}
