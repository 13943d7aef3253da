package kafka

import "time"

// EventType определяет тип публикуемого события.
type EventType string

const (
	// Order события
	EventTypeOrderPlaced        EventType = "order.placed"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCancelled     EventType = "order.cancelled"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "shop.order.events"
	TopicDeadLetterQueue = "shop.dlq" // Dead Letter Queue для failed messages
)

// HeaderRetryCount — заголовок с числом повторных попыток обработки.
const HeaderRetryCount = "x-retry-count"

// OrderEvent представляет событие заказа для внешних потребителей.
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	UserID    string                 `json:"user_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа.
func NewOrderEvent(eventType EventType, orderID, userID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
