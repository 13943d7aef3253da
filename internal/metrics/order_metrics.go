package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики размещения и жизненного цикла заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersPlaced   prometheus.Counter
	ordersRejected *prometheus.CounterVec
	ordersCanceled prometheus.Counter

	// Гистограмма времени размещения заказа
	placeDuration prometheus.Histogram

	// Переходы статусов
	statusTransitions *prometheus.CounterVec

	// Зарезервированные единицы товара
	unitsReserved  prometheus.Counter
	unitsRestocked prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Total number of orders placed successfully",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_orders_rejected_total",
			Help: "Total number of rejected order placements grouped by reason",
		}, []string{"reason"}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		placeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_order_place_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_status_transitions_total",
			Help: "Total number of order status transitions grouped by target status",
		}, []string{"status"}),
		unitsReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_units_reserved_total",
			Help: "Total number of stock units reserved by placed orders",
		}),
		unitsRestocked: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_units_restocked_total",
			Help: "Total number of stock units returned on cancellation",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderPlaced увеличивает счётчик успешно размещённых заказов.
func (m *OrderMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordOrderRejected увеличивает счётчик отклонённых размещений.
func (m *OrderMetrics) RecordOrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

// RecordPlaceDuration записывает время размещения заказа.
func (m *OrderMetrics) RecordPlaceDuration(duration time.Duration) {
	m.placeDuration.Observe(duration.Seconds())
}

// RecordStatusTransition увеличивает счётчик переходов в целевой статус.
func (m *OrderMetrics) RecordStatusTransition(status string) {
	m.statusTransitions.WithLabelValues(status).Inc()
}

// RecordUnitsReserved добавляет количество зарезервированных единиц.
func (m *OrderMetrics) RecordUnitsReserved(units int64) {
	m.unitsReserved.Add(float64(units))
}

// RecordUnitsRestocked добавляет количество возвращённых на склад единиц.
func (m *OrderMetrics) RecordUnitsRestocked(units int64) {
	m.unitsRestocked.Add(float64(units))
}
