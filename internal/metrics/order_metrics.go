package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций сервиса заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated     *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	catalogRequests   *prometheus.CounterVec

	// Гистограммы времени выполнения
	catalogDuration   prometheus.Histogram
	operationDuration *prometheus.HistogramVec

	// Счётчик отказов из-за рассинхронизации с каталогом
	enrichmentFailures prometheus.Counter
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
		ordersCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of order creation attempts by result",
		}, []string{"result"}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_status_transitions_total",
			Help: "Total number of order status transitions by target status",
		}, []string{"status"}),
		catalogRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_catalog_requests_total",
			Help: "Total number of product catalog validation requests by result",
		}, []string{"result"}),
		catalogDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_catalog_request_duration_seconds",
			Help:    "Duration of product catalog validation requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_operation_duration_seconds",
			Help:    "Duration of order service operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		enrichmentFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_enrichment_failures_total",
			Help: "Total number of responses rejected because catalog enrichment failed",
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

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик попыток создания заказа.
func (m *OrderMetrics) RecordOrderCreated(result string) {
	m.ordersCreated.WithLabelValues(result).Inc()
}

// RecordStatusTransition увеличивает счётчик переходов статуса.
func (m *OrderMetrics) RecordStatusTransition(status string) {
	m.statusTransitions.WithLabelValues(status).Inc()
}

// RecordCatalogRequest записывает результат и время обращения к каталогу.
func (m *OrderMetrics) RecordCatalogRequest(result string, duration time.Duration) {
	m.catalogRequests.WithLabelValues(result).Inc()
	m.catalogDuration.Observe(duration.Seconds())
}

// RecordOperationDuration записывает время выполнения операции сервиса.
func (m *OrderMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEnrichmentFailure увеличивает счётчик отказов обогащения.
func (m *OrderMetrics) RecordEnrichmentFailure() {
	m.enrichmentFailures.Inc()
}
