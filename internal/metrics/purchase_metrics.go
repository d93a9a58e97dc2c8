package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PurchaseMetrics содержит метрики покупочного цикла: от checkout до
// исполнения заказа и выдачи доступов.
type PurchaseMetrics struct {
	// Счётчики операций
	ordersCreated      prometheus.Counter
	ordersCompleted    prometheus.Counter
	fulfillmentNoop    prometheus.Counter
	fulfillmentFailed  prometheus.Counter
	enrollmentsGranted prometheus.Counter
	webhooksRejected   prometheus.Counter

	// Гистограммы времени выполнения
	checkoutDuration    prometheus.Histogram
	fulfillmentDuration *prometheus.HistogramVec

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для исполняемых прямо сейчас заказов
	activeFulfillments prometheus.Gauge
}

// NewPurchaseMetrics создаёт новый экземпляр метрик покупочного цикла.
func NewPurchaseMetrics() *PurchaseMetrics {
	return newPurchaseMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPurchaseMetricsWithRegisterer(registerer prometheus.Registerer) *PurchaseMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PurchaseMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "edupay_orders_created_total",
			Help: "Total number of orders created at checkout",
		}),
		ordersCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "edupay_orders_completed_total",
			Help: "Total number of orders fulfilled successfully",
		}),
		fulfillmentNoop: registerCounter(registerer, prometheus.CounterOpts{
			Name: "edupay_fulfillment_noop_total",
			Help: "Total number of fulfillment attempts that found the order already processed",
		}),
		fulfillmentFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "edupay_fulfillment_failed_total",
			Help: "Total number of failed fulfillment attempts",
		}),
		enrollmentsGranted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "edupay_enrollments_granted_total",
			Help: "Total number of course enrollments granted",
		}),
		webhooksRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "edupay_webhooks_rejected_total",
			Help: "Total number of webhook deliveries rejected (bad signature or payload)",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "edupay_checkout_duration_seconds",
			Help:    "Duration of checkout order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		fulfillmentDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "edupay_fulfillment_duration_seconds",
			Help:    "Duration of order fulfillment in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"trigger"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "edupay_timeline_events_total",
			Help: "Total number of order timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "edupay_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeFulfillments: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "edupay_active_fulfillments",
			Help: "Number of fulfillment attempts currently in flight",
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

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
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

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *PurchaseMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderCompleted увеличивает счётчик исполненных заказов.
func (m *PurchaseMetrics) RecordOrderCompleted() {
	m.ordersCompleted.Inc()
}

// RecordFulfillmentNoop увеличивает счётчик идемпотентных повторов.
func (m *PurchaseMetrics) RecordFulfillmentNoop() {
	m.fulfillmentNoop.Inc()
}

// RecordFulfillmentFailed увеличивает счётчик неудачных попыток исполнения.
func (m *PurchaseMetrics) RecordFulfillmentFailed() {
	m.fulfillmentFailed.Inc()
}

// RecordEnrollmentsGranted увеличивает счётчик выданных доступов на n.
func (m *PurchaseMetrics) RecordEnrollmentsGranted(n int) {
	if n > 0 {
		m.enrollmentsGranted.Add(float64(n))
	}
}

// RecordWebhookRejected увеличивает счётчик отклонённых webhook-доставок.
func (m *PurchaseMetrics) RecordWebhookRejected() {
	m.webhooksRejected.Inc()
}

// RecordCheckoutDuration записывает время создания заказа.
func (m *PurchaseMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordFulfillmentDuration записывает время исполнения заказа по источнику
// (webhook, confirm, admin).
func (m *PurchaseMetrics) RecordFulfillmentDuration(trigger string, duration time.Duration) {
	m.fulfillmentDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *PurchaseMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *PurchaseMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordFulfillmentInFlightStarted увеличивает gauge активных исполнений.
func (m *PurchaseMetrics) RecordFulfillmentInFlightStarted() {
	m.activeFulfillments.Inc()
}

// RecordFulfillmentInFlightFinished уменьшает gauge активных исполнений.
func (m *PurchaseMetrics) RecordFulfillmentInFlightFinished() {
	m.activeFulfillments.Dec()
}
