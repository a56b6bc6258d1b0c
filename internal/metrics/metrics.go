package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosales_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autosales_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosales_transactions_total",
			Help: "Total number of ledger transactions appended",
		},
		[]string{"type"},
	)

	StoreBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autosales_store_balance_rub",
			Help: "Store reserve balance after the latest ledger entry",
		},
	)

	InvoicesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosales_invoices_total",
			Help: "Total number of invoice transitions",
		},
		[]string{"gateway", "status"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosales_purchases_total",
			Help: "Total number of purchases",
		},
		[]string{"status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosales_notifications_total",
			Help: "Total number of dispatched notifications",
		},
		[]string{"type", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autosales_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosales_webhooks_total",
			Help: "Total number of gateway webhook deliveries",
		},
		[]string{"gateway", "outcome"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTransaction(txType string) {
	TransactionsTotal.WithLabelValues(txType).Inc()
}

func RecordInvoice(gateway, status string) {
	InvoicesTotal.WithLabelValues(gateway, status).Inc()
}

func RecordPurchase(status string) {
	PurchasesTotal.WithLabelValues(status).Inc()
}

func RecordNotification(notifyType, status string) {
	NotificationsTotal.WithLabelValues(notifyType, status).Inc()
}

func RecordWebhook(gateway, outcome string) {
	WebhooksTotal.WithLabelValues(gateway, outcome).Inc()
}
