package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Handler serves the default Prometheus registry for a `/metrics` scrape
// endpoint, the same promhttp.Handler() the teacher wires in front of its
// own OrderMetrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CheckoutMetrics holds every Prometheus series the orchestrator,
// reconciler, and HTTP layer publish, the same CounterVec/GaugeVec/
// HistogramVec shape as the teacher's OrderMetrics generalized from
// orders/traders to transactions/payments.
type CheckoutMetrics struct {
	TransactionsInitiatedTotal prometheus.CounterVec
	TransactionsCompletedTotal prometheus.CounterVec
	TransactionsFailedTotal    prometheus.CounterVec
	TransactionsOpenGauge      prometheus.GaugeVec

	PaymentsAuthorizedTotal prometheus.CounterVec
	PaymentsCapturedTotal  prometheus.CounterVec
	PaymentsDeclinedTotal  prometheus.CounterVec
	PaymentsCompensatedTotal prometheus.CounterVec

	RefundsIssuedTotal      prometheus.CounterVec
	RefundsFailedTotal      prometheus.CounterVec
	RefundAmountTotal       prometheus.CounterVec

	WebhookReceivedTotal        prometheus.CounterVec
	WebhookSignatureRejectedTotal prometheus.CounterVec

	OperationDuration prometheus.HistogramVec

	ErrorsTotal prometheus.CounterVec
}

func NewCheckoutMetrics() *CheckoutMetrics {
	return &CheckoutMetrics{
		TransactionsInitiatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_initiated_total",
				Help: "Split-payment transactions opened",
			},
			[]string{"shop_domain"},
		),

		TransactionsCompletedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_completed_total",
				Help: "Split-payment transactions that reached completed",
			},
			[]string{"shop_domain"},
		),

		TransactionsFailedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_failed_total",
				Help: "Split-payment transactions that reached failed",
			},
			[]string{"shop_domain", "reason"},
		),

		TransactionsOpenGauge: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "transactions_open",
				Help: "Transactions currently in initiated or processing",
			},
			[]string{"shop_domain"},
		),

		PaymentsAuthorizedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_authorized_total",
				Help: "Per-card authorizations that succeeded",
			},
			[]string{"shop_domain"},
		),

		PaymentsCapturedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_captured_total",
				Help: "Per-card captures that succeeded",
			},
			[]string{"shop_domain"},
		),

		PaymentsDeclinedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_declined_total",
				Help: "Per-card authorizations declined by the provider",
			},
			[]string{"shop_domain", "failure_code"},
		),

		PaymentsCompensatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_compensated_total",
				Help: "Authorized payments canceled to compensate a sibling failure",
			},
			[]string{"shop_domain"},
		),

		RefundsIssuedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refunds_issued_total",
				Help: "Refunds successfully issued to the provider",
			},
			[]string{"shop_domain", "reason"},
		),

		RefundsFailedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refunds_failed_total",
				Help: "Refund attempts the provider rejected",
			},
			[]string{"shop_domain"},
		),

		RefundAmountTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refund_amount_cents_total",
				Help: "Total cents refunded",
			},
			[]string{"shop_domain", "currency"},
		),

		WebhookReceivedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhooks_received_total",
				Help: "Webhooks received by source and topic",
			},
			[]string{"source", "topic"},
		),

		WebhookSignatureRejectedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_signature_rejected_total",
				Help: "Webhooks rejected for a bad HMAC signature",
			},
			[]string{"source"},
		),

		OperationDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_operation_duration_seconds",
				Help:    "Wall time of a full orchestrator operation",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"operation", "outcome"},
		),

		ErrorsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_errors_total",
				Help: "Errors by apperrors.Kind",
			},
			[]string{"shop_domain", "kind"},
		),
	}
}

func (m *CheckoutMetrics) RecordTransactionInitiated(shopDomain string) {
	m.TransactionsInitiatedTotal.WithLabelValues(shopDomain).Inc()
	m.TransactionsOpenGauge.WithLabelValues(shopDomain).Inc()
}

func (m *CheckoutMetrics) RecordTransactionCompleted(shopDomain string) {
	m.TransactionsCompletedTotal.WithLabelValues(shopDomain).Inc()
	m.TransactionsOpenGauge.WithLabelValues(shopDomain).Dec()
}

func (m *CheckoutMetrics) RecordTransactionFailed(shopDomain, reason string) {
	m.TransactionsFailedTotal.WithLabelValues(shopDomain, reason).Inc()
	m.TransactionsOpenGauge.WithLabelValues(shopDomain).Dec()
}

func (m *CheckoutMetrics) RecordPaymentAuthorized(shopDomain string) {
	m.PaymentsAuthorizedTotal.WithLabelValues(shopDomain).Inc()
}

func (m *CheckoutMetrics) RecordPaymentCaptured(shopDomain string) {
	m.PaymentsCapturedTotal.WithLabelValues(shopDomain).Inc()
}

func (m *CheckoutMetrics) RecordPaymentDeclined(shopDomain, failureCode string) {
	m.PaymentsDeclinedTotal.WithLabelValues(shopDomain, failureCode).Inc()
}

func (m *CheckoutMetrics) RecordPaymentCompensated(shopDomain string) {
	m.PaymentsCompensatedTotal.WithLabelValues(shopDomain).Inc()
}

func (m *CheckoutMetrics) RecordRefundIssued(shopDomain, reason, currency string, amountCents int64) {
	m.RefundsIssuedTotal.WithLabelValues(shopDomain, reason).Inc()
	m.RefundAmountTotal.WithLabelValues(shopDomain, currency).Add(float64(amountCents))
}

func (m *CheckoutMetrics) RecordRefundFailed(shopDomain string) {
	m.RefundsFailedTotal.WithLabelValues(shopDomain).Inc()
}

func (m *CheckoutMetrics) RecordWebhookReceived(source, topic string) {
	m.WebhookReceivedTotal.WithLabelValues(source, topic).Inc()
}

func (m *CheckoutMetrics) RecordWebhookSignatureRejected(source string) {
	m.WebhookSignatureRejectedTotal.WithLabelValues(source).Inc()
}

func (m *CheckoutMetrics) RecordOperationDuration(operation, outcome string, seconds float64) {
	m.OperationDuration.WithLabelValues(operation, outcome).Observe(seconds)
}

func (m *CheckoutMetrics) RecordError(shopDomain, kind string) {
	m.ErrorsTotal.WithLabelValues(shopDomain, kind).Inc()
}
