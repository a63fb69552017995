// Package reconciler accepts provider and platform webhooks, re-syncs
// local payment/refund status against them, and repairs the post-capture
// / pre-order window spec.md §9 calls out with a startup scan. Every
// handler verifies its signature before any state mutation and always
// reports success back to the caller — processing errors are logged,
// never surfaced, so the provider never retry-storms a bad payload
// (spec.md §4.8's swallow-200 policy).
package reconciler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/kafka"
	"github.com/splitpay/checkout-core/internal/infrastructure/metrics"
	"github.com/splitpay/checkout-core/internal/infrastructure/provider"
)

// ProviderReconciler handles webhooks pushed by the card-authorization
// provider.
type ProviderReconciler struct {
	Payments domain.PaymentRepository
	Refunds  domain.RefundRepository
	Alerts   *kafka.AlertPublisher
	Metrics  *metrics.CheckoutMetrics
}

func NewProviderReconciler(payments domain.PaymentRepository, refunds domain.RefundRepository, alerts *kafka.AlertPublisher, m *metrics.CheckoutMetrics) *ProviderReconciler {
	return &ProviderReconciler{Payments: payments, Refunds: refunds, Alerts: alerts, Metrics: m}
}

// HandleWebhook verifies the signature, dispatches on event type, and
// swallows any processing error after logging it — the caller always
// gets a nil error back once the signature checks out.
func (r *ProviderReconciler) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader, secret string) error {
	event, err := provider.VerifyWebhook(rawBody, signatureHeader, secret)
	if err != nil {
		r.Metrics.RecordWebhookSignatureRejected("provider")
		return err
	}
	r.Metrics.RecordWebhookReceived("provider", string(event.Type))

	switch event.Type {
	case provider.EventIntentSucceeded:
		r.handleIntentSucceeded(ctx, event.Data)
	case provider.EventIntentFailed:
		r.handleIntentFailed(ctx, event.Data)
	case provider.EventChargeRefunded:
		r.handleChargeRefunded(ctx, event.Data)
	case provider.EventDisputeCreated:
		r.handleDisputeCreated(ctx, event.Data)
	default:
		slog.Warn("unrecognized provider event type, ignoring", "event_type", event.Type)
	}
	return nil
}

// handleIntentSucceeded reconciles the race spec.md §4.8 describes
// between the orchestrator's own capture and this webhook landing
// afterward: if the payment is already captured this is a no-op, never
// a regression.
func (r *ProviderReconciler) handleIntentSucceeded(ctx context.Context, data json.RawMessage) {
	var payload provider.IntentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Error("malformed payment_intent.succeeded payload", "error", err)
		return
	}

	payment, err := r.Payments.GetByIntentID(payload.IntentID)
	if err != nil {
		slog.Warn("payment_intent.succeeded for unknown intent", "intent_id", payload.IntentID, "error", err)
		return
	}
	if payment.Status == domain.PaymentCaptured {
		return
	}
	if !domain.CanTransition(payment.Status, domain.PaymentCaptured) {
		slog.Warn("ignoring payment_intent.succeeded for intent in terminal status", "intent_id", payload.IntentID, "status", payment.Status)
		return
	}
	if err := r.Payments.SetStatus(payment.ID, domain.PaymentCaptured, "", ""); err != nil {
		slog.Error("failed to mark payment captured", "payment_id", payment.ID, "error", err)
	}
}

func (r *ProviderReconciler) handleIntentFailed(ctx context.Context, data json.RawMessage) {
	var payload provider.IntentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Error("malformed payment_intent.payment_failed payload", "error", err)
		return
	}

	payment, err := r.Payments.GetByIntentID(payload.IntentID)
	if err != nil {
		slog.Warn("payment_intent.payment_failed for unknown intent", "intent_id", payload.IntentID, "error", err)
		return
	}
	if !domain.CanTransition(payment.Status, domain.PaymentFailed) {
		return
	}
	if err := r.Payments.SetStatus(payment.ID, domain.PaymentFailed, payload.FailureCode, payload.FailureMsg); err != nil {
		slog.Error("failed to mark payment failed", "payment_id", payment.ID, "error", err)
	}
}

func (r *ProviderReconciler) handleChargeRefunded(ctx context.Context, data json.RawMessage) {
	var payload provider.RefundPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Error("malformed charge.refunded payload", "error", err)
		return
	}

	refund, err := r.Refunds.GetByProviderRefundID(payload.RefundID)
	if err != nil {
		slog.Warn("charge.refunded for unknown refund", "refund_id", payload.RefundID, "error", err)
		return
	}

	status := domain.RefundStatus(payload.Status)
	if status != domain.RefundSucceeded && status != domain.RefundFailed && status != domain.RefundPending {
		slog.Warn("unrecognized refund status on charge.refunded", "status", payload.Status)
		return
	}
	if status == refund.Status {
		return
	}
	if err := r.Refunds.SetStatus(refund.ID, status, ""); err != nil {
		slog.Error("failed to update refund status", "refund_id", refund.ID, "error", err)
	}
}

// handleDisputeCreated only logs and alerts — spec.md §4.8 leaves
// disputes to a human, no automatic state change.
func (r *ProviderReconciler) handleDisputeCreated(ctx context.Context, data json.RawMessage) {
	var payload provider.DisputePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Error("malformed charge.dispute.created payload", "error", err)
		return
	}

	slog.Warn("dispute created", "intent_id", payload.IntentID, "reason", payload.Reason)
	if r.Alerts == nil {
		return
	}
	if err := r.Alerts.Publish(ctx, kafka.OperatorAlert{
		Severity:       kafka.SeverityWarning,
		Kind:           "dispute_created",
		TransactionID:  payload.IntentID,
		Message:        "chargeback opened: " + payload.Reason,
		OccurredAtUnix: time.Now().Unix(),
	}); err != nil {
		slog.Error("failed to publish dispute alert", "intent_id", payload.IntentID, "error", err)
	}
}
