// Package orchestrator owns the split-payment state machine: init,
// add-card, remove-card, complete (fan-out authorize, all-or-nothing
// capture, compensating cancel), and proportional refund. It is the
// direct descendant of the teacher's DefaultOrderUsecase — same
// dependency-injected struct shape, same "critical op then async
// notify" flow — generalized from a single-leg crypto order to an
// N-card split-payment transaction.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/auditlog"
	"github.com/splitpay/checkout-core/internal/infrastructure/kafka"
	"github.com/splitpay/checkout-core/internal/infrastructure/metrics"
	"github.com/splitpay/checkout-core/internal/infrastructure/platform"
	"github.com/splitpay/checkout-core/internal/infrastructure/provider"
	"github.com/splitpay/checkout-core/internal/session"
)

type Orchestrator struct {
	Stores       domain.StoreRepository
	Transactions domain.TransactionRepository
	Payments     domain.PaymentRepository
	Refunds      domain.RefundRepository
	Idempotency  domain.IdempotencyRepository
	Sessions     session.Store
	Provider     provider.Adapter
	Platform     *platform.Client
	Alerts       *kafka.AlertPublisher
	Audit        auditlog.Logger
	Metrics      *metrics.CheckoutMetrics

	// SessionTTL overrides session.TTL when non-zero, so the configured
	// SESSION_TTL actually reaches init() instead of being shadowed by
	// the package default.
	SessionTTL time.Duration
}

func New(
	stores domain.StoreRepository,
	transactions domain.TransactionRepository,
	payments domain.PaymentRepository,
	refunds domain.RefundRepository,
	idempotency domain.IdempotencyRepository,
	sessions session.Store,
	prov provider.Adapter,
	plat *platform.Client,
	alerts *kafka.AlertPublisher,
	audit auditlog.Logger,
	m *metrics.CheckoutMetrics,
) *Orchestrator {
	return &Orchestrator{
		Stores:       stores,
		Transactions: transactions,
		Payments:     payments,
		Refunds:      refunds,
		Idempotency:  idempotency,
		Sessions:     sessions,
		Provider:     prov,
		Platform:     plat,
		Alerts:       alerts,
		Audit:        audit,
		Metrics:      m,
	}
}

// alert best-effort publishes an operator alert, logging (never panicking)
// on publish failure — spec.md §4.7/§9's monitored-swallow-path pattern.
func (o *Orchestrator) alert(ctx context.Context, severity kafka.AlertSeverity, kind, shopDomain, txID, message string) {
	if o.Alerts == nil {
		return
	}
	err := o.Alerts.Publish(ctx, kafka.OperatorAlert{
		Severity:       severity,
		Kind:           kind,
		ShopDomain:     shopDomain,
		TransactionID:  txID,
		Message:        message,
		OccurredAtUnix: time.Now().Unix(),
	})
	if err != nil {
		slog.Error("failed to publish operator alert", "kind", kind, "shop_domain", shopDomain, "transaction_id", txID, "error", err)
	}
}

func (o *Orchestrator) logTransition(ctx context.Context, txID, paymentID, eventType, from, to, detail string) {
	if o.Audit == nil {
		return
	}
	_ = o.Audit.LogTransition(ctx, auditlog.TransactionEvent{
		TransactionID: txID,
		PaymentID:     paymentID,
		EventType:     eventType,
		FromStatus:    from,
		ToStatus:      to,
		Detail:        detail,
	})
}
