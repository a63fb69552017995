package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/kafka"
	"github.com/splitpay/checkout-core/internal/infrastructure/platform"
)

// StartupReconciler repairs the post-capture / pre-order window spec.md
// §9 flags: if the process crashed between capture-all succeeding and
// order creation, funds are captured but no order exists. Run once at
// boot, before the HTTP server starts accepting traffic.
type StartupReconciler struct {
	Stores       domain.StoreRepository
	Transactions domain.TransactionRepository
	Payments     domain.PaymentRepository
	Platform     *platform.Client
	Alerts       *kafka.AlertPublisher
}

func NewStartupReconciler(stores domain.StoreRepository, transactions domain.TransactionRepository, payments domain.PaymentRepository, plat *platform.Client, alerts *kafka.AlertPublisher) *StartupReconciler {
	return &StartupReconciler{Stores: stores, Transactions: transactions, Payments: payments, Platform: plat, Alerts: alerts}
}

// ReconcileOrphanedOrders finds every completed transaction missing an
// order_id and retries submission. It never touches money state — only
// the order link — so a retry here can never double-charge a buyer.
func (r *StartupReconciler) ReconcileOrphanedOrders(ctx context.Context) {
	orphans, err := r.Transactions.FindCompletedWithoutOrder()
	if err != nil {
		slog.Error("failed to scan for orphaned orders", "error", err)
		return
	}
	if len(orphans) == 0 {
		return
	}
	slog.Info("retrying submission for completed transactions without an order", "count", len(orphans))

	var failures []kafka.OperatorAlert
	for _, tx := range orphans {
		if alert := r.reconcileOne(ctx, tx); alert != nil {
			failures = append(failures, *alert)
		}
	}

	// One batch, not one publish per still-failing transaction — a boot
	// with a hundred orphans shouldn't open a hundred producer round
	// trips to report them.
	if len(failures) > 0 && r.Alerts != nil {
		if err := r.Alerts.PublishBatchWithRetry(ctx, failures, 3); err != nil {
			slog.Error("failed to publish orphaned-order alert batch", "count", len(failures), "error", err)
		}
	}
}

// reconcileOne retries order submission for a single orphaned transaction
// and returns the alert to publish if it's still failing, or nil on
// success so the caller can batch every failure from this scan together.
func (r *StartupReconciler) reconcileOne(ctx context.Context, tx *domain.Transaction) *kafka.OperatorAlert {
	store, err := r.Stores.GetByID(tx.StoreID)
	if err != nil {
		slog.Error("orphaned order has no resolvable store", "transaction_id", tx.ID, "error", err)
		return nil
	}

	payments, err := r.Payments.ListByTransaction(tx.ID)
	if err != nil {
		slog.Error("failed to load payments for orphaned transaction", "transaction_id", tx.ID, "error", err)
		return nil
	}

	result, err := r.Platform.SubmitOrder(ctx, store.AccessToken, platform.OrderRequest{
		CheckoutToken: tx.CheckoutToken,
		TotalCents:    tx.TotalAmountCents,
		Currency:      tx.Currency,
		CustomerEmail: tx.Customer.Email,
		Note:          fmt.Sprintf("Split across %d cards (reconciled on startup)", len(payments)),
		Tags:          []string{"split-payment"},
		Metafields: map[string]string{
			"split_payment":  "true",
			"transaction_id": tx.ID,
			"payment_count":  fmt.Sprintf("%d", len(payments)),
		},
	})
	if err != nil {
		slog.Error("retry of order submission still failing", "transaction_id", tx.ID, "error", err)
		return &kafka.OperatorAlert{
			Severity:       kafka.SeverityCritical,
			Kind:           "order_submission_still_failing",
			ShopDomain:     store.ShopDomain,
			TransactionID:  tx.ID,
			Message:        err.Error(),
			OccurredAtUnix: time.Now().Unix(),
		}
	}

	if err := r.Transactions.SetOrder(tx.ID, result.OrderID, result.OrderNumber); err != nil {
		slog.Error("submitted order but failed to link it", "transaction_id", tx.ID, "error", err)
	}
	return nil
}
