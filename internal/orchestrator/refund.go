package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/splitpay/checkout-core/internal/apperrors"
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/money"
)

type RefundInput struct {
	TransactionID string
	AmountCents   int64
	Reason        domain.RefundReason
	InitiatedBy   domain.RefundInitiator
}

type RefundResult struct {
	Refunds       []*domain.Refund
	TotalRefunded int64
	NewStatus     domain.TransactionStatus
}

// Refund implements spec.md §4.6 refund(): distribute the requested
// amount across every captured payment proportionally to its own
// captured amount, issue one provider refund per non-zero split, and
// update the transaction's overall refund status. A split that fails at
// the provider is recorded as a failed refund row rather than aborting
// its siblings — the caller gets a per-payment result back.
func (o *Orchestrator) Refund(ctx context.Context, in RefundInput) (*RefundResult, error) {
	tx, err := o.Transactions.GetByID(in.TransactionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.CodeTransactionNotFound, "transaction not found", err)
	}
	if tx.Status != domain.TransactionCompleted && tx.Status != domain.TransactionPartiallyRefunded {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeCheckoutFailed, "transaction is not eligible for refund")
	}

	shopDomain := ""
	if store, err := o.Stores.GetByID(tx.StoreID); err == nil {
		shopDomain = store.ShopDomain
	}

	alreadyRefunded, err := o.Refunds.SumSucceededByTransaction(in.TransactionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to sum prior refunds", err)
	}
	remaining := tx.TotalAmountCents - alreadyRefunded
	if in.AmountCents <= 0 || in.AmountCents > remaining {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidAmount, "refund amount exceeds remaining refundable balance")
	}

	payments, err := o.Payments.ListByTransaction(in.TransactionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to load payments", err)
	}
	captured := make([]*domain.Payment, 0, len(payments))
	weights := make([]int64, 0, len(payments))
	for _, p := range payments {
		if p.Status == domain.PaymentCaptured {
			captured = append(captured, p)
			weights = append(weights, p.AmountCents)
		}
	}

	splits := money.Distribute(in.AmountCents, weights)

	refunds := make([]*domain.Refund, 0, len(captured))
	for i, p := range captured {
		amount := splits[i]
		if amount == 0 {
			continue
		}
		refunds = append(refunds, o.refundOne(ctx, tx, shopDomain, p, amount, in.Reason, in.InitiatedBy))
	}

	var totalRefunded int64
	for _, r := range refunds {
		if r.Status == domain.RefundSucceeded {
			totalRefunded += r.AmountCents
		}
	}

	newTotal := alreadyRefunded + totalRefunded
	newStatus := domain.TransactionPartiallyRefunded
	if newTotal >= tx.TotalAmountCents {
		newStatus = domain.TransactionRefunded
	}
	if _, err := o.Transactions.SetStatus(tx.ID, tx.Status, newStatus, ""); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to update transaction refund status", err)
	}

	return &RefundResult{Refunds: refunds, TotalRefunded: totalRefunded, NewStatus: newStatus}, nil
}

// refundOne issues one payment's refund split against the provider and
// persists the outcome regardless of success or failure — a failed split
// never aborts its siblings (spec.md §4.6 step 6).
func (o *Orchestrator) refundOne(ctx context.Context, tx *domain.Transaction, shopDomain string, p *domain.Payment, amount int64, reason domain.RefundReason, initiatedBy domain.RefundInitiator) *domain.Refund {
	refund := &domain.Refund{
		ID:            uuid.New().String(),
		TransactionID: tx.ID,
		PaymentID:     p.ID,
		AmountCents:   amount,
		Reason:        reason,
		InitiatedBy:   initiatedBy,
	}

	result, err := o.Provider.CreateRefund(ctx, p.ProviderIntentID, amount, string(reason), map[string]string{
		"transaction_id": tx.ID,
		"payment_id":     p.ID,
	})
	if err != nil {
		refund.Status = domain.RefundFailed
		refund.FailureReason = err.Error()
		refund.ProviderRefundID = uuid.New().String() // placeholder to satisfy the unique constraint on failed attempts
		o.Metrics.RecordRefundFailed(shopDomain)
		_ = o.Refunds.Create(refund)
		o.logTransition(ctx, tx.ID, p.ID, "refund.failed", string(p.Status), string(p.Status), err.Error())
		return refund
	}

	refund.ProviderRefundID = result.RefundID
	refund.Status = mapRefundStatus(result.Status)
	if err := o.Refunds.Create(refund); err != nil {
		refund.Status = domain.RefundFailed
		refund.FailureReason = "persisted refund failed: " + err.Error()
		return refund
	}

	if refund.Status == domain.RefundSucceeded {
		o.Metrics.RecordRefundIssued(shopDomain, string(reason), tx.Currency, amount)
		o.logTransition(ctx, tx.ID, p.ID, "refund.succeeded", string(p.Status), string(p.Status), refund.ProviderRefundID)
	}

	return refund
}

func mapRefundStatus(providerStatus string) domain.RefundStatus {
	switch providerStatus {
	case "succeeded":
		return domain.RefundSucceeded
	case "pending":
		return domain.RefundPending
	default:
		return domain.RefundFailed
	}
}
