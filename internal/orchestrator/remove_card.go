package orchestrator

import (
	"context"

	"github.com/splitpay/checkout-core/internal/apperrors"
)

type RemoveCardInput struct {
	SessionID        string
	ProviderIntentID string
}

// RemoveCard implements spec.md §4.6 remove_card(): cancel the provider
// authorization (idempotent on "already final"), drop it from the
// session, and mark the payment row voided directly. The provider
// never sends a webhook confirming a canceled authorization, so
// there's no reconciler event to defer this to; voiding it here is
// the only place it happens.
func (o *Orchestrator) RemoveCard(ctx context.Context, in RemoveCardInput) error {
	sess, err := o.Sessions.Get(in.SessionID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindNotFound, apperrors.CodeSessionNotFound, "session not found or expired", err)
	}

	found := false
	for _, p := range sess.Payments {
		if p.ProviderIntentID == in.ProviderIntentID {
			found = true
			break
		}
	}
	if !found {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeTransactionNotFound, "payment intent not found in session")
	}

	if err := o.Provider.CancelAuthorization(ctx, in.ProviderIntentID); err != nil {
		return apperrors.Wrap(apperrors.KindProviderTransient, apperrors.CodeProviderError, "failed to cancel authorization", err)
	}

	if err := o.Sessions.RemovePayment(in.SessionID, in.ProviderIntentID); err != nil {
		return apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to update session", err)
	}

	if payment, err := o.Payments.GetByIntentID(in.ProviderIntentID); err == nil {
		_ = o.Payments.SetStatus(payment.ID, "voided", "", "removed by buyer")
		o.logTransition(ctx, sess.TransactionID, payment.ID, "payment.removed", string(payment.Status), "voided", "")
	}

	return nil
}
