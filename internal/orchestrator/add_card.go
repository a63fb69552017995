package orchestrator

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/splitpay/checkout-core/internal/apperrors"
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/session"
	"github.com/splitpay/checkout-core/internal/validation"
)

type AddCardInput struct {
	SessionID   string
	AmountCents int64
}

type AddCardResult struct {
	PaymentIntentID string
	ClientSecret    string
	PaymentID       string
}

// AddCard implements spec.md §4.6 add_card(): check the preconditions in
// order (session alive, card-count headroom, amount within the remaining
// balance), then create the provider authorization and persist the
// pending payment row before appending it to the session.
func (o *Orchestrator) AddCard(ctx context.Context, in AddCardInput) (*AddCardResult, error) {
	sess, err := o.Sessions.Get(in.SessionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.CodeSessionNotFound, "session not found or expired", err)
	}

	if len(sess.Payments) >= clampMaxCards(sess.MaxCards) {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeTooManyCards, "maximum number of cards reached")
	}

	remaining := sess.RemainingBalance()
	if err := validation.Amount(in.AmountCents, sess.MinAmount, remaining); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidAmount, err.Error(), err)
	}

	auth, err := o.Provider.CreateAuthorization(ctx, in.AmountCents, sess.Currency, map[string]string{
		"transaction_id": sess.TransactionID,
		"card_index":     strconv.Itoa(len(sess.Payments)),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindProviderTransient, apperrors.CodeProviderError, "failed to create authorization", err)
	}

	payment := &domain.Payment{
		ID:               uuid.New().String(),
		TransactionID:    sess.TransactionID,
		ProviderIntentID: auth.IntentID,
		AmountCents:      in.AmountCents,
		Status:           domain.PaymentPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := o.Payments.Create(payment); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to persist payment", err)
	}

	if err := o.Sessions.AddPayment(in.SessionID, session.PendingPayment{
		PaymentID:        payment.ID,
		ProviderIntentID: auth.IntentID,
		AmountCents:      in.AmountCents,
	}); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to update session", err)
	}

	o.logTransition(ctx, sess.TransactionID, payment.ID, "payment.created", "", string(domain.PaymentPending), auth.IntentID)

	return &AddCardResult{
		PaymentIntentID: auth.IntentID,
		ClientSecret:    auth.ClientSecret,
		PaymentID:       payment.ID,
	}, nil
}
