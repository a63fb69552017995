package reconciler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/metrics"
)

const testProviderSecret = "whsec_test_secret"

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func providerEnvelope(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": json.RawMessage(raw),
	})
	require.NoError(t, err)
	return env
}

type fakePaymentRepo struct {
	payments map[string]*domain.Payment
}

func newFakePaymentRepo(payments ...*domain.Payment) *fakePaymentRepo {
	r := &fakePaymentRepo{payments: map[string]*domain.Payment{}}
	for _, p := range payments {
		r.payments[p.ID] = p
	}
	return r
}

func (r *fakePaymentRepo) Create(p *domain.Payment) error { r.payments[p.ID] = p; return nil }

func (r *fakePaymentRepo) GetByID(id string) (*domain.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", id)
	}
	return p, nil
}

func (r *fakePaymentRepo) GetByIntentID(intentID string) (*domain.Payment, error) {
	for _, p := range r.payments {
		if p.ProviderIntentID == intentID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("payment for intent %s not found", intentID)
}

func (r *fakePaymentRepo) ListByTransaction(transactionID string) ([]*domain.Payment, error) {
	var out []*domain.Payment
	for _, p := range r.payments {
		if p.TransactionID == transactionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) SetStatus(id string, status domain.PaymentStatus, failureCode, failureMessage string) error {
	p, err := r.GetByID(id)
	if err != nil {
		return err
	}
	p.Status = status
	p.FailureCode = failureCode
	p.FailureMessage = failureMessage
	return nil
}

func (r *fakePaymentRepo) SetCardDetails(id string, details domain.CardDetails) error {
	p, err := r.GetByID(id)
	if err != nil {
		return err
	}
	p.ProviderMethodID = details.ProviderMethodID
	return nil
}

type fakeRefundRepo struct {
	refunds map[string]*domain.Refund
}

func newFakeRefundRepo(refunds ...*domain.Refund) *fakeRefundRepo {
	r := &fakeRefundRepo{refunds: map[string]*domain.Refund{}}
	for _, ref := range refunds {
		r.refunds[ref.ID] = ref
	}
	return r
}

func (r *fakeRefundRepo) Create(ref *domain.Refund) error { r.refunds[ref.ID] = ref; return nil }

func (r *fakeRefundRepo) GetByProviderRefundID(providerRefundID string) (*domain.Refund, error) {
	for _, ref := range r.refunds {
		if ref.ProviderRefundID == providerRefundID {
			return ref, nil
		}
	}
	return nil, fmt.Errorf("refund %s not found", providerRefundID)
}

func (r *fakeRefundRepo) ListByTransaction(transactionID string) ([]*domain.Refund, error) {
	var out []*domain.Refund
	for _, ref := range r.refunds {
		if ref.TransactionID == transactionID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *fakeRefundRepo) SetStatus(id string, status domain.RefundStatus, failureReason string) error {
	ref, ok := r.refunds[id]
	if !ok {
		return fmt.Errorf("refund %s not found", id)
	}
	ref.Status = status
	ref.FailureReason = failureReason
	return nil
}

func (r *fakeRefundRepo) SumSucceededByTransaction(transactionID string) (int64, error) {
	var sum int64
	for _, ref := range r.refunds {
		if ref.TransactionID == transactionID && ref.Status == domain.RefundSucceeded {
			sum += ref.AmountCents
		}
	}
	return sum, nil
}

// TestProviderReconciler_RejectsBadSignature ensures a forged webhook is
// rejected before any lookup happens — no state mutation on signature
// failure, per spec.md §4.4/§4.8.
func TestProviderReconciler_RejectsBadSignature(t *testing.T) {
	payments := newFakePaymentRepo()
	r := NewProviderReconciler(payments, newFakeRefundRepo(), nil, metrics.NewCheckoutMetrics())

	body := providerEnvelope(t, "payment_intent.succeeded", map[string]string{"intent_id": "pi_123"})
	err := r.HandleWebhook(context.Background(), body, "not-a-real-signature", testProviderSecret)
	assert.Error(t, err)
}

// TestProviderReconciler_S6_WebhookRaceNoRegression mirrors spec.md §8
// scenario S6: complete() has already captured the payment; the
// payment_intent.succeeded webhook for the same intent arrives afterward.
// It must be a pure no-op, never a regression or an error.
func TestProviderReconciler_S6_WebhookRaceNoRegression(t *testing.T) {
	payment := &domain.Payment{
		ID:               uuid.New().String(),
		ProviderIntentID: "pi_already_captured",
		Status:           domain.PaymentCaptured,
		CreatedAt:        time.Now(),
	}
	payments := newFakePaymentRepo(payment)
	r := NewProviderReconciler(payments, newFakeRefundRepo(), nil, metrics.NewCheckoutMetrics())

	body := providerEnvelope(t, "payment_intent.succeeded", map[string]string{"intent_id": payment.ProviderIntentID})
	err := r.HandleWebhook(context.Background(), body, sign(body, testProviderSecret), testProviderSecret)
	require.NoError(t, err)

	reloaded, err := payments.GetByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCaptured, reloaded.Status, "webhook arriving after capture must not regress status")
}

// TestProviderReconciler_IntentSucceeded_AdvancesAuthorized covers the
// ordinary case: the webhook arrives while the payment is still
// authorized (the orchestrator hasn't captured yet) and legally advances
// it to captured.
func TestProviderReconciler_IntentSucceeded_AdvancesAuthorized(t *testing.T) {
	payment := &domain.Payment{
		ID:               uuid.New().String(),
		ProviderIntentID: "pi_pending_capture",
		Status:           domain.PaymentAuthorized,
		CreatedAt:        time.Now(),
	}
	payments := newFakePaymentRepo(payment)
	r := NewProviderReconciler(payments, newFakeRefundRepo(), nil, metrics.NewCheckoutMetrics())

	body := providerEnvelope(t, "payment_intent.succeeded", map[string]string{"intent_id": payment.ProviderIntentID})
	err := r.HandleWebhook(context.Background(), body, sign(body, testProviderSecret), testProviderSecret)
	require.NoError(t, err)

	reloaded, err := payments.GetByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCaptured, reloaded.Status)
}

// TestProviderReconciler_IntentFailed_MarksFailed covers the decline path
// arriving out of band.
func TestProviderReconciler_IntentFailed_MarksFailed(t *testing.T) {
	payment := &domain.Payment{
		ID:               uuid.New().String(),
		ProviderIntentID: "pi_will_fail",
		Status:           domain.PaymentPending,
		CreatedAt:        time.Now(),
	}
	payments := newFakePaymentRepo(payment)
	r := NewProviderReconciler(payments, newFakeRefundRepo(), nil, metrics.NewCheckoutMetrics())

	body := providerEnvelope(t, "payment_intent.payment_failed", map[string]string{
		"intent_id":      payment.ProviderIntentID,
		"failure_code":   "card_declined",
		"failure_message": "insufficient funds",
	})
	err := r.HandleWebhook(context.Background(), body, sign(body, testProviderSecret), testProviderSecret)
	require.NoError(t, err)

	reloaded, err := payments.GetByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, reloaded.Status)
	assert.Equal(t, "card_declined", reloaded.FailureCode)
}

// TestProviderReconciler_ChargeRefunded_UpdatesStatus exercises the
// refund-status sync path.
func TestProviderReconciler_ChargeRefunded_UpdatesStatus(t *testing.T) {
	ref := &domain.Refund{
		ID:               uuid.New().String(),
		ProviderRefundID: "re_async",
		Status:           domain.RefundPending,
	}
	refunds := newFakeRefundRepo(ref)
	r := NewProviderReconciler(newFakePaymentRepo(), refunds, nil, metrics.NewCheckoutMetrics())

	body := providerEnvelope(t, "charge.refunded", map[string]string{
		"refund_id": ref.ProviderRefundID,
		"status":    "succeeded",
	})
	err := r.HandleWebhook(context.Background(), body, sign(body, testProviderSecret), testProviderSecret)
	require.NoError(t, err)

	reloaded, err := refunds.GetByProviderRefundID(ref.ProviderRefundID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundSucceeded, reloaded.Status)
}

// TestProviderReconciler_DisputeCreated_NoStateChange asserts spec.md
// §4.8's rule that disputes only alert, never mutate payment state.
func TestProviderReconciler_DisputeCreated_NoStateChange(t *testing.T) {
	payment := &domain.Payment{
		ID:               uuid.New().String(),
		ProviderIntentID: "pi_disputed",
		Status:           domain.PaymentCaptured,
	}
	payments := newFakePaymentRepo(payment)
	r := NewProviderReconciler(payments, newFakeRefundRepo(), nil, metrics.NewCheckoutMetrics())

	body := providerEnvelope(t, "charge.dispute.created", map[string]string{
		"intent_id": payment.ProviderIntentID,
		"reason":    "fraudulent",
	})
	err := r.HandleWebhook(context.Background(), body, sign(body, testProviderSecret), testProviderSecret)
	require.NoError(t, err)

	reloaded, err := payments.GetByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCaptured, reloaded.Status)
}
