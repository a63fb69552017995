package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/splitpay/checkout-core/internal/apperrors"
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/kafka"
	"github.com/splitpay/checkout-core/internal/infrastructure/platform"
	"github.com/splitpay/checkout-core/internal/infrastructure/provider"
	"github.com/splitpay/checkout-core/internal/session"
	"github.com/splitpay/checkout-core/internal/validation"
)

type CardConfirmation struct {
	ProviderIntentID string
	PaymentMethodID  string
}

type CompleteInput struct {
	SessionID      string
	Cards          []CardConfirmation
	IdempotencyKey string
}

type CompleteResult struct {
	OrderID     string
	OrderNumber string
}

// cachedCompleteResponse is what gets persisted against an idempotency
// key once complete() reaches a terminal outcome — success or failure —
// so a retried request with the same key replays the original result
// instead of re-running the fan-out (spec.md §9's idempotency-keys Open
// Question, resolved as implemented).
type cachedCompleteResponse struct {
	OK          bool   `json:"ok"`
	OrderID     string `json:"order_id,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	ErrorMsg    string `json:"error_message,omitempty"`

	// Card fields are only set when the cached failure was a
	// *FailedCardError, so replayIdempotentComplete can hand the widget
	// back the same failedCard{} body (spec.md §6, §7) it would have
	// gotten on the original request instead of a generic error.
	ProviderIntentID string `json:"provider_intent_id,omitempty"`
	CardBrand        string `json:"card_brand,omitempty"`
	CardLastFour     string `json:"card_last_four,omitempty"`
}

// FailedCardError is returned when complete() fails because a specific
// card was declined or failed to authorize — the widget needs the
// offending card's identity to highlight it (spec.md §6, §7).
type FailedCardError struct {
	*apperrors.Error
	ProviderIntentID string
	CardBrand        string
	CardLastFour     string
}

// authResult is one payment's outcome from the authorize fan-out; it
// carries everything the compensation and capture phases need without
// re-querying the DB, matching spec.md §5's all-settle fan-out model.
type authResult struct {
	payment *domain.Payment
	methodID string
	status  provider.AuthStatus
	decline *provider.DeclineInfo
	err     error
}

// Complete implements spec.md §4.6 complete(): concurrent authorize
// fan-out, compensating cancel on any authorize failure, concurrent
// capture fan-out, best-effort compensating cancel on any capture
// failure, order submission, and session teardown. Every fan-out phase
// waits for all tasks to settle before deciding outcome — never a
// first-error cancel — so compensation always knows exactly which
// authorizations actually succeeded.
func (o *Orchestrator) Complete(ctx context.Context, in CompleteInput) (*CompleteResult, error) {
	start := time.Now()

	// Checked before the session lookup: a retried request arriving after
	// the first call already deleted the session must still replay the
	// cached result rather than fail with "session not found".
	if in.IdempotencyKey != "" && o.Idempotency != nil {
		if replay, err := o.replayIdempotentComplete(in.IdempotencyKey); err != nil {
			return nil, err
		} else if replay != nil {
			return replay.result, replay.err
		}
	}

	sess, err := o.Sessions.Get(in.SessionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.CodeSessionNotFound, "session not found or expired", err)
	}

	if err := o.validateCompletePrecondition(sess, in.Cards); err != nil {
		return nil, err
	}

	// The CAS-like guard spec.md §5 requires: only the first mover's
	// pending→processing transition wins; a concurrent complete() on the
	// same transaction sees the row already in processing and rejects.
	ok, err := o.Transactions.SetStatus(sess.TransactionID, domain.TransactionPending, domain.TransactionProcessing, "")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to move transaction to processing", err)
	}
	if !ok {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeCheckoutFailed, "checkout is already being completed or has already completed")
	}

	if in.IdempotencyKey != "" && o.Idempotency != nil {
		store, _ := o.Stores.GetByShopDomain(sess.ShopDomain)
		storeID := ""
		if store != nil {
			storeID = store.ID
		}
		if err := o.Idempotency.Reserve(in.IdempotencyKey, storeID, "complete"); err != nil {
			if errors.Is(err, domain.ErrIdempotencyKeyConflict) {
				return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeCheckoutFailed, "idempotency key already in use")
			}
			return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to reserve idempotency key", err)
		}
	}

	methodByIntent := make(map[string]string, len(in.Cards))
	for _, c := range in.Cards {
		methodByIntent[c.ProviderIntentID] = c.PaymentMethodID
	}

	payments, err := o.Payments.ListByTransaction(sess.TransactionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to load payments", err)
	}

	results := o.authorizeAll(ctx, sess.ShopDomain, payments, methodByIntent)

	if failed := firstFailure(results); failed != nil {
		o.compensateAuthorized(ctx, sess.ShopDomain, sess.TransactionID, results)
		reason := fmt.Sprintf("Payment failed: %s", failed.Error())
		_, _ = o.Transactions.SetStatus(sess.TransactionID, domain.TransactionProcessing, domain.TransactionFailed, reason)
		o.Metrics.RecordTransactionFailed(sess.ShopDomain, "authorize_failed")
		_ = o.Sessions.Delete(in.SessionID)
		o.recordIdempotentFailure(in.IdempotencyKey, failed)
		return nil, failed
	}

	captureErr := o.captureAll(ctx, sess.ShopDomain, results)
	if captureErr != nil {
		o.compensateNotCaptured(ctx, results)
		_, _ = o.Transactions.SetStatus(sess.TransactionID, domain.TransactionProcessing, domain.TransactionFailed, "Capture failed after authorization")
		o.Metrics.RecordTransactionFailed(sess.ShopDomain, "capture_failed")
		o.alert(ctx, kafka.SeverityCritical, "partial_capture", sess.ShopDomain, sess.TransactionID,
			fmt.Sprintf("capture failed after authorization, manual reversal may be required: %v", captureErr))
		_ = o.Sessions.Delete(in.SessionID)
		postCaptureErr := apperrors.Wrap(apperrors.KindPostCaptureAnomaly, apperrors.CodeCheckoutFailed, "capture failed after authorization", captureErr)
		o.recordIdempotentFailure(in.IdempotencyKey, postCaptureErr)
		return nil, postCaptureErr
	}

	ok, err = o.Transactions.SetStatus(sess.TransactionID, domain.TransactionProcessing, domain.TransactionCompleted, "")
	if err != nil || !ok {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to mark transaction completed", err)
	}
	o.Metrics.RecordTransactionCompleted(sess.ShopDomain)

	orderResult := o.submitOrder(ctx, sess, payments)

	o.Metrics.RecordOperationDuration("complete", "success", time.Since(start).Seconds())
	_ = o.Sessions.Delete(in.SessionID)
	o.recordIdempotentSuccess(in.IdempotencyKey, orderResult)

	return orderResult, nil
}

type idempotentReplay struct {
	result *CompleteResult
	err    error
}

// replayIdempotentComplete looks up a prior outcome for this key. It
// returns (nil, nil) when the key has never been seen (the caller should
// proceed and Reserve it), and a non-nil *idempotentReplay when the
// caller should short-circuit with the cached result or error.
func (o *Orchestrator) replayIdempotentComplete(key string) (*idempotentReplay, error) {
	rec, err := o.Idempotency.Lookup(key)
	if err != nil {
		if errors.Is(err, domain.ErrIdempotencyKeyInFlight) {
			return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeCheckoutFailed, "checkout is already being completed for this idempotency key")
		}
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to check idempotency key", err)
	}
	if rec == nil {
		return nil, nil
	}

	var cached cachedCompleteResponse
	if err := json.Unmarshal(rec.ResponseBody, &cached); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to decode cached idempotent response", err)
	}
	if cached.OK {
		return &idempotentReplay{result: &CompleteResult{OrderID: cached.OrderID, OrderNumber: cached.OrderNumber}}, nil
	}
	base := apperrors.New(apperrors.Kind(cached.ErrorKind), cached.ErrorCode, cached.ErrorMsg)
	if cached.ProviderIntentID == "" {
		return &idempotentReplay{err: base}, nil
	}
	return &idempotentReplay{err: &FailedCardError{
		Error:            base,
		ProviderIntentID: cached.ProviderIntentID,
		CardBrand:        cached.CardBrand,
		CardLastFour:     cached.CardLastFour,
	}}, nil
}

func (o *Orchestrator) recordIdempotentSuccess(key string, result *CompleteResult) {
	if key == "" || o.Idempotency == nil || result == nil {
		return
	}
	body, _ := json.Marshal(cachedCompleteResponse{OK: true, OrderID: result.OrderID, OrderNumber: result.OrderNumber})
	_ = o.Idempotency.RecordResponse(key, 200, body)
}

func (o *Orchestrator) recordIdempotentFailure(key string, cause error) {
	if key == "" || o.Idempotency == nil {
		return
	}
	status := 500
	kind, code, msg := apperrors.KindInfrastructure, apperrors.CodeInternalError, cause.Error()
	var failedCard *FailedCardError
	var appErr *apperrors.Error
	resp := cachedCompleteResponse{OK: false}
	switch {
	case errors.As(cause, &failedCard):
		status, kind, code, msg = failedCard.HTTPStatus(), failedCard.Kind, failedCard.Code, failedCard.Message
		resp.ProviderIntentID = failedCard.ProviderIntentID
		resp.CardBrand = failedCard.CardBrand
		resp.CardLastFour = failedCard.CardLastFour
	case errors.As(cause, &appErr):
		status, kind, code, msg = appErr.HTTPStatus(), appErr.Kind, appErr.Code, appErr.Message
	}
	resp.ErrorKind, resp.ErrorCode, resp.ErrorMsg = string(kind), code, msg
	body, _ := json.Marshal(resp)
	_ = o.Idempotency.RecordResponse(key, status, body)
}

func (o *Orchestrator) validateCompletePrecondition(sess *session.Session, cards []CardConfirmation) error {
	if len(cards) != len(sess.Payments) {
		return apperrors.New(apperrors.KindValidation, apperrors.CodeCheckoutFailed, "submitted card list does not match session payments")
	}
	amounts := make([]int64, 0, len(sess.Payments))
	submitted := make(map[string]bool, len(cards))
	for _, c := range cards {
		submitted[c.ProviderIntentID] = true
	}
	for _, p := range sess.Payments {
		if !submitted[p.ProviderIntentID] {
			return apperrors.New(apperrors.KindValidation, apperrors.CodeCheckoutFailed, "submitted card list is missing a session payment")
		}
		amounts = append(amounts, p.AmountCents)
	}
	if err := validation.PaymentAmounts(sess.TotalCents, amounts, sess.MinAmount); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidAmount, err.Error(), err)
	}
	return nil
}

// authorizeAll fans out confirm_authorization across every payment and
// waits for every goroutine to report before returning. A confirm result
// of requires_capture or succeeded counts as authorized; the intent's
// provider state is not looked up before the confirm call.
func (o *Orchestrator) authorizeAll(ctx context.Context, shopDomain string, payments []*domain.Payment, methodByIntent map[string]string) []authResult {
	results := make([]authResult, len(payments))
	var wg sync.WaitGroup
	for i, p := range payments {
		wg.Add(1)
		go func(i int, p *domain.Payment) {
			defer wg.Done()
			methodID := methodByIntent[p.ProviderIntentID]
			results[i] = o.authorizeOne(ctx, shopDomain, p, methodID)
		}(i, p)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) authorizeOne(ctx context.Context, shopDomain string, p *domain.Payment, methodID string) authResult {
	status, decline, err := o.Provider.ConfirmAuthorization(ctx, p.ProviderIntentID, methodID)
	if err != nil {
		var perr *provider.Error
		if asProviderErr(err, &perr) && perr.Decline != nil {
			decline = perr.Decline
		}
		_ = o.Payments.SetStatus(p.ID, domain.PaymentFailed, declineCode(decline), err.Error())
		o.Metrics.RecordPaymentDeclined(shopDomain, declineCode(decline))
		o.logTransition(ctx, p.TransactionID, p.ID, "payment.authorize_failed", string(p.Status), string(domain.PaymentFailed), err.Error())
		return authResult{payment: p, methodID: methodID, decline: decline, err: err}
	}

	if !status.IsAuthorized() {
		err := fmt.Errorf("unexpected authorization status %q", status)
		_ = o.Payments.SetStatus(p.ID, domain.PaymentFailed, "", err.Error())
		return authResult{payment: p, methodID: methodID, status: status, err: err}
	}

	if err := o.Payments.SetCardDetails(p.ID, domain.CardDetails{ProviderMethodID: methodID}); err != nil {
		return authResult{payment: p, methodID: methodID, status: status, err: err}
	}
	if err := o.Payments.SetStatus(p.ID, domain.PaymentAuthorized, "", ""); err != nil {
		return authResult{payment: p, methodID: methodID, status: status, err: err}
	}
	o.Metrics.RecordPaymentAuthorized(shopDomain)
	o.logTransition(ctx, p.TransactionID, p.ID, "payment.authorized", string(p.Status), string(domain.PaymentAuthorized), "")

	return authResult{payment: p, methodID: methodID, status: status}
}

func firstFailure(results []authResult) *FailedCardError {
	for _, r := range results {
		if r.err == nil {
			continue
		}
		base := apperrors.Wrap(apperrors.KindProviderDecline, apperrors.CodeCardDeclined, "card authorization failed", r.err)
		fc := &FailedCardError{Error: base, ProviderIntentID: r.payment.ProviderIntentID}
		if r.decline != nil {
			fc.CardBrand = r.decline.CardBrand
			fc.CardLastFour = r.decline.CardLastFour
		}
		return fc
	}
	return nil
}

// compensateAuthorized cancels every authorization that succeeded so far,
// in parallel, and marks each payment voided — the all-settle
// compensation spec.md §4.6 step 3 and §9 require.
func (o *Orchestrator) compensateAuthorized(ctx context.Context, shopDomain, txID string, results []authResult) {
	var wg sync.WaitGroup
	var merr error
	var mu sync.Mutex
	for _, r := range results {
		if r.err != nil {
			continue
		}
		wg.Add(1)
		go func(r authResult) {
			defer wg.Done()
			if err := o.Provider.CancelAuthorization(ctx, r.payment.ProviderIntentID); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
				return
			}
			_ = o.Payments.SetStatus(r.payment.ID, domain.PaymentVoided, "", "compensated after sibling authorization failure")
			o.Metrics.RecordPaymentCompensated(shopDomain)
			o.logTransition(ctx, r.payment.TransactionID, r.payment.ID, "payment.compensated", string(domain.PaymentAuthorized), string(domain.PaymentVoided), "")
		}(r)
	}
	wg.Wait()
	if merr != nil {
		o.alert(ctx, kafka.SeverityWarning, "compensation_partial_failure", shopDomain, txID, merr.Error())
	}
}

// captureAll fans out capture_authorization across every authorized
// payment and waits for all to settle; returns the aggregated error (nil
// if every capture succeeded).
func (o *Orchestrator) captureAll(ctx context.Context, shopDomain string, results []authResult) error {
	var wg sync.WaitGroup
	var merr error
	var mu sync.Mutex
	for i := range results {
		if results[i].err != nil {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := results[i].payment
			status, err := o.Provider.CaptureAuthorization(ctx, p.ProviderIntentID)
			if err != nil {
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("capture %s: %w", p.ID, err))
				mu.Unlock()
				results[i].err = err
				return
			}
			if status != provider.AuthStatusSucceeded {
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("capture %s: unexpected status %q", p.ID, status))
				mu.Unlock()
				results[i].err = fmt.Errorf("unexpected capture status %q", status)
				return
			}
			_ = o.Payments.SetStatus(p.ID, domain.PaymentCaptured, "", "")
			o.Metrics.RecordPaymentCaptured(shopDomain)
			o.logTransition(ctx, p.TransactionID, p.ID, "payment.captured", string(domain.PaymentAuthorized), string(domain.PaymentCaptured), "")
		}(i)
	}
	wg.Wait()
	return merr
}

// compensateNotCaptured is the best-effort reversal spec.md §4.6 step 4
// calls for when any capture fails: cancel every authorized payment that
// didn't make it to captured. Already-captured payments are left
// untouched — they need an admin-initiated refund, not a cancel.
func (o *Orchestrator) compensateNotCaptured(ctx context.Context, results []authResult) {
	var wg sync.WaitGroup
	for _, r := range results {
		// captureAll leaves err nil only on payments it actually captured;
		// those must never be canceled here.
		if r.err == nil {
			continue
		}
		wg.Add(1)
		go func(r authResult) {
			defer wg.Done()
			_ = o.Provider.CancelAuthorization(ctx, r.payment.ProviderIntentID)
			_ = o.Payments.SetStatus(r.payment.ID, domain.PaymentVoided, "", "compensated after sibling capture failure")
		}(r)
	}
	wg.Wait()
}

func (o *Orchestrator) submitOrder(ctx context.Context, sess *session.Session, payments []*domain.Payment) *CompleteResult {
	store, err := o.Stores.GetByShopDomain(sess.ShopDomain)
	if err != nil {
		o.alert(ctx, kafka.SeverityCritical, "order_submission_failed", sess.ShopDomain, sess.TransactionID, "store lookup failed: "+err.Error())
		return &CompleteResult{}
	}

	var customerEmail string
	if tx, err := o.Transactions.GetByID(sess.TransactionID); err == nil {
		customerEmail = tx.Customer.Email
	}

	req := platform.OrderRequest{
		CheckoutToken: sess.CheckoutToken,
		TotalCents:    sess.TotalCents,
		Currency:      sess.Currency,
		CustomerEmail: customerEmail,
		Note:          fmt.Sprintf("Split across %d cards", len(payments)),
		Tags:          []string{"split-payment"},
		Metafields: map[string]string{
			"split_payment":  "true",
			"transaction_id": sess.TransactionID,
			"payment_count":  fmt.Sprintf("%d", len(payments)),
		},
	}

	result, err := o.Platform.SubmitOrder(ctx, store.AccessToken, req)
	if err != nil {
		o.alert(ctx, kafka.SeverityCritical, "order_submission_failed", sess.ShopDomain, sess.TransactionID, err.Error())
		return &CompleteResult{}
	}

	if err := o.Transactions.SetOrder(sess.TransactionID, result.OrderID, result.OrderNumber); err != nil {
		o.alert(ctx, kafka.SeverityCritical, "order_link_failed", sess.ShopDomain, sess.TransactionID, err.Error())
	}

	return &CompleteResult{OrderID: result.OrderID, OrderNumber: result.OrderNumber}
}

func declineCode(d *provider.DeclineInfo) string {
	if d == nil {
		return ""
	}
	return d.FailureCode
}

func asProviderErr(err error, out **provider.Error) bool {
	perr, ok := err.(*provider.Error)
	if ok {
		*out = perr
	}
	return ok
}
