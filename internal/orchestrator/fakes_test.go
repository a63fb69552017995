package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/metrics"
	"github.com/splitpay/checkout-core/internal/infrastructure/provider"
)

// testMetrics is constructed once per test binary: promauto registers
// every series against the global Prometheus registry, so a second
// construction would panic on duplicate collector registration.
var testMetrics = metrics.NewCheckoutMetrics()

// fakeStoreRepo, fakeTransactionRepo, fakePaymentRepo, and fakeRefundRepo
// are minimal map-backed, in-memory stand-ins for the GORM repositories,
// written by hand rather than generated.
type fakeStoreRepo struct {
	mu     sync.Mutex
	stores map[string]*domain.Store
}

func newFakeStoreRepo(stores ...*domain.Store) *fakeStoreRepo {
	r := &fakeStoreRepo{stores: map[string]*domain.Store{}}
	for _, s := range stores {
		r.stores[s.ID] = s
	}
	return r
}

func (r *fakeStoreRepo) Create(s *domain.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.ID] = s
	return nil
}

func (r *fakeStoreRepo) GetByID(id string) (*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	if !ok {
		return nil, fmt.Errorf("store %s not found", id)
	}
	return s, nil
}

func (r *fakeStoreRepo) GetByShopDomain(shopDomain string) (*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		if s.ShopDomain == shopDomain {
			return s, nil
		}
	}
	return nil, fmt.Errorf("store %s not found", shopDomain)
}

func (r *fakeStoreRepo) SetActive(shopDomain string, active bool) error {
	s, err := r.GetByShopDomain(shopDomain)
	if err != nil {
		return err
	}
	s.Active = active
	return nil
}

func (r *fakeStoreRepo) UpdateSettings(storeID string, settings domain.StoreSettings) error {
	s, err := r.GetByID(storeID)
	if err != nil {
		return err
	}
	s.Settings = settings
	return nil
}

func (r *fakeStoreRepo) UpdateAccessToken(shopDomain, accessToken string) error {
	s, err := r.GetByShopDomain(shopDomain)
	if err != nil {
		return err
	}
	s.AccessToken = accessToken
	return nil
}

func (r *fakeStoreRepo) ListActive() ([]*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Store
	for _, s := range r.stores {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeTransactionRepo struct {
	mu   sync.Mutex
	txns map[string]*domain.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txns: map[string]*domain.Transaction{}}
}

func (r *fakeTransactionRepo) Create(tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[tx.ID] = tx
	return nil
}

func (r *fakeTransactionRepo) GetByID(id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txns[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	return tx, nil
}

func (r *fakeTransactionRepo) GetByCheckoutToken(storeID, checkoutToken string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txns {
		if tx.StoreID == storeID && tx.CheckoutToken == checkoutToken {
			return tx, nil
		}
	}
	return nil, fmt.Errorf("transaction not found")
}

func (r *fakeTransactionRepo) SetStatus(id string, fromStatus, toStatus domain.TransactionStatus, failureReason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txns[id]
	if !ok {
		return false, fmt.Errorf("transaction %s not found", id)
	}
	if tx.Status != fromStatus {
		return false, nil
	}
	tx.Status = toStatus
	tx.FailureReason = failureReason
	return true, nil
}

func (r *fakeTransactionRepo) SetOrder(id, orderID, orderNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txns[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	tx.OrderID = &orderID
	tx.OrderNumber = &orderNumber
	return nil
}

func (r *fakeTransactionRepo) SetTotalAmount(id string, totalAmountCents int64, currency string) error {
	tx, err := r.GetByID(id)
	if err != nil {
		return err
	}
	tx.TotalAmountCents = totalAmountCents
	tx.Currency = currency
	return nil
}

func (r *fakeTransactionRepo) List(storeID string, filter domain.TransactionFilter, page, limit int) (*domain.Page, error) {
	return &domain.Page{}, nil
}

func (r *fakeTransactionRepo) FindCompletedWithoutOrder() ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range r.txns {
		if tx.Status == domain.TransactionCompleted && tx.OrderID == nil {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) RedactCustomerPII(storeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txns {
		if tx.StoreID == storeID {
			tx.Customer = domain.CustomerMeta{}
		}
	}
	return nil
}

func (r *fakeTransactionRepo) Stats(storeID string) (*domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s domain.Stats
	for _, tx := range r.txns {
		if tx.StoreID != storeID {
			continue
		}
		s.TotalTransactions++
		switch tx.Status {
		case domain.TransactionCompleted:
			s.CompletedCount++
			s.TotalCapturedCents += tx.TotalAmountCents
		case domain.TransactionFailed:
			s.FailedCount++
		case domain.TransactionProcessing:
			s.ProcessingCount++
		}
	}
	return &s, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*domain.Payment{}}
}

func (r *fakePaymentRepo) Create(p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.ID] = p
	return nil
}

func (r *fakePaymentRepo) GetByID(id string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", id)
	}
	return p, nil
}

func (r *fakePaymentRepo) GetByIntentID(intentID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ProviderIntentID == intentID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("payment for intent %s not found", intentID)
}

func (r *fakePaymentRepo) ListByTransaction(transactionID string) ([]*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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
	p.CardBrand = details.Brand
	p.CardLastFour = details.LastFour
	return nil
}

type fakeRefundRepo struct {
	mu      sync.Mutex
	refunds map[string]*domain.Refund
}

func newFakeRefundRepo() *fakeRefundRepo {
	return &fakeRefundRepo{refunds: map[string]*domain.Refund{}}
}

func (r *fakeRefundRepo) Create(ref *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds[ref.ID] = ref
	return nil
}

func (r *fakeRefundRepo) GetByProviderRefundID(providerRefundID string) (*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.refunds {
		if ref.ProviderRefundID == providerRefundID {
			return ref, nil
		}
	}
	return nil, fmt.Errorf("refund %s not found", providerRefundID)
}

func (r *fakeRefundRepo) ListByTransaction(transactionID string) ([]*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Refund
	for _, ref := range r.refunds {
		if ref.TransactionID == transactionID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *fakeRefundRepo) SetStatus(id string, status domain.RefundStatus, failureReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refunds[id]
	if !ok {
		return fmt.Errorf("refund %s not found", id)
	}
	ref.Status = status
	ref.FailureReason = failureReason
	return nil
}

func (r *fakeRefundRepo) SumSucceededByTransaction(transactionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, ref := range r.refunds {
		if ref.TransactionID == transactionID && ref.Status == domain.RefundSucceeded {
			sum += ref.AmountCents
		}
	}
	return sum, nil
}

// fakeProvider is a scriptable stand-in for provider.Adapter: each card's
// behavior is looked up by its provider intent id, so a test can make
// "card 2" decline deterministically.
type fakeProvider struct {
	mu             sync.Mutex
	confirmResult  map[string]provider.AuthStatus
	confirmErr     map[string]error
	captureResult  map[string]provider.AuthStatus
	canceled       map[string]bool
	refundResults  map[string]*provider.RefundResult
	refundErrs     map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		confirmResult: map[string]provider.AuthStatus{},
		confirmErr:    map[string]error{},
		captureResult: map[string]provider.AuthStatus{},
		canceled:      map[string]bool{},
		refundResults: map[string]*provider.RefundResult{},
		refundErrs:    map[string]error{},
	}
}

func (p *fakeProvider) CreateAuthorization(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*provider.Authorization, error) {
	id := "pi_" + uuid.New().String()
	return &provider.Authorization{IntentID: id, ClientSecret: "secret_" + id, Status: provider.AuthStatusRequiresCapture}, nil
}

func (p *fakeProvider) ConfirmAuthorization(ctx context.Context, intentID, methodID string) (provider.AuthStatus, *provider.DeclineInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.confirmErr[intentID]; ok {
		return provider.AuthStatusFailed, &provider.DeclineInfo{FailureCode: "card_declined"}, err
	}
	if status, ok := p.confirmResult[intentID]; ok {
		return status, nil, nil
	}
	return provider.AuthStatusRequiresCapture, nil, nil
}

func (p *fakeProvider) CaptureAuthorization(ctx context.Context, intentID string) (provider.AuthStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, ok := p.captureResult[intentID]; ok {
		return status, nil
	}
	return provider.AuthStatusSucceeded, nil
}

func (p *fakeProvider) CancelAuthorization(ctx context.Context, intentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled[intentID] = true
	return nil
}

func (p *fakeProvider) CreateRefund(ctx context.Context, intentID string, amountCents int64, reason string, metadata map[string]string) (*provider.RefundResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.refundErrs[intentID]; ok {
		return nil, err
	}
	if res, ok := p.refundResults[intentID]; ok {
		return res, nil
	}
	return &provider.RefundResult{RefundID: "re_" + uuid.New().String(), Status: "succeeded"}, nil
}

func (p *fakeProvider) wasCanceled(intentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canceled[intentID]
}

type fakeIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{records: map[string]*domain.IdempotencyRecord{}}
}

func (r *fakeIdempotencyRepo) Reserve(key, storeID, operation string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[key]; ok {
		return domain.ErrIdempotencyKeyConflict
	}
	r.records[key] = &domain.IdempotencyRecord{Key: key, StoreID: storeID, Operation: operation}
	return nil
}

func (r *fakeIdempotencyRepo) Lookup(key string) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	if rec.ResponseCode == 0 {
		return nil, domain.ErrIdempotencyKeyInFlight
	}
	return rec, nil
}

func (r *fakeIdempotencyRepo) RecordResponse(key string, code int, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return fmt.Errorf("idempotency key %s not reserved", key)
	}
	rec.ResponseCode = code
	rec.ResponseBody = body
	return nil
}
