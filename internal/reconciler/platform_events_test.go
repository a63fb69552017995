package reconciler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/metrics"
	"github.com/splitpay/checkout-core/internal/infrastructure/platform"
)

const testPlatformSecret = "shpss_test_secret"

func signBase64(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type fakeStoreRepo struct {
	stores map[string]*domain.Store
}

func newFakeStoreRepo(stores ...*domain.Store) *fakeStoreRepo {
	r := &fakeStoreRepo{stores: map[string]*domain.Store{}}
	for _, s := range stores {
		r.stores[s.ID] = s
	}
	return r
}

func (r *fakeStoreRepo) Create(s *domain.Store) error { r.stores[s.ID] = s; return nil }

func (r *fakeStoreRepo) GetByID(id string) (*domain.Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return nil, fmt.Errorf("store %s not found", id)
	}
	return s, nil
}

func (r *fakeStoreRepo) GetByShopDomain(shopDomain string) (*domain.Store, error) {
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
	var out []*domain.Store
	for _, s := range r.stores {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeTransactionRepo struct {
	txns map[string]*domain.Transaction
}

func newFakeTransactionRepo(txns ...*domain.Transaction) *fakeTransactionRepo {
	r := &fakeTransactionRepo{txns: map[string]*domain.Transaction{}}
	for _, tx := range txns {
		r.txns[tx.ID] = tx
	}
	return r
}

func (r *fakeTransactionRepo) Create(tx *domain.Transaction) error { r.txns[tx.ID] = tx; return nil }

func (r *fakeTransactionRepo) GetByID(id string) (*domain.Transaction, error) {
	tx, ok := r.txns[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	return tx, nil
}

func (r *fakeTransactionRepo) GetByCheckoutToken(storeID, checkoutToken string) (*domain.Transaction, error) {
	for _, tx := range r.txns {
		if tx.StoreID == storeID && tx.CheckoutToken == checkoutToken {
			return tx, nil
		}
	}
	return nil, fmt.Errorf("transaction not found")
}

func (r *fakeTransactionRepo) SetStatus(id string, fromStatus, toStatus domain.TransactionStatus, failureReason string) (bool, error) {
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
	var out []*domain.Transaction
	for _, tx := range r.txns {
		if tx.Status == domain.TransactionCompleted && tx.OrderID == nil {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) RedactCustomerPII(storeID string) error {
	for _, tx := range r.txns {
		if tx.StoreID == storeID {
			tx.Customer = domain.CustomerMeta{}
		}
	}
	return nil
}

func (r *fakeTransactionRepo) Stats(storeID string) (*domain.Stats, error) {
	var s domain.Stats
	for _, tx := range r.txns {
		if tx.StoreID == storeID {
			s.TotalTransactions++
		}
	}
	return &s, nil
}

func seedActiveStore() *domain.Store {
	return &domain.Store{
		ID:          uuid.New().String(),
		ShopDomain:  "acme-store.myshopify.com",
		AccessToken: "shpat_live",
		Settings:    domain.DefaultStoreSettings(),
		Active:      true,
		InstalledAt: time.Now(),
	}
}

// TestPlatformReconciler_RejectsBadSignature ensures a forged platform
// webhook never reaches dispatch.
func TestPlatformReconciler_RejectsBadSignature(t *testing.T) {
	stores := newFakeStoreRepo()
	r := NewPlatformReconciler(stores, newFakeTransactionRepo(), metrics.NewCheckoutMetrics(), nil)

	body := []byte(`{}`)
	err := r.HandleWebhook(context.Background(), body, platform.TopicAppUninstalled, "acme-store.myshopify.com", "not-base64-hmac", testPlatformSecret)
	assert.Error(t, err)
}

// TestPlatformReconciler_AppUninstalled deactivates the store and clears
// its access token.
func TestPlatformReconciler_AppUninstalled(t *testing.T) {
	store := seedActiveStore()
	stores := newFakeStoreRepo(store)
	r := NewPlatformReconciler(stores, newFakeTransactionRepo(), metrics.NewCheckoutMetrics(), nil)

	body := []byte(`{"event":"uninstalled"}`)
	err := r.HandleWebhook(context.Background(), body, platform.TopicAppUninstalled, store.ShopDomain, signBase64(body, testPlatformSecret), testPlatformSecret)
	require.NoError(t, err)

	reloaded, err := stores.GetByShopDomain(store.ShopDomain)
	require.NoError(t, err)
	assert.False(t, reloaded.Active)
	assert.Empty(t, reloaded.AccessToken)
}

// TestPlatformReconciler_ShopRedact deactivates the store and scrubs PII
// from every transaction belonging to it, per spec.md §4.8's GDPR
// requirement.
func TestPlatformReconciler_ShopRedact(t *testing.T) {
	store := seedActiveStore()
	tx := &domain.Transaction{
		ID:       uuid.New().String(),
		StoreID:  store.ID,
		Customer: domain.CustomerMeta{Email: "buyer@example.com"},
	}
	stores := newFakeStoreRepo(store)
	txns := newFakeTransactionRepo(tx)
	r := NewPlatformReconciler(stores, txns, metrics.NewCheckoutMetrics(), nil)

	body := []byte(`{"shop_id":1}`)
	err := r.HandleWebhook(context.Background(), body, platform.TopicShopRedact, store.ShopDomain, signBase64(body, testPlatformSecret), testPlatformSecret)
	require.NoError(t, err)

	reloadedStore, err := stores.GetByShopDomain(store.ShopDomain)
	require.NoError(t, err)
	assert.False(t, reloadedStore.Active)

	reloadedTx, err := txns.GetByID(tx.ID)
	require.NoError(t, err)
	assert.Empty(t, reloadedTx.Customer.Email)
}

// TestPlatformReconciler_AdvisoryTopicsNoStateChange covers the
// orders/create and orders/refunded topics, which spec.md §4.8 treats as
// advisory-only: no store or transaction mutation.
func TestPlatformReconciler_AdvisoryTopicsNoStateChange(t *testing.T) {
	store := seedActiveStore()
	stores := newFakeStoreRepo(store)
	r := NewPlatformReconciler(stores, newFakeTransactionRepo(), metrics.NewCheckoutMetrics(), nil)

	body := []byte(`{"order_id":555}`)
	err := r.HandleWebhook(context.Background(), body, platform.TopicOrdersCreate, store.ShopDomain, signBase64(body, testPlatformSecret), testPlatformSecret)
	require.NoError(t, err)

	reloaded, err := stores.GetByShopDomain(store.ShopDomain)
	require.NoError(t, err)
	assert.True(t, reloaded.Active)
}
