package reconciler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/platform"
)

// TestStartupReconciler_RepairsOrphanedOrder mirrors spec.md §9's
// post-capture / pre-order window: a transaction landed in completed
// with funds captured but no order ever got created. The startup
// reconciler must retry submission and link the order, touching no
// money state in the process.
func TestStartupReconciler_RepairsOrphanedOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"order_id": "order_999", "order_number": "#2002"})
	}))
	defer srv.Close()

	store := seedActiveStore()
	tx := &domain.Transaction{
		ID:               uuid.New().String(),
		StoreID:          store.ID,
		CheckoutToken:    "checkouttokenabcdefghijklmnopqrstuvwx12",
		TotalAmountCents: 15000,
		Currency:         "USD",
		Status:           domain.TransactionCompleted,
		CreatedAt:        time.Now(),
	}
	payment := &domain.Payment{
		ID:               uuid.New().String(),
		TransactionID:    tx.ID,
		ProviderIntentID: "pi_orphan",
		AmountCents:      15000,
		Status:           domain.PaymentCaptured,
	}

	stores := newFakeStoreRepo(store)
	txns := newFakeTransactionRepo(tx)
	payments := newFakePaymentRepo(payment)

	r := NewStartupReconciler(stores, txns, payments, platform.NewClient(srv.URL), nil)
	r.ReconcileOrphanedOrders(context.Background())

	reloaded, err := txns.GetByID(tx.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.OrderID)
	assert.Equal(t, "order_999", *reloaded.OrderID)
	require.NotNil(t, reloaded.OrderNumber)
	assert.Equal(t, "#2002", *reloaded.OrderNumber)
}

// TestStartupReconciler_IgnoresLinkedTransactions ensures a transaction
// that already has an order never gets resubmitted.
func TestStartupReconciler_IgnoresLinkedTransactions(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := seedActiveStore()
	orderID := "order_existing"
	orderNumber := "#1000"
	tx := &domain.Transaction{
		ID:        uuid.New().String(),
		StoreID:   store.ID,
		Status:    domain.TransactionCompleted,
		OrderID:   &orderID,
		OrderNumber: &orderNumber,
		CreatedAt: time.Now(),
	}

	stores := newFakeStoreRepo(store)
	txns := newFakeTransactionRepo(tx)
	payments := newFakePaymentRepo()

	r := NewStartupReconciler(stores, txns, payments, platform.NewClient(srv.URL), nil)
	r.ReconcileOrphanedOrders(context.Background())

	assert.False(t, called, "already-linked transactions must not be resubmitted")
}
