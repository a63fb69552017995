package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"

	"github.com/splitpay/checkout-core/internal/apperrors"
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/session"
	"github.com/splitpay/checkout-core/internal/validation"
)

// sessionIDGen produces unguessable, URL-safe session ids (≥64 bits of
// entropy, spec.md §4.5). go-nanoid's Standard generator returns a
// closure rather than a single call so the CSPRNG buffer is amortized
// across many ids, the same shape the pack's nanoid usage expects.
var sessionIDGen = mustSessionIDGen()

func mustSessionIDGen() func() string {
	gen, err := nanoid.Standard(21)
	if err != nil {
		panic("failed to build session id generator: " + err.Error())
	}
	return gen
}

func (o *Orchestrator) sessionTTL() time.Duration {
	if o.SessionTTL > 0 {
		return o.SessionTTL
	}
	return session.TTL
}

type InitInput struct {
	ShopDomain    string
	CheckoutToken string
	CustomerEmail string
	CustomerIP    string
	CustomerUA    string
}

type InitResult struct {
	SessionID     string
	TransactionID string
	TotalAmount   int64
	Currency      string
	MaxCards      int
	MinAmount     int64
}

// Init implements spec.md §4.6 init(): look up the store, find-or-create
// the checkout's transaction, fetch the authoritative total from the
// commerce platform (fixing the trust-boundary bug spec.md §9 flags —
// the widget is never trusted with the total), and open a session.
func (o *Orchestrator) Init(ctx context.Context, in InitInput) (*InitResult, error) {
	if err := validation.ShopDomain(in.ShopDomain); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidShop, "invalid shop domain", err)
	}
	if err := validation.CheckoutToken(in.CheckoutToken); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidToken, "invalid checkout token", err)
	}

	store, err := o.Stores.GetByShopDomain(in.ShopDomain)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.CodeStoreNotFound, "store not found", err)
	}
	if !store.Active {
		return nil, apperrors.New(apperrors.KindForbidden, apperrors.CodeStoreNotFound, "store is not active")
	}

	tx, err := o.Transactions.GetByCheckoutToken(store.ID, in.CheckoutToken)
	if err != nil {
		checkoutTotal, err := o.Platform.GetCheckoutTotal(ctx, store.AccessToken, in.CheckoutToken)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to fetch checkout total", err)
		}

		tx = &domain.Transaction{
			ID:               uuid.New().String(),
			StoreID:          store.ID,
			CheckoutToken:    in.CheckoutToken,
			TotalAmountCents: checkoutTotal.TotalAmountCents,
			Currency:         checkoutTotal.Currency,
			Status:           domain.TransactionPending,
			Customer: domain.CustomerMeta{
				Email:     firstNonEmpty(in.CustomerEmail, checkoutTotal.CustomerEmail),
				IPAddress: in.CustomerIP,
				UserAgent: in.CustomerUA,
			},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := o.Transactions.Create(tx); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to create transaction", err)
		}
		o.Metrics.RecordTransactionInitiated(store.ShopDomain)
	} else if tx.Status == domain.TransactionCompleted {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeAlreadyCompleted, "checkout already completed")
	}

	sess := &session.Session{
		SessionID:     sessionIDGen(),
		TransactionID: tx.ID,
		ShopDomain:    store.ShopDomain,
		CheckoutToken: in.CheckoutToken,
		Currency:      tx.Currency,
		TotalCents:    tx.TotalAmountCents,
		MaxCards:      clampMaxCards(store.Settings.MaxCards),
		MinAmount:     int64(store.Settings.MinAmountCents),
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(o.sessionTTL()),
	}
	if err := o.Sessions.Create(sess); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to create session", err)
	}

	return &InitResult{
		SessionID:     sess.SessionID,
		TransactionID: tx.ID,
		TotalAmount:   tx.TotalAmountCents,
		Currency:      tx.Currency,
		MaxCards:      sess.MaxCards,
		MinAmount:     sess.MinAmount,
	}, nil
}

func clampMaxCards(n int) int {
	if n <= 0 || n > 5 {
		return 5
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
