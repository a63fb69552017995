package domain

import "time"

type TransactionStatus string

const (
	TransactionPending            TransactionStatus = "pending"
	TransactionProcessing         TransactionStatus = "processing"
	TransactionCompleted          TransactionStatus = "completed"
	TransactionFailed             TransactionStatus = "failed"
	TransactionPartiallyRefunded  TransactionStatus = "partially_refunded"
	TransactionRefunded           TransactionStatus = "refunded"
)

// CustomerMeta captures the buyer-identifying fields a transaction carries.
// Redacted in place on GDPR customers/redact webhooks.
type CustomerMeta struct {
	Email     string
	IPAddress string
	UserAgent string
}

type Transaction struct {
	ID                string
	StoreID           string
	CheckoutToken     string
	OrderID           *string
	OrderNumber       *string
	TotalAmountCents  int64
	Currency          string
	Status            TransactionStatus
	FailureReason     string
	Customer          CustomerMeta
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TransactionFilter narrows a transaction listing for the admin surface.
type TransactionFilter struct {
	Status    TransactionStatus
	StartDate *time.Time
	EndDate   *time.Time
}

type Page struct {
	Items []*Transaction
	Total int64
	Page  int
	Pages int
}

// Stats is the admin `/stats` surface's aggregate view of a store's
// checkout activity (spec.md §6).
type Stats struct {
	TotalTransactions     int64
	CompletedCount        int64
	FailedCount           int64
	ProcessingCount       int64
	TotalCapturedCents    int64
	TotalRefundedCents    int64
}

type TransactionRepository interface {
	Create(tx *Transaction) error
	GetByID(id string) (*Transaction, error)
	GetByCheckoutToken(storeID, checkoutToken string) (*Transaction, error)
	// SetStatus performs a conditional UPDATE (`WHERE status = fromStatus`) and
	// reports whether the row actually transitioned — the CAS-like guard
	// spec.md §5 requires to serialize concurrent complete() calls.
	SetStatus(id string, fromStatus, toStatus TransactionStatus, failureReason string) (bool, error)
	SetOrder(id, orderID, orderNumber string) error
	SetTotalAmount(id string, totalAmountCents int64, currency string) error
	List(storeID string, filter TransactionFilter, page, limit int) (*Page, error)
	FindCompletedWithoutOrder() ([]*Transaction, error)
	RedactCustomerPII(storeID string) error
	Stats(storeID string) (*Stats, error)
}
