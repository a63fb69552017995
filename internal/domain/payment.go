package domain

import "time"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentVoided     PaymentStatus = "voided"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// paymentTransitions enumerates the only allowed (from, to) status pairs —
// spec.md §3 invariant 5. A payment never regresses, and a terminal state
// (captured, voided, failed, refunded) never re-enters a non-terminal one.
var paymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:    {PaymentAuthorized: true, PaymentFailed: true},
	PaymentAuthorized: {PaymentCaptured: true, PaymentVoided: true},
	PaymentCaptured:   {PaymentRefunded: true},
}

// CanTransition reports whether moving a payment from `from` to `to` is a
// legal step of its status machine.
func CanTransition(from, to PaymentStatus) bool {
	return paymentTransitions[from][to]
}

type Payment struct {
	ID                string
	TransactionID     string
	ProviderIntentID  string
	ProviderMethodID  string
	AmountCents       int64
	CardBrand         string
	CardLastFour      string
	CardExpMonth      int
	CardExpYear       int
	Status            PaymentStatus
	FailureCode       string
	FailureMessage    string
	AuthorizedAt      *time.Time
	CapturedAt        *time.Time
	VoidedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CardDetails is what the provider reports back about the card once a
// payment method is attached, set at confirm time.
type CardDetails struct {
	ProviderMethodID string
	Brand            string
	LastFour         string
	ExpMonth         int
	ExpYear          int
}

type PaymentRepository interface {
	Create(p *Payment) error
	GetByID(id string) (*Payment, error)
	GetByIntentID(intentID string) (*Payment, error)
	ListByTransaction(transactionID string) ([]*Payment, error)
	SetStatus(id string, status PaymentStatus, failureCode, failureMessage string) error
	SetCardDetails(id string, details CardDetails) error
}
