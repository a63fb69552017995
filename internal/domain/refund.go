package domain

import "time"

type RefundReason string

const (
	RefundReasonDuplicate    RefundReason = "duplicate"
	RefundReasonFraudulent   RefundReason = "fraudulent"
	RefundReasonCustomer     RefundReason = "requested_by_customer"
)

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

type RefundInitiator string

const (
	InitiatedByAdmin     RefundInitiator = "admin"
	InitiatedByWebhook   RefundInitiator = "webhook"
	InitiatedByAutomatic RefundInitiator = "automatic"
)

type Refund struct {
	ID               string
	TransactionID    string
	PaymentID        string
	ProviderRefundID string
	AmountCents      int64
	Reason           RefundReason
	Status           RefundStatus
	InitiatedBy      RefundInitiator
	FailureReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type RefundRepository interface {
	Create(r *Refund) error
	GetByProviderRefundID(providerRefundID string) (*Refund, error)
	ListByTransaction(transactionID string) ([]*Refund, error)
	SetStatus(id string, status RefundStatus, failureReason string) error
	SumSucceededByTransaction(transactionID string) (int64, error)
}
