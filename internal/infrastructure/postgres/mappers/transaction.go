package mappers

import (
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
)

func ToGORMTransaction(t *domain.Transaction) *models.TransactionModel {
	return &models.TransactionModel{
		ID:               t.ID,
		StoreID:          t.StoreID,
		CheckoutToken:    t.CheckoutToken,
		OrderID:          t.OrderID,
		OrderNumber:      t.OrderNumber,
		TotalAmountCents: t.TotalAmountCents,
		Currency:         t.Currency,
		Status:           string(t.Status),
		FailureReason:    t.FailureReason,
		CustomerEmail:    t.Customer.Email,
		CustomerIP:       t.Customer.IPAddress,
		CustomerUA:       t.Customer.UserAgent,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func ToDomainTransaction(m *models.TransactionModel) *domain.Transaction {
	return &domain.Transaction{
		ID:               m.ID,
		StoreID:          m.StoreID,
		CheckoutToken:    m.CheckoutToken,
		OrderID:          m.OrderID,
		OrderNumber:      m.OrderNumber,
		TotalAmountCents: m.TotalAmountCents,
		Currency:         m.Currency,
		Status:           domain.TransactionStatus(m.Status),
		FailureReason:    m.FailureReason,
		Customer: domain.CustomerMeta{
			Email:     m.CustomerEmail,
			IPAddress: m.CustomerIP,
			UserAgent: m.CustomerUA,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
