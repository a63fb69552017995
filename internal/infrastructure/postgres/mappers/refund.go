package mappers

import (
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
)

func ToGORMRefund(r *domain.Refund) *models.RefundModel {
	return &models.RefundModel{
		ID:               r.ID,
		TransactionID:    r.TransactionID,
		PaymentID:        r.PaymentID,
		ProviderRefundID: r.ProviderRefundID,
		AmountCents:      r.AmountCents,
		Reason:           string(r.Reason),
		Status:           string(r.Status),
		InitiatedBy:      string(r.InitiatedBy),
		FailureReason:    r.FailureReason,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func ToDomainRefund(m *models.RefundModel) *domain.Refund {
	return &domain.Refund{
		ID:               m.ID,
		TransactionID:    m.TransactionID,
		PaymentID:        m.PaymentID,
		ProviderRefundID: m.ProviderRefundID,
		AmountCents:      m.AmountCents,
		Reason:           domain.RefundReason(m.Reason),
		Status:           domain.RefundStatus(m.Status),
		InitiatedBy:      domain.RefundInitiator(m.InitiatedBy),
		FailureReason:    m.FailureReason,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
