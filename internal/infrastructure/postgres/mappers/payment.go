package mappers

import (
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
)

func ToGORMPayment(p *domain.Payment) *models.PaymentModel {
	return &models.PaymentModel{
		ID:               p.ID,
		TransactionID:    p.TransactionID,
		ProviderIntentID: p.ProviderIntentID,
		ProviderMethodID: p.ProviderMethodID,
		AmountCents:      p.AmountCents,
		CardBrand:        p.CardBrand,
		CardLastFour:     p.CardLastFour,
		CardExpMonth:     p.CardExpMonth,
		CardExpYear:      p.CardExpYear,
		Status:           string(p.Status),
		FailureCode:      p.FailureCode,
		FailureMessage:   p.FailureMessage,
		AuthorizedAt:     p.AuthorizedAt,
		CapturedAt:       p.CapturedAt,
		VoidedAt:         p.VoidedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func ToDomainPayment(m *models.PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:               m.ID,
		TransactionID:    m.TransactionID,
		ProviderIntentID: m.ProviderIntentID,
		ProviderMethodID: m.ProviderMethodID,
		AmountCents:      m.AmountCents,
		CardBrand:        m.CardBrand,
		CardLastFour:     m.CardLastFour,
		CardExpMonth:     m.CardExpMonth,
		CardExpYear:      m.CardExpYear,
		Status:           domain.PaymentStatus(m.Status),
		FailureCode:      m.FailureCode,
		FailureMessage:   m.FailureMessage,
		AuthorizedAt:     m.AuthorizedAt,
		CapturedAt:       m.CapturedAt,
		VoidedAt:         m.VoidedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
