package repository

import (
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/mappers"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) Create(p *domain.Payment) error {
	return r.DB.Create(mappers.ToGORMPayment(p)).Error
}

func (r *PaymentRepository) GetByID(id string) (*domain.Payment, error) {
	var m models.PaymentModel
	if err := r.DB.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainPayment(&m), nil
}

func (r *PaymentRepository) GetByIntentID(intentID string) (*domain.Payment, error) {
	var m models.PaymentModel
	if err := r.DB.First(&m, "provider_intent_id = ?", intentID).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainPayment(&m), nil
}

func (r *PaymentRepository) ListByTransaction(transactionID string) ([]*domain.Payment, error) {
	var rows []models.PaymentModel
	if err := r.DB.Where("transaction_id = ?", transactionID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Payment, len(rows))
	for i := range rows {
		out[i] = mappers.ToDomainPayment(&rows[i])
	}
	return out, nil
}

func (r *PaymentRepository) SetStatus(id string, status domain.PaymentStatus, failureCode, failureMessage string) error {
	updates := map[string]any{
		"status":          string(status),
		"failure_code":    failureCode,
		"failure_message": failureMessage,
	}
	switch status {
	case domain.PaymentAuthorized:
		updates["authorized_at"] = gorm.Expr("now()")
	case domain.PaymentCaptured:
		updates["captured_at"] = gorm.Expr("now()")
	case domain.PaymentVoided:
		updates["voided_at"] = gorm.Expr("now()")
	}
	return r.DB.Model(&models.PaymentModel{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PaymentRepository) SetCardDetails(id string, details domain.CardDetails) error {
	return r.DB.Model(&models.PaymentModel{}).Where("id = ?", id).Updates(map[string]any{
		"provider_method_id": details.ProviderMethodID,
		"card_brand":         details.Brand,
		"card_last_four":     details.LastFour,
		"card_exp_month":     details.ExpMonth,
		"card_exp_year":      details.ExpYear,
	}).Error
}
