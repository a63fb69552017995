package repository

import (
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/mappers"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type RefundRepository struct {
	DB *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{DB: db}
}

func (r *RefundRepository) Create(ref *domain.Refund) error {
	return r.DB.Create(mappers.ToGORMRefund(ref)).Error
}

func (r *RefundRepository) GetByProviderRefundID(providerRefundID string) (*domain.Refund, error) {
	var m models.RefundModel
	if err := r.DB.First(&m, "provider_refund_id = ?", providerRefundID).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainRefund(&m), nil
}

func (r *RefundRepository) ListByTransaction(transactionID string) ([]*domain.Refund, error) {
	var rows []models.RefundModel
	if err := r.DB.Where("transaction_id = ?", transactionID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Refund, len(rows))
	for i := range rows {
		out[i] = mappers.ToDomainRefund(&rows[i])
	}
	return out, nil
}

func (r *RefundRepository) SetStatus(id string, status domain.RefundStatus, failureReason string) error {
	return r.DB.Model(&models.RefundModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":         string(status),
		"failure_reason": failureReason,
	}).Error
}

func (r *RefundRepository) SumSucceededByTransaction(transactionID string) (int64, error) {
	var total int64
	err := r.DB.Model(&models.RefundModel{}).
		Where("transaction_id = ? AND status = ?", transactionID, string(domain.RefundSucceeded)).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}
