package repository

import (
	"fmt"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/mappers"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	DB *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{DB: db}
}

func (r *TransactionRepository) Create(tx *domain.Transaction) error {
	return r.DB.Create(mappers.ToGORMTransaction(tx)).Error
}

func (r *TransactionRepository) GetByID(id string) (*domain.Transaction, error) {
	var m models.TransactionModel
	if err := r.DB.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainTransaction(&m), nil
}

func (r *TransactionRepository) GetByCheckoutToken(storeID, checkoutToken string) (*domain.Transaction, error) {
	var m models.TransactionModel
	if err := r.DB.First(&m, "store_id = ? AND checkout_token = ?", storeID, checkoutToken).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainTransaction(&m), nil
}

// SetStatus performs the conditional `WHERE status = fromStatus` update
// spec.md §5 requires to serialize concurrent callers racing to complete
// or fail the same transaction: only the caller that observes RowsAffected
// == 1 actually won the transition.
func (r *TransactionRepository) SetStatus(id string, fromStatus, toStatus domain.TransactionStatus, failureReason string) (bool, error) {
	updates := map[string]any{"status": string(toStatus)}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	res := r.DB.Model(&models.TransactionModel{}).
		Where("id = ? AND status = ?", id, string(fromStatus)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TransactionRepository) SetOrder(id, orderID, orderNumber string) error {
	return r.DB.Model(&models.TransactionModel{}).Where("id = ?", id).Updates(map[string]any{
		"order_id":     orderID,
		"order_number": orderNumber,
	}).Error
}

func (r *TransactionRepository) SetTotalAmount(id string, totalAmountCents int64, currency string) error {
	return r.DB.Model(&models.TransactionModel{}).Where("id = ?", id).Updates(map[string]any{
		"total_amount_cents": totalAmountCents,
		"currency":           currency,
	}).Error
}

func (r *TransactionRepository) List(storeID string, filter domain.TransactionFilter, page, limit int) (*domain.Page, error) {
	var rows []models.TransactionModel
	var total int64

	query := r.DB.Model(&models.TransactionModel{}).Where("store_id = ?", storeID)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find transactions: %w", err)
	}

	items := make([]*domain.Transaction, len(rows))
	for i := range rows {
		items[i] = mappers.ToDomainTransaction(&rows[i])
	}

	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}

	return &domain.Page{Items: items, Total: total, Page: page, Pages: pages}, nil
}

// FindCompletedWithoutOrder is the startup reconciler's query for the
// post-capture/pre-order-submission crash window spec.md §9 flags:
// transactions whose payments all captured but that never got an
// order_id recorded.
func (r *TransactionRepository) FindCompletedWithoutOrder() ([]*domain.Transaction, error) {
	var rows []models.TransactionModel
	err := r.DB.Where("status = ? AND order_id IS NULL", string(domain.TransactionCompleted)).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Transaction, len(rows))
	for i := range rows {
		out[i] = mappers.ToDomainTransaction(&rows[i])
	}
	return out, nil
}

// Stats aggregates the admin `/stats` surface's counters for one store.
func (r *TransactionRepository) Stats(storeID string) (*domain.Stats, error) {
	var s domain.Stats

	if err := r.DB.Model(&models.TransactionModel{}).Where("store_id = ?", storeID).Count(&s.TotalTransactions).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	if err := r.DB.Model(&models.TransactionModel{}).
		Where("store_id = ? AND status = ?", storeID, string(domain.TransactionCompleted)).
		Count(&s.CompletedCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed transactions: %w", err)
	}
	if err := r.DB.Model(&models.TransactionModel{}).
		Where("store_id = ? AND status = ?", storeID, string(domain.TransactionFailed)).
		Count(&s.FailedCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count failed transactions: %w", err)
	}
	if err := r.DB.Model(&models.TransactionModel{}).
		Where("store_id = ? AND status = ?", storeID, string(domain.TransactionProcessing)).
		Count(&s.ProcessingCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count processing transactions: %w", err)
	}

	var capturedSum, refundedSum struct {
		Sum int64
	}
	if err := r.DB.Model(&models.TransactionModel{}).
		Where("store_id = ? AND status IN (?)", storeID, []string{
			string(domain.TransactionCompleted),
			string(domain.TransactionPartiallyRefunded),
			string(domain.TransactionRefunded),
		}).
		Select("COALESCE(SUM(total_amount_cents), 0) AS sum").Scan(&capturedSum).Error; err != nil {
		return nil, fmt.Errorf("failed to sum captured totals: %w", err)
	}
	s.TotalCapturedCents = capturedSum.Sum

	if err := r.DB.Table("refunds").
		Joins("JOIN transactions ON transactions.id = refunds.transaction_id").
		Where("transactions.store_id = ? AND refunds.status = ?", storeID, string(domain.RefundSucceeded)).
		Select("COALESCE(SUM(refunds.amount_cents), 0) AS sum").Scan(&refundedSum).Error; err != nil {
		return nil, fmt.Errorf("failed to sum refunded totals: %w", err)
	}
	s.TotalRefundedCents = refundedSum.Sum

	return &s, nil
}

// RedactCustomerPII clears buyer-identifying fields on every transaction
// for a store, in response to a customers/redact or shop/redact webhook.
func (r *TransactionRepository) RedactCustomerPII(storeID string) error {
	return r.DB.Model(&models.TransactionModel{}).Where("store_id = ?", storeID).Updates(map[string]any{
		"customer_email": "",
		"customer_ip":    "",
		"customer_ua":    "",
	}).Error
}
