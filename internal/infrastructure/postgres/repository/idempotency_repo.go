package repository

import (
	"errors"
	"strings"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

// IdempotencyRepository backs the check-then-create-then-execute-then-record
// pattern spec.md §9 resolves its idempotency-key Open Question with,
// grounded on the teacher's IdempotencyMiddleware approach from the pack's
// theory-cloud-TableTheory example.
type IdempotencyRepository struct {
	DB *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{DB: db}
}

// Reserve inserts a placeholder row for the key, failing with a unique
// violation (translated to domain.ErrIdempotencyKeyConflict) if another
// request already claimed it — the insert itself is the lock.
func (r *IdempotencyRepository) Reserve(key, storeID, operation string) error {
	err := r.DB.Create(&models.IdempotencyKeyModel{
		Key:       key,
		StoreID:   storeID,
		Operation: operation,
	}).Error
	if err != nil && isUniqueViolation(err) {
		return domain.ErrIdempotencyKeyConflict
	}
	return err
}

// Lookup returns the previously recorded response for a key. It returns
// (nil, nil) if the key has never been seen — the caller should Reserve
// and execute. It returns (nil, domain.ErrIdempotencyKeyInFlight) if the
// key was reserved by a concurrent request that hasn't recorded a
// response yet, so the caller can retry instead of re-executing a
// non-idempotent operation twice.
func (r *IdempotencyRepository) Lookup(key string) (*domain.IdempotencyRecord, error) {
	var m models.IdempotencyKeyModel
	err := r.DB.First(&m, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if m.ResponseCode == 0 {
		return nil, domain.ErrIdempotencyKeyInFlight
	}
	return &domain.IdempotencyRecord{
		Key:          m.Key,
		StoreID:      m.StoreID,
		Operation:    m.Operation,
		ResponseCode: m.ResponseCode,
		ResponseBody: m.ResponseBody,
	}, nil
}

func (r *IdempotencyRepository) RecordResponse(key string, code int, body []byte) error {
	return r.DB.Model(&models.IdempotencyKeyModel{}).Where("key = ?", key).Updates(map[string]any{
		"response_code": code,
		"response_body": body,
	}).Error
}

// isUniqueViolation checks for Postgres SQLSTATE 23505 without importing
// the pq/pgx error type directly, matching gorm's own driver-agnostic
// error string convention.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
