package models

import "time"

// IdempotencyKeyModel records one widget-issued idempotency key against
// the response it produced, so a retried request (network timeout,
// double-tap) replays the original result instead of re-running the
// orchestrator operation, resolving spec.md §9's idempotency Open
// Question.
type IdempotencyKeyModel struct {
	Key          string `gorm:"type:varchar(255);primaryKey"`
	StoreID      string `gorm:"type:uuid;index;not null"`
	Operation    string `gorm:"type:varchar(64);not null"`
	ResponseCode int    `gorm:"not null"`
	ResponseBody []byte `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

func (IdempotencyKeyModel) TableName() string { return "idempotency_keys" }
