package models

import "time"

type RefundModel struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	TransactionID    string `gorm:"type:uuid;index;not null"`
	PaymentID        string `gorm:"type:uuid;index;not null"`
	ProviderRefundID string `gorm:"type:varchar(255);uniqueIndex"`
	AmountCents      int64  `gorm:"not null"`
	Reason           string `gorm:"type:varchar(32);not null"`
	Status           string `gorm:"type:varchar(32);index;not null"`
	InitiatedBy      string `gorm:"type:varchar(32);not null"`
	FailureReason    string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (RefundModel) TableName() string { return "refunds" }
