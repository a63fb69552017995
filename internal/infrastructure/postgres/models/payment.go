package models

import "time"

type PaymentModel struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	TransactionID    string `gorm:"type:uuid;index;not null"`
	ProviderIntentID string `gorm:"type:varchar(255);index"`
	ProviderMethodID string `gorm:"type:varchar(255)"`
	AmountCents      int64  `gorm:"not null"`
	CardBrand        string `gorm:"type:varchar(32)"`
	CardLastFour     string `gorm:"type:varchar(4)"`
	CardExpMonth     int
	CardExpYear      int
	Status           string `gorm:"type:varchar(32);index;not null"`
	FailureCode      string `gorm:"type:varchar(64)"`
	FailureMessage   string `gorm:"type:text"`
	AuthorizedAt     *time.Time
	CapturedAt       *time.Time
	VoidedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (PaymentModel) TableName() string { return "payments" }
