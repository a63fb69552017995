package models

import "time"

type TransactionModel struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	StoreID          string  `gorm:"type:uuid;index;not null"`
	CheckoutToken    string  `gorm:"type:varchar(255);index;not null"`
	OrderID          *string `gorm:"type:varchar(255)"`
	OrderNumber      *string `gorm:"type:varchar(255)"`
	TotalAmountCents int64   `gorm:"not null"`
	Currency         string  `gorm:"type:varchar(8);not null"`
	Status           string  `gorm:"type:varchar(32);index;not null"`
	FailureReason    string  `gorm:"type:text"`
	CustomerEmail    string  `gorm:"type:varchar(255)"`
	CustomerIP       string  `gorm:"type:varchar(64)"`
	CustomerUA       string  `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Payments []PaymentModel `gorm:"foreignKey:TransactionID"`
	Refunds  []RefundModel  `gorm:"foreignKey:TransactionID"`
}

func (TransactionModel) TableName() string { return "transactions" }
