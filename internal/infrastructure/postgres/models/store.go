package models

import "time"

type StoreModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	ShopDomain string `gorm:"type:varchar(255);uniqueIndex;not null"`
	// AccessToken holds the base64 AES-GCM envelope produced by
	// encryption.Service, never the plaintext platform credential.
	AccessToken    string `gorm:"type:text;not null"`
	MaxCards       int    `gorm:"not null;default:5"`
	MinAmountCents int    `gorm:"not null;default:100"`
	Active         bool   `gorm:"not null;default:true"`
	InstalledAt    time.Time
	UninstalledAt  *time.Time
}

func (StoreModel) TableName() string { return "stores" }
