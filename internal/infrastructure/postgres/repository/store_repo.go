package repository

import (
	"fmt"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/encryption"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/mappers"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

// accessTokenField is the AAD label bound into every access_token
// envelope, so a ciphertext can't be copied onto some other column.
const accessTokenField = "store.access_token"

type StoreRepository struct {
	DB         *gorm.DB
	Encryption *encryption.Service
}

func NewStoreRepository(db *gorm.DB, enc *encryption.Service) *StoreRepository {
	return &StoreRepository{DB: db, Encryption: enc}
}

func (r *StoreRepository) Create(store *domain.Store) error {
	m := mappers.ToGORMStore(store)
	encrypted, err := r.Encryption.Encrypt(accessTokenField, m.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	m.AccessToken = encrypted
	return r.DB.Create(m).Error
}

func (r *StoreRepository) GetByID(id string) (*domain.Store, error) {
	var m models.StoreModel
	if err := r.DB.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return r.toDomainDecrypted(&m)
}

func (r *StoreRepository) GetByShopDomain(shopDomain string) (*domain.Store, error) {
	var m models.StoreModel
	if err := r.DB.First(&m, "shop_domain = ?", shopDomain).Error; err != nil {
		return nil, err
	}
	return r.toDomainDecrypted(&m)
}

// toDomainDecrypted maps a row to a domain.Store with AccessToken
// decrypted, so no caller above the repository boundary ever sees the
// envelope.
func (r *StoreRepository) toDomainDecrypted(m *models.StoreModel) (*domain.Store, error) {
	plaintext, err := r.Encryption.Decrypt(accessTokenField, m.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for store %s: %w", m.ID, err)
	}
	store := mappers.ToDomainStore(m)
	store.AccessToken = plaintext
	return store, nil
}

func (r *StoreRepository) SetActive(shopDomain string, active bool) error {
	updates := map[string]any{"active": active}
	if !active {
		updates["uninstalled_at"] = gorm.Expr("now()")
	} else {
		updates["uninstalled_at"] = nil
	}
	return r.DB.Model(&models.StoreModel{}).Where("shop_domain = ?", shopDomain).Updates(updates).Error
}

func (r *StoreRepository) UpdateSettings(storeID string, settings domain.StoreSettings) error {
	return r.DB.Model(&models.StoreModel{}).Where("id = ?", storeID).Updates(map[string]any{
		"max_cards":        settings.MaxCards,
		"min_amount_cents": settings.MinAmountCents,
	}).Error
}

func (r *StoreRepository) UpdateAccessToken(shopDomain, accessToken string) error {
	encrypted, err := r.Encryption.Encrypt(accessTokenField, accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	return r.DB.Model(&models.StoreModel{}).Where("shop_domain = ?", shopDomain).
		Update("access_token", encrypted).Error
}

func (r *StoreRepository) ListActive() ([]*domain.Store, error) {
	var rows []models.StoreModel
	if err := r.DB.Where("active = true").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Store, len(rows))
	for i := range rows {
		store, err := r.toDomainDecrypted(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = store
	}
	return out, nil
}
