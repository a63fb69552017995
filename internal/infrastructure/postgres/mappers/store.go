package mappers

import (
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/models"
)

func ToGORMStore(s *domain.Store) *models.StoreModel {
	return &models.StoreModel{
		ID:             s.ID,
		ShopDomain:     s.ShopDomain,
		AccessToken:    s.AccessToken,
		MaxCards:       s.Settings.MaxCards,
		MinAmountCents: s.Settings.MinAmountCents,
		Active:         s.Active,
		InstalledAt:    s.InstalledAt,
		UninstalledAt:  s.UninstalledAt,
	}
}

func ToDomainStore(m *models.StoreModel) *domain.Store {
	return &domain.Store{
		ID:          m.ID,
		ShopDomain:  m.ShopDomain,
		AccessToken: m.AccessToken,
		Settings: domain.StoreSettings{
			MaxCards:       m.MaxCards,
			MinAmountCents: m.MinAmountCents,
		},
		Active:        m.Active,
		InstalledAt:   m.InstalledAt,
		UninstalledAt: m.UninstalledAt,
	}
}
