package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShopDomain(t *testing.T) {
	assert.NoError(t, ShopDomain("acme-store.myshopify.com"))
	assert.Error(t, ShopDomain("acme-store.example.com"))
	assert.Error(t, ShopDomain("../etc/passwd"))
}

func TestCheckoutToken(t *testing.T) {
	assert.NoError(t, CheckoutToken("abcdefghijklmnopqrstuvwxyz012345"))
	assert.Error(t, CheckoutToken("tooshort"))
	assert.Error(t, CheckoutToken("has spaces in it padded out to length 40!!"))
}

func TestAmount(t *testing.T) {
	assert.NoError(t, Amount(150, 100, 0))
	assert.Error(t, Amount(0, 100, 0), "amount must be > 0")
	assert.Error(t, Amount(50, 100, 0), "below minimum")
	assert.Error(t, Amount(500, 100, 400), "above maximum")
}

func TestPaymentAmounts(t *testing.T) {
	assert.NoError(t, PaymentAmounts(15000, []int64{10000, 5000}, 100))
	assert.Error(t, PaymentAmounts(15000, []int64{15000}, 100), "too few cards")
	assert.Error(t, PaymentAmounts(15000, []int64{2500, 2500, 2500, 2500, 2500, 2500}, 100), "too many cards")
	assert.Error(t, PaymentAmounts(15000, []int64{10000, 4999}, 100), "sum mismatch")
}

func TestProviderID(t *testing.T) {
	assert.NoError(t, ProviderID("pi_abc123", "pi_"))
	assert.Error(t, ProviderID("pm_abc123", "pi_"))
	assert.Error(t, ProviderID("pi_", "pi_"))
}
