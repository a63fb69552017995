// Package validation holds the pure, I/O-free structural checks spec.md
// §4.2 requires: shop domains, checkout tokens, amounts, provider ids,
// and the amount-sum equality a split must satisfy.
package validation

import (
	"fmt"
	"net"
	"net/mail"
	"regexp"
	"strings"
)

var (
	shopDomainRe    = regexp.MustCompile(`^[a-zA-Z0-9-]+\.myshopify\.com$`)
	checkoutTokenRe = regexp.MustCompile(`^[a-zA-Z0-9]{32,64}$`)
)

const (
	minSplitCards = 2
	maxSplitCards = 5
)

func ShopDomain(domain string) error {
	if !shopDomainRe.MatchString(domain) {
		return fmt.Errorf("invalid shop domain: %q", domain)
	}
	return nil
}

func CheckoutToken(token string) error {
	if !checkoutTokenRe.MatchString(token) {
		return fmt.Errorf("invalid checkout token")
	}
	return nil
}

// Amount checks amountCents against the store's minimum and an optional
// upper bound (0 means unbounded).
func Amount(amountCents, minAmountCents, maxAmountCents int64) error {
	if amountCents <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amountCents)
	}
	if amountCents < minAmountCents {
		return fmt.Errorf("amount %d is below minimum %d", amountCents, minAmountCents)
	}
	if maxAmountCents > 0 && amountCents > maxAmountCents {
		return fmt.Errorf("amount %d exceeds maximum %d", amountCents, maxAmountCents)
	}
	return nil
}

// PaymentAmounts checks that a proposed split is shaped correctly: 2..5
// entries, each individually valid, summing exactly to total.
func PaymentAmounts(total int64, amounts []int64, minAmountCents int64) error {
	if len(amounts) < minSplitCards || len(amounts) > maxSplitCards {
		return fmt.Errorf("split must have between %d and %d cards, got %d", minSplitCards, maxSplitCards, len(amounts))
	}

	var sum int64
	for _, a := range amounts {
		if err := Amount(a, minAmountCents, 0); err != nil {
			return err
		}
		sum += a
	}
	if sum != total {
		return fmt.Errorf("split amounts sum to %d, want %d", sum, total)
	}
	return nil
}

func Email(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}
	return nil
}

func IPAddress(ip string) error {
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid ip address: %q", ip)
	}
	return nil
}

// ProviderID checks a provider-side identifier carries the expected
// prefix (e.g. "pi_" for a payment intent, "pm_" for a payment method).
func ProviderID(id, prefix string) error {
	if !strings.HasPrefix(id, prefix) {
		return fmt.Errorf("expected id with prefix %q, got %q", prefix, id)
	}
	if len(id) <= len(prefix) {
		return fmt.Errorf("provider id %q is missing its suffix", id)
	}
	return nil
}
