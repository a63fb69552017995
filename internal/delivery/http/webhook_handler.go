package http

import (
	"io"
	"net/http"

	"github.com/splitpay/checkout-core/internal/infrastructure/platform"
	"github.com/splitpay/checkout-core/internal/infrastructure/provider"
	"github.com/splitpay/checkout-core/internal/reconciler"
)

// WebhookHandler exposes `POST /api/webhooks/shopify` and `POST
// /api/stripe/webhook`. Both read the raw, unparsed body so signature
// verification runs over the exact bytes the sender signed (spec.md §6).
// Valid payloads always reply 200, even on a processing error, to avoid
// provider retry storms (spec.md §4.8) — the reconciler itself logs and
// alerts on the swallowed path.
type WebhookHandler struct {
	providerReconciler *reconciler.ProviderReconciler
	platformReconciler *reconciler.PlatformReconciler
	providerSecret     string
	platformSecret     string
}

func NewWebhookHandler(providerReconciler *reconciler.ProviderReconciler, platformReconciler *reconciler.PlatformReconciler, providerSecret, platformSecret string) *WebhookHandler {
	return &WebhookHandler{
		providerReconciler: providerReconciler,
		platformReconciler: platformReconciler,
		providerSecret:     providerSecret,
		platformSecret:     platformSecret,
	}
}

// Stripe handles POST /api/stripe/webhook.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if _, err := provider.VerifyWebhook(body, signature, h.providerSecret); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// Signature is valid; processing errors are swallowed by the
	// reconciler itself, which always wants a 200 reply regardless of
	// outcome so the provider doesn't retry-storm us.
	_ = h.providerReconciler.HandleWebhook(r.Context(), body, signature, h.providerSecret)
	w.WriteHeader(http.StatusOK)
}

// Shopify handles POST /api/webhooks/shopify.
func (h *WebhookHandler) Shopify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	topic := platform.EventTopic(r.Header.Get("X-Shopify-Topic"))
	shopDomain := r.Header.Get("X-Shopify-Shop-Domain")
	signature := r.Header.Get("X-Shopify-Hmac-Sha256")

	if _, err := platform.VerifyWebhook(body, topic, shopDomain, signature, h.platformSecret); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	_ = h.platformReconciler.HandleWebhook(r.Context(), body, topic, shopDomain, signature, h.platformSecret)
	w.WriteHeader(http.StatusOK)
}
