package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/infrastructure/kafka"
	"github.com/splitpay/checkout-core/internal/infrastructure/metrics"
	"github.com/splitpay/checkout-core/internal/infrastructure/platform"
)

// PlatformReconciler handles webhooks pushed by the commerce platform:
// uninstall, advisory order events, and the GDPR redaction trio.
type PlatformReconciler struct {
	Stores       domain.StoreRepository
	Transactions domain.TransactionRepository
	Metrics      *metrics.CheckoutMetrics
	Alerts       *kafka.AlertPublisher
}

func NewPlatformReconciler(stores domain.StoreRepository, transactions domain.TransactionRepository, m *metrics.CheckoutMetrics, alerts *kafka.AlertPublisher) *PlatformReconciler {
	return &PlatformReconciler{Stores: stores, Transactions: transactions, Metrics: m, Alerts: alerts}
}

func (r *PlatformReconciler) alert(ctx context.Context, severity kafka.AlertSeverity, kind, shopDomain, message string) {
	if r.Alerts == nil {
		return
	}
	if err := r.Alerts.Publish(ctx, kafka.OperatorAlert{
		Severity:       severity,
		Kind:           kind,
		ShopDomain:     shopDomain,
		Message:        message,
		OccurredAtUnix: time.Now().Unix(),
	}); err != nil {
		slog.Error("failed to publish platform alert", "kind", kind, "shop_domain", shopDomain, "error", err)
	}
}

func (r *PlatformReconciler) HandleWebhook(ctx context.Context, rawBody []byte, topic platform.EventTopic, shopDomain, signatureHeader, secret string) error {
	event, err := platform.VerifyWebhook(rawBody, topic, shopDomain, signatureHeader, secret)
	if err != nil {
		r.Metrics.RecordWebhookSignatureRejected("platform")
		return err
	}
	r.Metrics.RecordWebhookReceived("platform", string(event.Topic))

	switch event.Topic {
	case platform.TopicAppUninstalled:
		r.handleUninstalled(ctx, event.ShopDomain)
	case platform.TopicOrdersCreate, platform.TopicOrdersRefunded:
		slog.Info("advisory platform event, no state change", "topic", event.Topic, "shop_domain", event.ShopDomain)
	case platform.TopicCustomersRedact, platform.TopicShopRedact:
		r.handleRedact(ctx, event.ShopDomain)
	case platform.TopicCustomersDataReq:
		slog.Warn("customer data request received, no automated export implemented", "shop_domain", event.ShopDomain)
	default:
		slog.Warn("unrecognized platform topic, ignoring", "topic", event.Topic)
	}
	return nil
}

func (r *PlatformReconciler) handleUninstalled(ctx context.Context, shopDomain string) {
	if err := r.Stores.SetActive(shopDomain, false); err != nil {
		slog.Error("failed to deactivate store on uninstall", "shop_domain", shopDomain, "error", err)
		r.alert(ctx, kafka.SeverityWarning, "store_deactivation_failed", shopDomain, err.Error())
		return
	}
	if err := r.Stores.UpdateAccessToken(shopDomain, ""); err != nil {
		slog.Error("failed to clear access token", "shop_domain", shopDomain, "error", err)
	}
}

// handleRedact performs the same deactivation as uninstall plus purging
// customer PII from every transaction of the shop, per spec.md §4.8's
// GDPR requirement.
func (r *PlatformReconciler) handleRedact(ctx context.Context, shopDomain string) {
	r.handleUninstalled(ctx, shopDomain)

	store, err := r.Stores.GetByShopDomain(shopDomain)
	if err != nil {
		slog.Warn("redact requested for unknown store", "shop_domain", shopDomain, "error", err)
		return
	}
	if err := r.Transactions.RedactCustomerPII(store.ID); err != nil {
		slog.Error("failed to redact customer PII", "store_id", store.ID, "error", err)
		r.alert(ctx, kafka.SeverityCritical, "gdpr_redaction_failed", shopDomain, err.Error())
	}
}
