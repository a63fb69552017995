package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EventTopic is the closed set of platform webhook topics the reconciler
// understands (spec.md §4.8).
type EventTopic string

const (
	TopicAppUninstalled    EventTopic = "app/uninstalled"
	TopicOrdersCreate      EventTopic = "orders/create"
	TopicOrdersRefunded    EventTopic = "orders/refunded"
	TopicCustomersRedact   EventTopic = "customers/redact"
	TopicShopRedact        EventTopic = "shop/redact"
	TopicCustomersDataReq  EventTopic = "customers/data_request"
)

type Event struct {
	Topic      EventTopic
	ShopDomain string
	Data       json.RawMessage
}

// VerifyWebhook checks the HMAC-SHA256-over-raw-body signature the
// platform sends base64-encoded in X-Shopify-Hmac-Sha256, using a
// constant-time comparison, per spec.md §6.
func VerifyWebhook(rawBody []byte, topic EventTopic, shopDomain, signatureHeader, secret string) (*Event, error) {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	given, err := base64.StdEncoding.DecodeString(signatureHeader)
	if err != nil || !hmac.Equal(given, expected) {
		return nil, fmt.Errorf("invalid_signature")
	}

	return &Event{Topic: topic, ShopDomain: shopDomain, Data: rawBody}, nil
}
