package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EventType is the closed set of provider webhook events the reconciler
// understands (spec.md §4.8).
type EventType string

const (
	EventIntentSucceeded    EventType = "payment_intent.succeeded"
	EventIntentFailed       EventType = "payment_intent.payment_failed"
	EventChargeRefunded     EventType = "charge.refunded"
	EventDisputeCreated     EventType = "charge.dispute.created"
)

type Event struct {
	Type EventType
	Data json.RawMessage
}

type IntentPayload struct {
	IntentID    string `json:"intent_id"`
	FailureCode string `json:"failure_code,omitempty"`
	FailureMsg  string `json:"failure_message,omitempty"`
}

type RefundPayload struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

type DisputePayload struct {
	IntentID string `json:"intent_id"`
	Reason   string `json:"reason"`
}

type rawEnvelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ErrInvalidSignature is returned when the HMAC signature on a webhook
// request doesn't match — the request must be rejected with 401 and must
// never mutate state.
var ErrInvalidSignature = fmt.Errorf("invalid_signature")

// VerifyWebhook checks the raw body against the signature header using a
// constant-time HMAC-SHA256 comparison (hmac.Equal, never `==`) before any
// state change happens, per spec.md §4.4/§4.8.
func VerifyWebhook(rawBody []byte, signatureHeader, secret string) (*Event, error) {
	expected := computeSignature(rawBody, secret)
	given, err := hex.DecodeString(signatureHeader)
	if err != nil || !hmac.Equal(given, expected) {
		return nil, ErrInvalidSignature
	}

	var env rawEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}

	return &Event{Type: env.Type, Data: env.Data}, nil
}

func computeSignature(body []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return h.Sum(nil)
}
