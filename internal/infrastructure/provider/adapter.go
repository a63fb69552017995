// Package provider is the thin boundary to the external card-authorization
// provider: create/confirm/capture/cancel authorizations, issue refunds,
// and verify webhook signatures (spec.md §4.4). It never sees a card
// number — only provider-side references.
package provider

import (
	"context"
	"time"
)

// AuthStatus is the closed set of authorization states this boundary
// understands. Anything else the provider reports is rejected explicitly
// rather than silently mapped (spec.md §9 "dynamic JSON at boundaries").
type AuthStatus string

const (
	AuthStatusRequiresCapture AuthStatus = "requires_capture"
	AuthStatusSucceeded       AuthStatus = "succeeded"
	AuthStatusRequiresAction  AuthStatus = "requires_action"
	AuthStatusFailed          AuthStatus = "failed"
	AuthStatusCanceled        AuthStatus = "canceled"
)

// IsAuthorized reports whether a status counts as a successfully
// authorized (capture-ready) hold.
func (s AuthStatus) IsAuthorized() bool {
	return s == AuthStatusRequiresCapture || s == AuthStatusSucceeded
}

type Authorization struct {
	IntentID     string
	ClientSecret string
	Status       AuthStatus
}

// DeclineInfo is populated when the provider reports a card-level failure,
// so the widget can highlight the offending card (spec.md §7).
type DeclineInfo struct {
	CardBrand     string
	CardLastFour  string
	FailureCode   string
	FailureReason string
}

// Error is returned by every adapter operation that talks to the network.
// Retryable distinguishes a transient fault (network, 5xx) from a terminal
// provider decision (4xx) per spec.md §4.4's retry policy.
type Error struct {
	Retryable           bool
	InteractiveRequired bool
	Decline             *DeclineInfo
	Message             string
	Cause               error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

type RefundResult struct {
	RefundID string
	Status   string
}

// Adapter is the full boundary surface spec.md §4.4 lists.
type Adapter interface {
	CreateAuthorization(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Authorization, error)
	ConfirmAuthorization(ctx context.Context, intentID, methodID string) (AuthStatus, *DeclineInfo, error)
	CaptureAuthorization(ctx context.Context, intentID string) (AuthStatus, error)
	CancelAuthorization(ctx context.Context, intentID string) error
	CreateRefund(ctx context.Context, intentID string, amountCents int64, reason string, metadata map[string]string) (*RefundResult, error)
}

// OperationTimeout bounds every individual provider network call.
const OperationTimeout = 30 * time.Second

// MaxRetries is the number of retries allowed on a transient (network/5xx)
// failure before giving up; provider 4xx responses are never retried.
const MaxRetries = 2
