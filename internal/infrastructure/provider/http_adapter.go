package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAdapter talks to the provider over plain net/http, the same shape as
// the teacher's HTTPWalletHandler (marshal request, POST, unmarshal a
// typed success-or-error envelope) generalized to the card-authorization
// surface and wrapped in the retry policy spec.md §4.4 requires.
type HTTPAdapter struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewHTTPAdapter(baseURL, secretKey string) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: OperationTimeout,
		},
	}
}

type createAuthRequest struct {
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency"`
	CaptureMethod     string            `json:"capture_method"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type authResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type providerErrorResponse struct {
	Code        string       `json:"code"`
	Message     string       `json:"message"`
	Decline     *DeclineInfo `json:"decline,omitempty"`
	Retryable   bool         `json:"retryable"`
}

func (a *HTTPAdapter) CreateAuthorization(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Authorization, error) {
	var resp authResponse
	err := a.withRetry(ctx, func(ctx context.Context) error {
		return a.doJSON(ctx, "POST", "/v1/authorizations", createAuthRequest{
			AmountCents:   amountCents,
			Currency:      currency,
			CaptureMethod: "manual", // spec.md §4.4: MUST request manual capture
			Metadata:      metadata,
		}, &resp)
	})
	if err != nil {
		return nil, err
	}

	status, err := parseAuthStatus(resp.Status)
	if err != nil {
		return nil, err
	}
	return &Authorization{IntentID: resp.IntentID, ClientSecret: resp.ClientSecret, Status: status}, nil
}

type confirmAuthRequest struct {
	MethodID string `json:"method_id"`
}

func (a *HTTPAdapter) ConfirmAuthorization(ctx context.Context, intentID, methodID string) (AuthStatus, *DeclineInfo, error) {
	var resp authResponse
	var declineErr *Error
	err := a.withRetry(ctx, func(ctx context.Context) error {
		path := fmt.Sprintf("/v1/authorizations/%s/confirm", intentID)
		callErr := a.doJSON(ctx, "POST", path, confirmAuthRequest{MethodID: methodID}, &resp)
		if callErr != nil {
			var perr *Error
			if asProviderError(callErr, &perr) && perr.Decline != nil {
				declineErr = perr
			}
		}
		return callErr
	})
	if err != nil {
		if declineErr != nil {
			return AuthStatusFailed, declineErr.Decline, err
		}
		return "", nil, err
	}

	status, err := parseAuthStatus(resp.Status)
	if err != nil {
		return "", nil, err
	}
	if status == AuthStatusRequiresAction {
		return status, nil, &Error{InteractiveRequired: true, Message: "3DS challenge required"}
	}
	return status, nil, nil
}

func (a *HTTPAdapter) CaptureAuthorization(ctx context.Context, intentID string) (AuthStatus, error) {
	var resp authResponse
	err := a.withRetry(ctx, func(ctx context.Context) error {
		path := fmt.Sprintf("/v1/authorizations/%s/capture", intentID)
		return a.doJSON(ctx, "POST", path, nil, &resp)
	})
	if err != nil {
		return "", err
	}
	return parseAuthStatus(resp.Status)
}

func (a *HTTPAdapter) CancelAuthorization(ctx context.Context, intentID string) error {
	err := a.withRetry(ctx, func(ctx context.Context) error {
		path := fmt.Sprintf("/v1/authorizations/%s/cancel", intentID)
		return a.doJSON(ctx, "POST", path, nil, nil)
	})
	if err == nil {
		return nil
	}
	// Idempotent: "already in final state" is treated as success.
	var perr *Error
	if asProviderError(err, &perr) && isAlreadyFinalState(perr) {
		return nil
	}
	return err
}

type createRefundRequest struct {
	AmountCents int64             `json:"amount_cents"`
	Reason      string            `json:"reason"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

func (a *HTTPAdapter) CreateRefund(ctx context.Context, intentID string, amountCents int64, reason string, metadata map[string]string) (*RefundResult, error) {
	var resp refundResponse
	err := a.withRetry(ctx, func(ctx context.Context) error {
		path := fmt.Sprintf("/v1/authorizations/%s/refunds", intentID)
		return a.doJSON(ctx, "POST", path, createRefundRequest{
			AmountCents: amountCents,
			Reason:      reason,
			Metadata:    metadata,
		}, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: resp.RefundID, Status: resp.Status}, nil
}

func parseAuthStatus(raw string) (AuthStatus, error) {
	switch AuthStatus(raw) {
	case AuthStatusRequiresCapture, AuthStatusSucceeded, AuthStatusRequiresAction, AuthStatusFailed, AuthStatusCanceled:
		return AuthStatus(raw), nil
	default:
		return "", &Error{Message: fmt.Sprintf("unrecognized provider status %q", raw)}
	}
}

func isAlreadyFinalState(err *Error) bool {
	return err != nil && !err.Retryable && err.Decline == nil && err.Message == "already in a final state"
}

func asProviderError(err error, out **Error) bool {
	perr, ok := err.(*Error)
	if ok {
		*out = perr
	}
	return ok
}

// doJSON marshals body (if non-nil), issues the request, and unmarshals
// the response into out (if non-nil and the call succeeded).
func (a *HTTPAdapter) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Message: "failed to marshal request", Cause: err}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return &Error{Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.secretKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &Error{Retryable: true, Message: "network error", Cause: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Retryable: true, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(respBytes) > 0 {
			if err := json.Unmarshal(respBytes, out); err != nil {
				return &Error{Message: "failed to decode response", Cause: err}
			}
		}
		return nil
	}

	var perr providerErrorResponse
	if err := json.Unmarshal(respBytes, &perr); err != nil {
		return &Error{Retryable: resp.StatusCode >= 500, Message: fmt.Sprintf("provider returned status %d", resp.StatusCode)}
	}
	return &Error{
		Retryable: resp.StatusCode >= 500 || perr.Retryable,
		Decline:   perr.Decline,
		Message:   perr.Message,
	}
}

// withRetry runs fn up to 1+MaxRetries times, retrying only on Retryable
// errors with linear backoff (500ms, then 1s) — the same retry loop
// shape as the teacher's BatchPublishOrdersWithRetry.
func (a *HTTPAdapter) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		var perr *Error
		if !asProviderError(err, &perr) || !perr.Retryable {
			return err
		}
		if attempt < MaxRetries {
			select {
			case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
