package http

import (
	"net/http"

	"github.com/splitpay/checkout-core/internal/apperrors"
	"github.com/splitpay/checkout-core/internal/orchestrator"
)

// WidgetHandler exposes the public `/api/widget/*` surface spec.md §6
// lists. Rate-limiting (60/min/IP) is the caller's concern per spec.md
// §1's routing/rate-limit non-goal — this handler assumes it already ran.
type WidgetHandler struct {
	orch *orchestrator.Orchestrator
}

func NewWidgetHandler(orch *orchestrator.Orchestrator) *WidgetHandler {
	return &WidgetHandler{orch: orch}
}

type initRequest struct {
	ShopDomain    string `json:"shop_domain"`
	CheckoutToken string `json:"checkout_token"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

func missingParams(msg string) *apperrors.Error {
	return apperrors.New(apperrors.KindValidation, apperrors.CodeMissingParams, msg)
}

// Init handles POST /api/widget/init.
func (h *WidgetHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, missingParams("malformed request body"))
		return
	}
	if req.ShopDomain == "" || req.CheckoutToken == "" {
		writeError(w, missingParams("shop_domain and checkout_token are required"))
		return
	}

	result, err := h.orch.Init(r.Context(), orchestrator.InitInput{
		ShopDomain:    req.ShopDomain,
		CheckoutToken: req.CheckoutToken,
		CustomerEmail: req.CustomerEmail,
		CustomerIP:    clientIP(r),
		CustomerUA:    r.UserAgent(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":     result.SessionID,
		"transaction_id": result.TransactionID,
		"total_amount":   result.TotalAmount,
		"currency":       result.Currency,
		"max_cards":      result.MaxCards,
		"min_amount":     result.MinAmount,
	})
}

type createPaymentIntentRequest struct {
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
}

// CreatePaymentIntent handles POST /api/widget/create-payment-intent.
func (h *WidgetHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req createPaymentIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, missingParams("malformed request body"))
		return
	}
	if req.SessionID == "" {
		writeError(w, missingParams("session_id is required"))
		return
	}

	result, err := h.orch.AddCard(r.Context(), orchestrator.AddCardInput{
		SessionID:   req.SessionID,
		AmountCents: req.Amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_intent_id": result.PaymentIntentID,
		"client_secret":     result.ClientSecret,
		"payment_id":        result.PaymentID,
	})
}

type removePaymentRequest struct {
	SessionID        string `json:"session_id"`
	PaymentIntentID   string `json:"payment_intent_id"`
}

// RemovePayment handles POST /api/widget/remove-payment.
func (h *WidgetHandler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	var req removePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, missingParams("malformed request body"))
		return
	}
	if req.SessionID == "" || req.PaymentIntentID == "" {
		writeError(w, missingParams("session_id and payment_intent_id are required"))
		return
	}

	if err := h.orch.RemoveCard(r.Context(), orchestrator.RemoveCardInput{
		SessionID:        req.SessionID,
		ProviderIntentID: req.PaymentIntentID,
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

type cardConfirmationRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

type completeCheckoutRequest struct {
	SessionID      string                    `json:"session_id"`
	Payments       []cardConfirmationRequest `json:"payments"`
	IdempotencyKey string                    `json:"idempotency_key,omitempty"`
}

// CompleteCheckout handles POST /api/widget/complete-checkout.
func (h *WidgetHandler) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	var req completeCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, missingParams("malformed request body"))
		return
	}
	if req.SessionID == "" || len(req.Payments) == 0 {
		writeError(w, missingParams("session_id and payments are required"))
		return
	}

	cards := make([]orchestrator.CardConfirmation, len(req.Payments))
	for i, p := range req.Payments {
		cards[i] = orchestrator.CardConfirmation{
			ProviderIntentID: p.PaymentIntentID,
			PaymentMethodID:  p.PaymentMethodID,
		}
	}

	result, err := h.orch.Complete(r.Context(), orchestrator.CompleteInput{
		SessionID:      req.SessionID,
		Cards:          cards,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if failed, ok := err.(*orchestrator.FailedCardError); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failed.HTTPStatus())
			_ = writeJSONBody(w, map[string]interface{}{
				"success": false,
				"error":   errorBody{Code: failed.Code, Message: failed.Message},
				"failedCard": map[string]interface{}{
					"payment_intent_id": failed.ProviderIntentID,
					"card_brand":        failed.CardBrand,
					"card_last_four":    failed.CardLastFour,
				},
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id":     result.OrderID,
		"order_number": result.OrderNumber,
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := splitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
