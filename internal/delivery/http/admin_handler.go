package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/splitpay/checkout-core/internal/apperrors"
	"github.com/splitpay/checkout-core/internal/domain"
	"github.com/splitpay/checkout-core/internal/orchestrator"
)

// AdminHandler exposes the `/api/admin/*` surface spec.md §6 lists.
// Session-token verification is a contract only per spec.md §1 (HMAC/JWT
// verification is out of scope) — AuthVerifier is satisfied by whatever
// middleware a real deployment wires in front of this handler.
type AdminHandler struct {
	orch         *orchestrator.Orchestrator
	transactions domain.TransactionRepository
	stores       domain.StoreRepository
}

func NewAdminHandler(orch *orchestrator.Orchestrator, transactions domain.TransactionRepository, stores domain.StoreRepository) *AdminHandler {
	return &AdminHandler{orch: orch, transactions: transactions, stores: stores}
}

func storeIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Store-Id")
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	storeID := storeIDFromRequest(r)
	if storeID == "" {
		writeError(w, missingParams("X-Store-Id header is required"))
		return
	}

	stats, err := h.transactions.Stats(storeID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to load stats", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_transactions":    stats.TotalTransactions,
		"completed_count":       stats.CompletedCount,
		"failed_count":          stats.FailedCount,
		"processing_count":      stats.ProcessingCount,
		"total_captured_cents":  stats.TotalCapturedCents,
		"total_refunded_cents":  stats.TotalRefundedCents,
	})
}

// ListTransactions handles GET /api/admin/transactions.
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	storeID := storeIDFromRequest(r)
	if storeID == "" {
		writeError(w, missingParams("X-Store-Id header is required"))
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := domain.TransactionFilter{Status: domain.TransactionStatus(q.Get("status"))}
	if v := q.Get("startDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := q.Get("endDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndDate = &t
		}
	}

	p, err := h.transactions.List(storeID, filter, page, limit)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to list transactions", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": p.Items,
		"total": p.Total,
		"page":  p.Page,
		"pages": p.Pages,
	})
}

// GetTransaction handles GET /api/admin/transactions/:id.
func (h *AdminHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, missingParams("transaction id is required"))
		return
	}

	tx, err := h.transactions.GetByID(id)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindNotFound, apperrors.CodeTransactionNotFound, "transaction not found", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"transaction": tx})
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
}

// Refund handles POST /api/admin/refund.
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, missingParams("malformed request body"))
		return
	}
	if req.TransactionID == "" || req.Amount <= 0 {
		writeError(w, missingParams("transaction_id and a positive amount are required"))
		return
	}

	result, err := h.orch.Refund(r.Context(), orchestrator.RefundInput{
		TransactionID: req.TransactionID,
		AmountCents:   req.Amount,
		Reason:        domain.RefundReason(req.Reason),
		InitiatedBy:   domain.InitiatedByAdmin,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"refunds":        result.Refunds,
		"total_refunded": result.TotalRefunded,
		"new_status":     result.NewStatus,
	})
}

// ListStores handles GET /api/admin/stores.
func (h *AdminHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.stores.ListActive()
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to list stores", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stores": stores})
}

type updateSettingsRequest struct {
	MaxCards       int `json:"max_cards"`
	MinAmountCents int `json:"min_amount_cents"`
}

// UpdateSettings handles PUT /api/admin/settings.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	storeID := storeIDFromRequest(r)
	if storeID == "" {
		writeError(w, missingParams("X-Store-Id header is required"))
		return
	}

	var req updateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, missingParams("malformed request body"))
		return
	}
	if req.MaxCards < 2 || req.MaxCards > 5 {
		writeError(w, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidAmount, "max_cards must be between 2 and 5"))
		return
	}
	if req.MinAmountCents < 100 {
		writeError(w, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidAmount, "min_amount_cents must be at least 100"))
		return
	}

	if err := h.stores.UpdateSettings(storeID, domain.StoreSettings{
		MaxCards:       req.MaxCards,
		MinAmountCents: req.MinAmountCents,
	}); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternalError, "failed to update settings", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{})
}
