package handlers

import (
	"net/http"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/api"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/service"
)

// CreatePayment handles POST /api/v1/payments
//
// 202 while the payment is PENDING, including when the gateway's answer was lost;
// the caller must not resend in that case, so the outcome is reported as a warning
// on the transaction rather than as an error. A synchronous rejection is 200 with
// the FAILED transaction.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req api.CreatePaymentRequest
	if apiErr := h.decodeBody(w, r, &req); apiErr != nil {
		respondWithJSON(w, http.StatusBadRequest, apiErr)
		return
	}

	tx, err := h.payments.Initiate(r.Context(), service.PaymentRequest{
		PhoneNumber: req.PhoneNumber,
		Reference:   req.Reference,
		Description: req.Description,
		AmountMinor: req.Amount,
	})
	h.respondWithTransaction(w, r, tx, err)
}

// GetPayment handles GET /api/v1/payments/{paymentId}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "paymentId", parsePaymentID)
	if err != nil {
		respondWithJSON(w, http.StatusNotFound, notFound("payment not found"))
		return
	}

	tx, err := h.payments.GetPayment(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err, nil)
		return
	}

	respondWithJSON(w, http.StatusOK, toAPITransaction(tx))
}

// QueryPayment handles POST /api/v1/payments/{paymentId}/query
func (h *Handler) QueryPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "paymentId", parsePaymentID)
	if err != nil {
		respondWithJSON(w, http.StatusNotFound, notFound("payment not found"))
		return
	}

	result, err := h.status.Query(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err, nil)
		return
	}

	respondWithJSON(w, http.StatusOK, api.StatusResult{
		Transaction: toAPITransaction(result.Transaction),
		Pending:     result.Pending,
	})
}

// respondWithTransaction writes the outcome of a create call. An error that left
// the transaction PENDING is not final and is reported as a warning.
func (h *Handler) respondWithTransaction(w http.ResponseWriter, r *http.Request, tx *models.Transaction, err error) {
	if err != nil && (tx == nil || tx.State.IsTerminal()) {
		h.respondWithError(w, r, err, tx)
		return
	}

	view := toAPITransaction(tx)
	if err != nil {
		view.Warning = err.Error()
	}

	status := http.StatusAccepted
	if tx.State.IsTerminal() {
		status = http.StatusOK
	}
	respondWithJSON(w, status, view)
}
