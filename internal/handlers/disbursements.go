package handlers

import (
	"net/http"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/api"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/service"
)

const replayedHeader = "X-Disbursement-Replayed"

// CreateDisbursement handles POST /api/v1/disbursements
//
// The reference is the idempotency key: a repeated reference answers 200 with the
// recorded disbursement.
func (h *Handler) CreateDisbursement(w http.ResponseWriter, r *http.Request) {
	var req api.CreateDisbursementRequest
	if apiErr := h.decodeBody(w, r, &req); apiErr != nil {
		respondWithJSON(w, http.StatusBadRequest, apiErr)
		return
	}

	tx, replayed, err := h.disbursements.Disburse(r.Context(), service.DisbursementRequest{
		Reference:   req.Reference,
		PhoneNumber: req.PhoneNumber,
		CommandID:   req.CommandID,
		Remarks:     req.Remarks,
		Occasion:    req.Occasion,
		AmountMinor: req.Amount,
	})
	if replayed && err == nil {
		w.Header().Set(replayedHeader, "true")
		respondWithJSON(w, http.StatusOK, toAPITransaction(tx))
		return
	}

	h.respondWithTransaction(w, r, tx, err)
}

// GetDisbursement handles GET /api/v1/disbursements/{disbursementId}
func (h *Handler) GetDisbursement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "disbursementId", parseDisbursementID)
	if err != nil {
		respondWithJSON(w, http.StatusNotFound, notFound("disbursement not found"))
		return
	}

	tx, err := h.disbursements.GetDisbursement(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err, nil)
		return
	}

	respondWithJSON(w, http.StatusOK, toAPITransaction(tx))
}
