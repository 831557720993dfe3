package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/service"
)

// PushCallback handles POST /callbacks/mpesa/stk
func (h *Handler) PushCallback(w http.ResponseWriter, r *http.Request) {
	h.acknowledge(w, r, "stk", h.callbacks.HandlePushCallback)
}

// DisbursementResultCallback handles POST /callbacks/mpesa/b2c/result
func (h *Handler) DisbursementResultCallback(w http.ResponseWriter, r *http.Request) {
	h.acknowledge(w, r, "b2c_result", h.callbacks.HandleDisbursementResult)
}

// DisbursementTimeoutCallback handles POST /callbacks/mpesa/b2c/timeout
func (h *Handler) DisbursementTimeoutCallback(w http.ResponseWriter, r *http.Request) {
	h.acknowledge(w, r, "b2c_timeout", h.callbacks.HandleDisbursementTimeout)
}

// acknowledge hands the raw body to the processor and always answers 200.
func (h *Handler) acknowledge(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	handle func(ctx context.Context, raw []byte) service.Acknowledgement,
) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read callback body",
			"callback", name,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}

	respondWithJSON(w, http.StatusOK, handle(r.Context(), raw))
}
