package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/api"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/service"
)

// ID prefixes for API responses
const (
	PrefixPayment      = "pay_"
	PrefixDisbursement = "dsb_"
)

// MaxRequestBodySize caps API and callback bodies at 1MB
const MaxRequestBodySize = 1 << 20

func formatTransactionID(tx *models.Transaction) string {
	if tx.Kind == models.TransactionKindDisbursement {
		return PrefixDisbursement + tx.ID.String()
	}
	return PrefixPayment + tx.ID.String()
}

func parsePaymentID(id string) (uuid.UUID, error) {
	return parseIDWithPrefix(id, PrefixPayment, "payment")
}

func parseDisbursementID(id string) (uuid.UUID, error) {
	return parseIDWithPrefix(id, PrefixDisbursement, "disbursement")
}

func parseIDWithPrefix(id, prefix, typeName string) (uuid.UUID, error) {
	if !strings.HasPrefix(id, prefix) {
		return uuid.Nil, fmt.Errorf("invalid %s ID format: missing %s prefix", typeName, prefix)
	}

	uuidStr := strings.TrimPrefix(id, prefix)
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID format: %w", typeName, err)
	}

	return parsed, nil
}

// pathID binds a prefixed transaction id from the URL path.
func pathID(r *http.Request, name string, parse func(string) (uuid.UUID, error)) (uuid.UUID, error) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		return uuid.Nil, err
	}
	return parse(raw)
}

func toAPITransaction(tx *models.Transaction) api.Transaction {
	return api.Transaction{
		ID:                formatTransactionID(tx),
		Kind:              string(tx.Kind),
		State:             string(tx.State),
		PhoneNumber:       tx.CounterpartyAddress,
		Amount:            tx.AmountMinor,
		Reference:         tx.Reference,
		Description:       tx.Description,
		CommandID:         tx.CommandID,
		CorrelationID:     tx.CorrelationID,
		MerchantRequestID: tx.MerchantRequestID,
		ResultCode:        tx.ResultCode,
		ResultDescription: tx.ResultDescription,
		ReceiptNumber:     tx.ReceiptNumber,
		CreatedAt:         tx.CreatedAt,
		FinalizedAt:       tx.FinalizedAt,
	}
}

// decodeBody reads a JSON request body into dst and validates it.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) *api.Error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &api.Error{Error: api.ErrorCodeInvalidRequest, Message: "request body must be valid JSON"}
	}

	if err := h.validate.StructCtx(r.Context(), dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &api.Error{
				Error:   fieldErrorCode(fe.Field()),
				Message: fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()),
				Field:   fe.Field(),
			}
		}
		return &api.Error{Error: api.ErrorCodeInvalidRequest, Message: err.Error()}
	}
	return nil
}

func fieldErrorCode(field string) api.ErrorCode {
	switch field {
	case "Amount":
		return api.ErrorCodeInvalidAmount
	case "PhoneNumber":
		return api.ErrorCodeInvalidAddress
	case "Reference":
		return api.ErrorCodeInvalidReference
	case "CommandID":
		return api.ErrorCodeInvalidCommand
	case "Remarks":
		return api.ErrorCodeInvalidDescription
	default:
		return api.ErrorCodeInvalidRequest
	}
}

// errorResponse maps a service or gateway error to an HTTP status and body.
// tx, when present, is the ledger entry the failed request produced.
func (h *Handler) errorResponse(r *http.Request, err error, tx *models.Transaction) (int, api.Error) {
	body := api.Error{Message: err.Error()}
	if tx != nil {
		view := toAPITransaction(tx)
		body.Transaction = &view
	}

	var (
		valErr       *service.ValidationError
		svcErr       *service.ServiceError
		authErr      *gateway.AuthError
		transportErr *gateway.TransportError
		gwErr        *gateway.GatewayError
		malformedErr *gateway.MalformedResponseError
	)

	switch {
	case errors.As(err, &valErr):
		body.Error = api.ErrorCode(valErr.Code)
		body.Field = valErr.Field
		return http.StatusBadRequest, body
	case errors.As(err, &svcErr):
		return h.serviceErrorResponse(r, svcErr, body)
	case errors.As(err, &authErr):
		body.Error = api.ErrorCodeGatewayAuthFailed
		return http.StatusBadGateway, body
	case errors.As(err, &transportErr):
		body.Error = api.ErrorCodeGatewayUnavailable
		return http.StatusGatewayTimeout, body
	case errors.As(err, &gwErr):
		body.Error = api.ErrorCodeGatewayUnavailable
		if gwErr.IsClientError() {
			body.Error = api.ErrorCodeGatewayRejected
		}
		return http.StatusBadGateway, body
	case errors.As(err, &malformedErr):
		body.Error = api.ErrorCodeGatewayBadResponse
		return http.StatusBadGateway, body
	default:
		h.logger.ErrorContext(r.Context(), "unhandled error",
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
		return http.StatusInternalServerError, api.Error{
			Error:   api.ErrorCodeInternalError,
			Message: "internal server error",
		}
	}
}

func (h *Handler) serviceErrorResponse(r *http.Request, svcErr *service.ServiceError, body api.Error) (int, api.Error) {
	switch svcErr.Code {
	case service.ErrCodeTransactionNotFound:
		body.Error = api.ErrorCodeNotFound
		return http.StatusNotFound, body
	case service.ErrCodeReferenceConflict:
		body.Error = api.ErrorCodeReferenceConflict
		return http.StatusConflict, body
	default:
		h.logger.ErrorContext(r.Context(), "internal service error",
			"error", svcErr,
			"request_id", middleware.GetReqID(r.Context()),
		)
		return http.StatusInternalServerError, api.Error{
			Error:   api.ErrorCodeInternalError,
			Message: svcErr.Message,
		}
	}
}

func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error, tx *models.Transaction) {
	status, body := h.errorResponse(r, err, tx)
	respondWithJSON(w, status, body)
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // Nothing useful to do if write fails
}

func notFound(message string) api.Error {
	return api.Error{Error: api.ErrorCodeNotFound, Message: message}
}
